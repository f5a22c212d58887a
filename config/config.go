package config

import (
	cron_config "github.com/customeros/idlesync/internal/cron/config"
	"github.com/customeros/idlesync/internal/logger"
	"github.com/customeros/idlesync/internal/models"
	"github.com/customeros/idlesync/internal/tracing"
)

// Config is everything the process needs: the environment part parsed by
// InitConfig and the account file part loaded by LoadAccountsFile.
type Config struct {
	AppConfig  *AppConfig
	Logger     *logger.Config
	Tracing    *tracing.JaegerConfig
	CronConfig *cron_config.Config
	Watch      *WatchConfig
}

type AppConfig struct {
	StatusAddr  string `env:"IDLESYNC_STATUS_ADDR"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
	APIKey      string `env:"IDLESYNC_API_KEY"`
}

// WatchConfig is the content of the YAML account file.
type WatchConfig struct {
	Path     string
	Settings models.Settings
	Accounts []models.Account
	LogLevel string
	LogFile  string
}
