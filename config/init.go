package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	cron_config "github.com/customeros/idlesync/internal/cron/config"
	"github.com/customeros/idlesync/internal/logger"
	"github.com/customeros/idlesync/internal/tracing"
)

// InitConfig reads the process environment, after loading a .env file when
// one is present in the working directory.
func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:  &AppConfig{},
		Logger:     &logger.Config{},
		Tracing:    &tracing.JaegerConfig{},
		CronConfig: &cron_config.Config{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		return nil, errors.Wrap(err, "Error loading idlesync config")
	}

	return config, nil
}

// Load combines the environment with the account file at path. An empty
// path triggers the default lookup. The environment log level overrides the
// file one; debug overrides both.
func Load(path string, debug bool) (*Config, error) {
	config, err := InitConfig()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path, err = DiscoverConfigFile()
		if err != nil {
			return nil, err
		}
	}

	watch, err := LoadAccountsFile(path)
	if err != nil {
		return nil, err
	}
	config.Watch = watch

	if config.Logger.LogLevel == "" {
		config.Logger.LogLevel = watch.LogLevel
	}
	if config.Logger.File == "" {
		config.Logger.File = watch.LogFile
	}
	if debug {
		config.Logger.LogLevel = "debug"
	}

	return config, nil
}
