package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	idlesync_errors "github.com/customeros/idlesync/internal/errors"
	"github.com/customeros/idlesync/internal/models"
	"github.com/customeros/idlesync/internal/utils"
)

type accountEntry struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	User     string   `mapstructure:"user"`
	Pass     string   `mapstructure:"pass"`
	TLS      *bool    `mapstructure:"tls"`
	Name     string   `mapstructure:"name"`
	Commands []string `mapstructure:"commands"`
	Folders  []string `mapstructure:"folders"` // carried on the account, selection stays INBOX
}

type logEntry struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type fileEntry struct {
	Retry       int            `mapstructure:"retry"`
	IdleTimeout int            `mapstructure:"idle_timeout"`
	Accounts    []accountEntry `mapstructure:"accounts"`
	Log         logEntry       `mapstructure:"log"`
}

// LoadAccountsFile reads and validates the YAML account file.
func LoadAccountsFile(path string) (*WatchConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("retry", int(models.DefaultRetry/time.Second))
	v.SetDefault("idle_timeout", int(models.DefaultIdleTimeout/time.Second))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	var entry fileEntry
	if err := v.Unmarshal(&entry); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}

	return entry.toWatchConfig(path)
}

func (f fileEntry) toWatchConfig(path string) (*WatchConfig, error) {
	if f.Retry <= 0 {
		return nil, errors.Wrapf(idlesync_errors.ErrAccountInvalid, "retry must be positive, got %d", f.Retry)
	}
	if f.IdleTimeout <= 0 {
		return nil, errors.Wrapf(idlesync_errors.ErrAccountInvalid, "idle_timeout must be positive, got %d", f.IdleTimeout)
	}

	watch := &WatchConfig{
		Path: path,
		Settings: models.Settings{
			Retry:       time.Duration(f.Retry) * time.Second,
			IdleTimeout: time.Duration(f.IdleTimeout) * time.Second,
		},
		Accounts: make([]models.Account, 0, len(f.Accounts)),
		LogLevel: f.Log.Level,
		LogFile:  f.Log.File,
	}

	seen := make(map[string]int, len(f.Accounts))
	for i, a := range f.Accounts {
		account, err := a.toAccount(i)
		if err != nil {
			return nil, err
		}
		name := account.DisplayName()
		if prev, ok := seen[name]; ok {
			return nil, errors.Wrapf(idlesync_errors.ErrAccountDuplicate, "accounts[%d] and accounts[%d] are both named %q", prev, i, name)
		}
		seen[name] = i
		watch.Accounts = append(watch.Accounts, account)
	}

	return watch, nil
}

func (a accountEntry) toAccount(index int) (models.Account, error) {
	var missing []string
	if a.Host == "" {
		missing = append(missing, "host")
	}
	if a.User == "" {
		missing = append(missing, "user")
	}
	if a.Pass == "" {
		missing = append(missing, "pass")
	}
	if len(missing) > 0 {
		return models.Account{}, errors.Wrapf(idlesync_errors.ErrAccountInvalid, "accounts[%d]: missing %s", index, strings.Join(missing, ", "))
	}
	if a.Port < 0 || a.Port > 65535 {
		return models.Account{}, errors.Wrapf(idlesync_errors.ErrAccountInvalid, "accounts[%d]: port %d out of range", index, a.Port)
	}

	account := models.Account{
		Name:     a.Name,
		Host:     a.Host,
		Port:     a.Port,
		User:     a.User,
		Pass:     a.Pass,
		TLS:      utils.GetOrDefault(a.TLS, true),
		Commands: a.Commands,
		Folders:  a.Folders,
	}
	if account.Name == "" {
		account.Name = a.Host
	}
	if account.Commands == nil {
		account.Commands = []string{}
	}
	return account, nil
}
