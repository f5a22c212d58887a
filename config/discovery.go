package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	idlesync_errors "github.com/customeros/idlesync/internal/errors"
)

const (
	appDirName     = "idlesync"
	configFileName = "config.yaml"
)

// DefaultConfigPath returns $XDG_CONFIG_HOME/idlesync/config.yaml, or
// ~/.config/idlesync/config.yaml when XDG_CONFIG_HOME is unset.
func DefaultConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName, configFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving home directory")
	}
	return filepath.Join(home, ".config", appDirName, configFileName), nil
}

// DiscoverConfigFile returns the default config path if a file exists there.
func DiscoverConfigFile() (string, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return "", errors.Wrap(idlesync_errors.ErrConfigMissing, err.Error())
	}
	if _, err := os.Stat(path); err != nil {
		return "", errors.Wrap(idlesync_errors.ErrConfigMissing, path)
	}
	return path, nil
}
