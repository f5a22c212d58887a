package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfig_Defaults(t *testing.T) {
	t.Setenv("IDLESYNC_STATUS_ADDR", "")
	t.Setenv("CRON_SCHEDULE_HEARTBEAT", "")

	cfg, err := InitConfig()
	require.NoError(t, err)

	assert.Empty(t, cfg.AppConfig.StatusAddr)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "idlesync", cfg.Tracing.ServiceName)
	assert.Nil(t, cfg.Watch)
}

func TestLoad_LogLevelPrecedence(t *testing.T) {
	path := writeConfig(t, `
log:
  level: warn
accounts:
  - host: imap.example.com
    user: u
    pass: p
`)

	t.Setenv("IDLESYNC_LOG_LEVEL", "")
	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logger.LogLevel)
	require.NotNil(t, cfg.Watch)
	assert.Len(t, cfg.Watch.Accounts, 1)

	t.Setenv("IDLESYNC_LOG_LEVEL", "error")
	cfg, err = Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logger.LogLevel)

	cfg, err = Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logger.LogLevel)
}
