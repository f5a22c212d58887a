package cron

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cron_config "github.com/customeros/idlesync/internal/cron/config"
	"github.com/customeros/idlesync/internal/enum"
	"github.com/customeros/idlesync/internal/logger"
	"github.com/customeros/idlesync/internal/models"
)

type mockWatcher struct {
	mock.Mock
}

func (m *mockWatcher) Status() map[string]models.AccountStatus {
	args := m.Called()
	return args.Get(0).(map[string]models.AccountStatus)
}

func (m *mockWatcher) Interrupt(account string) (bool, error) {
	args := m.Called(account)
	return args.Bool(0), args.Error(1)
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	_ = appLogger.InitLogger()
	return appLogger
}

func TestNewCronManager(t *testing.T) {
	cfg := &cron_config.Config{CronScheduleHeartbeat: "0 */5 * * * *"}
	log := getLogger()
	watcher := &mockWatcher{}

	cm := NewCronManager(cfg, log, watcher)

	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, log, cm.log)
	assert.NotNil(t, cm.jobIDs)
}

func TestCronManager_StartCron(t *testing.T) {
	cm := NewCronManager(&cron_config.Config{CronScheduleHeartbeat: "0 */5 * * * *"}, getLogger(), &mockWatcher{})

	require.NoError(t, cm.StartCron())
	defer cm.Stop()

	assert.NotNil(t, cm.cron)
	assert.Contains(t, cm.jobIDs, JobHeartbeat)
	assert.Len(t, cm.cron.Entries(), 1)
}

func TestCronManager_HeartbeatDisabled(t *testing.T) {
	cm := NewCronManager(&cron_config.Config{}, getLogger(), &mockWatcher{})

	require.NoError(t, cm.StartCron())
	defer cm.Stop()

	assert.Empty(t, cm.jobIDs)
}

func TestCronManager_InvalidSchedule(t *testing.T) {
	// five fields are rejected once seconds are enabled
	cm := NewCronManager(&cron_config.Config{CronScheduleHeartbeat: "0 0 * *"}, getLogger(), &mockWatcher{})

	assert.Error(t, cm.StartCron())
}

func TestCronManager_HeartbeatLogsEveryAccount(t *testing.T) {
	file := filepath.Join(t.TempDir(), "heartbeat.log")
	appLogger := logger.NewAppLogger(&logger.Config{LogLevel: "info", Encoder: "json", File: file})
	require.NoError(t, appLogger.InitLogger())

	ok := false
	watcher := &mockWatcher{}
	watcher.On("Status").Return(map[string]models.AccountStatus{
		"work":     {Account: "work", Phase: enum.PhaseWait, Cycles: 3, LastChangeAt: time.Now()},
		"personal": {Account: "personal", Phase: enum.PhaseBackoff, LastError: "auth failed", LastHandlersOk: &ok},
	})

	cm := NewCronManager(&cron_config.Config{}, appLogger, watcher)
	cm.heartbeat()
	_ = appLogger.Logger().Sync()

	content := readFile(t, file)
	assert.Contains(t, content, `"account":"personal"`)
	assert.Contains(t, content, `"account":"work"`)
	assert.Contains(t, content, `"last_error":"auth failed"`)
	assert.Contains(t, content, `"handlers_ok":false`)
	watcher.AssertExpectations(t)
}

func TestCronManager_Stop(t *testing.T) {
	cm := NewCronManager(&cron_config.Config{CronScheduleHeartbeat: "0 */5 * * * *"}, getLogger(), &mockWatcher{})
	require.NoError(t, cm.StartCron())

	cm.Stop()
	cm.Stop()

	select {
	case <-cm.stopCh:
		// Channel is closed as expected
	default:
		t.Error("Stop channel was not closed")
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}
