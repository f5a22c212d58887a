package cron

import (
	"context"
	"sync"

	cronv3 "github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/customeros/idlesync/interfaces"
	cron_config "github.com/customeros/idlesync/internal/cron/config"
	"github.com/customeros/idlesync/internal/logger"
	"github.com/customeros/idlesync/internal/tracing"
	"github.com/customeros/idlesync/internal/utils"
)

const JobHeartbeat = "heartbeat"

type CronManager struct {
	cfg     *cron_config.Config
	log     logger.Logger
	cron    *cronv3.Cron
	stopCh  chan struct{}
	stopped sync.Once
	jobIDs  map[string]cronv3.EntryID
	watcher interfaces.WatcherService
}

func NewCronManager(cfg *cron_config.Config, log logger.Logger, watcher interfaces.WatcherService) *CronManager {
	return &CronManager{
		cfg:     cfg,
		log:     log,
		stopCh:  make(chan struct{}),
		jobIDs:  make(map[string]cronv3.EntryID),
		watcher: watcher,
	}
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	cm.stopped.Do(func() { close(cm.stopCh) })
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) error {
	if cm.cfg.CronScheduleHeartbeat == "" {
		cm.log.Info("Heartbeat job disabled")
		return nil
	}

	id, err := c.AddFunc(cm.cfg.CronScheduleHeartbeat, func() {
		defer tracing.RecoverAndLogToJaeger(cm.log)
		cm.heartbeat()
	})
	if err != nil {
		return err
	}
	cm.jobIDs[JobHeartbeat] = id
	cm.log.Infof("Registered heartbeat job with schedule: %s", cm.cfg.CronScheduleHeartbeat)
	return nil
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() error {
	cm.log.Info("Starting cron manager")
	// Create a new cron with seconds field enabled and panic recovery
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	if err := cm.registerJobs(c); err != nil {
		return err
	}
	c.Start()
	cm.cron = c
	return nil
}

// heartbeat logs one line per account with its current phase.
func (cm *CronManager) heartbeat() {
	span, _ := tracing.StartTracerSpan(context.Background(), "CronManager.heartbeat")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	statuses := cm.watcher.Status()
	names := utils.SortedKeys(statuses)
	span.SetTag("accounts", len(names))

	cm.log.Infof("Heartbeat: watching %d account(s)", len(names))
	for _, name := range names {
		status := statuses[name]
		fields := []zap.Field{
			zap.String("account", name),
			zap.String("phase", status.Phase.String()),
			zap.Int64("cycles", status.Cycles),
			zap.Time("last_change", status.LastChangeAt),
		}
		if status.LastOutcome != "" {
			fields = append(fields, zap.String("last_outcome", status.LastOutcome.String()))
		}
		if status.LastHandlersOk != nil {
			fields = append(fields, zap.Bool("handlers_ok", *status.LastHandlersOk))
		}
		if status.LastError != "" {
			fields = append(fields, zap.String("last_error", status.LastError))
		}
		cm.log.Info("Account status", fields...)
	}
}
