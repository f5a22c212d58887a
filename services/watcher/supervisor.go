package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/customeros/idlesync/dto"
	"github.com/customeros/idlesync/interfaces"
	"github.com/customeros/idlesync/internal/enum"
	idlesync_errors "github.com/customeros/idlesync/internal/errors"
	"github.com/customeros/idlesync/internal/logger"
	"github.com/customeros/idlesync/internal/models"
	"github.com/customeros/idlesync/internal/tracing"
	"github.com/customeros/idlesync/internal/utils"
)

const (
	defaultEventBuffer   = 256
	defaultWakeBuffer    = 64
	defaultPublishBudget = 30 * time.Second
)

// Supervisor runs one Worker per account and keeps a status view built from
// their events. Workers never see each other or the supervisor state.
type Supervisor struct {
	log       logger.Logger
	publisher interfaces.EventPublisher
	workers   []*Worker
	byName    map[string]*Worker
	events    chan StatusEvent
	wakes     chan dto.MailboxWoke

	statusMutex sync.RWMutex
	statuses    map[string]*models.AccountStatus
}

type SupervisorOption func(*supervisorOptions)

type supervisorOptions struct {
	workerOpts []WorkerOption
	publisher  interfaces.EventPublisher
}

func WithWorkerOptions(opts ...WorkerOption) SupervisorOption {
	return func(o *supervisorOptions) { o.workerOpts = append(o.workerOpts, opts...) }
}

func WithPublisher(publisher interfaces.EventPublisher) SupervisorOption {
	return func(o *supervisorOptions) { o.publisher = publisher }
}

func NewSupervisor(accounts []models.Account, settings models.Settings, gateway interfaces.IMAPGateway, dispatcher interfaces.HandlerDispatcher, log logger.Logger, opts ...SupervisorOption) *Supervisor {
	options := &supervisorOptions{}
	for _, opt := range opts {
		opt(options)
	}

	s := &Supervisor{
		log:       log,
		publisher: options.publisher,
		byName:    make(map[string]*Worker, len(accounts)),
		events:    make(chan StatusEvent, defaultEventBuffer),
		wakes:     make(chan dto.MailboxWoke, defaultWakeBuffer),
		statuses:  make(map[string]*models.AccountStatus, len(accounts)),
	}

	workerOpts := append([]WorkerOption{WithEvents(s.events)}, options.workerOpts...)
	now := time.Now()
	for _, account := range accounts {
		w := NewWorker(account, settings, gateway, dispatcher, log, workerOpts...)
		s.workers = append(s.workers, w)
		s.byName[w.Name()] = w
		s.statuses[w.Name()] = &models.AccountStatus{
			Account:      w.Name(),
			Phase:        enum.PhaseConnect,
			LastChangeAt: now,
		}
	}

	return s
}

// Run blocks until ctx is cancelled and every worker has returned.
func (s *Supervisor) Run(ctx context.Context) error {
	s.log.Infof("Starting supervisor with %d account(s)", len(s.workers))

	var pipeline sync.WaitGroup
	pipeline.Add(2)
	go func() {
		defer pipeline.Done()
		defer tracing.RecoverAndLogToJaeger(s.log)
		s.consumeEvents()
	}()
	go func() {
		defer pipeline.Done()
		defer tracing.RecoverAndLogToJaeger(s.log)
		s.publishWakes()
	}()

	g := new(errgroup.Group)
	for _, w := range s.workers {
		w := w
		g.Go(func() error {
			return w.Run(ctx)
		})
	}
	err := g.Wait()

	close(s.events)
	pipeline.Wait()

	s.log.Info("Supervisor stopped")
	return err
}

func (s *Supervisor) consumeEvents() {
	for event := range s.events {
		s.apply(event)
	}
	close(s.wakes)
}

func (s *Supervisor) apply(event StatusEvent) {
	s.statusMutex.Lock()
	status, ok := s.statuses[event.Account]
	if !ok {
		s.statusMutex.Unlock()
		return
	}

	if event.Phase == enum.PhaseConnect && event.Err == nil && event.CycleId != status.CycleId {
		status.Cycles++
	}
	if event.CycleId != "" {
		status.CycleId = event.CycleId
	}
	status.Phase = event.Phase
	status.Waiting = event.Waiting
	status.LastChangeAt = event.At
	if event.Err != nil {
		status.LastError = event.Err.Error()
	}

	var wake *dto.MailboxWoke
	if event.Woke {
		handlersOk := event.HandlerErr == nil
		status.LastOutcome = event.Outcome
		status.LastHandlersOk = utils.ToPtr(handlersOk)
		status.LastHandlerErr = ""
		if event.HandlerErr != nil {
			status.LastHandlerErr = event.HandlerErr.Error()
		}
		wake = &dto.MailboxWoke{
			Account:      event.Account,
			CycleId:      event.CycleId,
			Outcome:      event.Outcome.String(),
			HandlersOk:   handlersOk,
			HandlerError: status.LastHandlerErr,
			OccurredAt:   event.At,
		}
	}
	s.statusMutex.Unlock()

	if wake != nil && s.publisher != nil {
		select {
		case s.wakes <- *wake:
		default:
			s.log.Warn("Wake event queue full, dropping event", zap.String("account", wake.Account), zap.String("cycle_id", wake.CycleId))
		}
	}
}

func (s *Supervisor) publishWakes() {
	for wake := range s.wakes {
		ctx, cancel := context.WithTimeout(context.Background(), defaultPublishBudget)
		if err := s.publisher.PublishMailboxWoke(ctx, wake); err != nil {
			s.log.Error("Failed to publish wake event", zap.String("account", wake.Account), zap.Error(err))
		}
		cancel()
	}
}

// Status returns a copy of every account's status.
func (s *Supervisor) Status() map[string]models.AccountStatus {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()

	result := make(map[string]models.AccountStatus, len(s.statuses))
	for name, status := range s.statuses {
		copied := *status
		copied.LastHandlersOk = utils.ClonePtr(status.LastHandlersOk)
		result[name] = copied
	}
	return result
}

// Interrupt wakes the named account's in-progress IDLE wait.
func (s *Supervisor) Interrupt(account string) (bool, error) {
	w, ok := s.byName[account]
	if !ok {
		return false, errors.Wrap(idlesync_errors.ErrAccountNotFound, account)
	}
	return w.Interrupt(), nil
}
