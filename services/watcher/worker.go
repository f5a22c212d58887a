package watcher

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/customeros/idlesync/interfaces"
	"github.com/customeros/idlesync/internal/enum"
	"github.com/customeros/idlesync/internal/logger"
	"github.com/customeros/idlesync/internal/models"
	"github.com/customeros/idlesync/internal/tracing"
)

const baselineRange = "1:*"

// Worker runs the connection lifecycle of one account until its context is
// cancelled. Nothing but configuration survives from one cycle to the next.
type Worker struct {
	account    models.Account
	settings   models.Settings
	gateway    interfaces.IMAPGateway
	dispatcher interfaces.HandlerDispatcher
	log        logger.Logger
	events     chan<- StatusEvent
	after      func(time.Duration) <-chan time.Time
	newCycleId func() string

	waitMu sync.Mutex
	wait   interfaces.IMAPWaitHandle
}

type WorkerOption func(*Worker)

// WithEvents makes the worker report phase changes on events.
func WithEvents(events chan<- StatusEvent) WorkerOption {
	return func(w *Worker) { w.events = events }
}

// WithAfter replaces time.After for the backoff sleep.
func WithAfter(after func(time.Duration) <-chan time.Time) WorkerOption {
	return func(w *Worker) { w.after = after }
}

func NewWorker(account models.Account, settings models.Settings, gateway interfaces.IMAPGateway, dispatcher interfaces.HandlerDispatcher, log logger.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{
		account:    account,
		settings:   settings,
		gateway:    gateway,
		dispatcher: dispatcher,
		log:        log.With(zap.String("account", account.DisplayName())),
		after:      time.After,
		newCycleId: uuid.NewString,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Name() string {
	return w.account.DisplayName()
}

// cycle holds everything that lives for one Connect..Backoff pass.
type cycle struct {
	id      string
	log     logger.Logger
	conn    interfaces.IMAPConnection
	session interfaces.IMAPSession
	wait    interfaces.IMAPWaitHandle
	result  models.WaitResult
}

// Run cycles until ctx is cancelled. A panic inside a cycle is logged and the
// worker starts over from Connect after the retry delay.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting account worker", zap.String("server", w.account.Address()), zap.Bool("tls", w.account.TLS))
	for {
		panicked := w.runProtected(ctx)
		if ctx.Err() != nil {
			w.log.Info("Account worker stopped")
			return nil
		}
		if !panicked {
			continue
		}
		select {
		case <-w.after(w.settings.Retry):
		case <-ctx.Done():
			w.log.Info("Account worker stopped")
			return nil
		}
	}
}

func (w *Worker) runProtected(ctx context.Context) (panicked bool) {
	var c *cycle
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			w.clearWait()
			if c != nil {
				c.drop()
			}
			w.log.Error("Recovered from panic in account worker",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			w.emit(ctx, StatusEvent{Phase: enum.PhaseBackoff, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	phase := enum.PhaseConnect
	c = w.newCycle()
	for {
		if ctx.Err() != nil {
			c.drop()
			return false
		}

		w.emit(ctx, StatusEvent{CycleId: c.id, Phase: phase, Waiting: phase == enum.PhaseWait})

		err := w.step(ctx, phase, c)
		if err != nil && ctx.Err() == nil {
			c.log.Error("Cycle step failed", zap.String("phase", phase.String()), zap.Error(err))
			w.emit(ctx, StatusEvent{CycleId: c.id, Phase: phase, Err: err})
		}

		next := transition(phase, err)
		if phase == enum.PhaseBackoff {
			c = w.newCycle()
		}
		phase = next
	}
}

func (w *Worker) newCycle() *cycle {
	id := w.newCycleId()
	return &cycle{
		id:  id,
		log: w.log.With(zap.String("cycle_id", id)),
	}
}

func (w *Worker) step(ctx context.Context, phase enum.Phase, c *cycle) error {
	span, ctx := tracing.StartTracerSpan(ctx, "AccountWorker."+phase.String())
	defer span.Finish()
	tracing.TagComponentWorker(span)
	tracing.TagAccount(span, w.Name())
	tracing.TagCycle(span, c.id)

	var err error
	switch phase {
	case enum.PhaseConnect:
		err = w.connect(ctx, c)
	case enum.PhaseAuthenticate:
		err = w.authenticate(ctx, c)
	case enum.PhaseSelectMailbox:
		err = w.selectMailbox(ctx, c)
	case enum.PhaseBaseline:
		err = w.baseline(ctx, c)
	case enum.PhaseWait:
		err = w.waitForActivity(ctx, c)
	case enum.PhaseReact:
		w.react(ctx, c)
	case enum.PhaseTeardown:
		w.teardown(ctx, c)
	case enum.PhaseBackoff:
		w.backoff(ctx, c)
	}
	tracing.TraceErr(span, err)
	return err
}

func (w *Worker) connect(ctx context.Context, c *cycle) error {
	conn, err := w.gateway.Connect(ctx, w.account.Address(), w.account.Host, w.account.TLS)
	if err != nil {
		return err
	}
	c.conn = conn
	c.log.Debug("Connected", zap.String("server", w.account.Address()))
	return nil
}

func (w *Worker) authenticate(ctx context.Context, c *cycle) error {
	session, err := c.conn.Login(ctx, w.account.User, w.account.Pass)
	if err != nil {
		return err
	}
	c.session = session
	c.log.Debug("Authenticated", zap.String("user", w.account.User))
	return nil
}

func (w *Worker) selectMailbox(ctx context.Context, c *cycle) error {
	if err := c.session.Select(ctx, models.InboxMailbox); err != nil {
		return err
	}
	c.log.Debug("Selected mailbox", zap.String("mailbox", models.InboxMailbox))
	return nil
}

func (w *Worker) baseline(ctx context.Context, c *cycle) error {
	flags, err := c.session.FetchFlags(ctx, baselineRange)
	if err != nil {
		return err
	}
	c.log.Debug("Baseline fetched", zap.Int("messages", len(flags)))
	return nil
}

func (w *Worker) waitForActivity(ctx context.Context, c *cycle) error {
	handle, err := c.session.BeginWait(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to start IDLE")
	}
	c.wait = handle

	w.setWait(handle)
	result, err := handle.Wait(ctx, w.settings.IdleTimeout)
	w.clearWait()
	if err != nil {
		return err
	}

	c.result = result
	c.log.Info("Woke up", zap.String("outcome", result.Outcome.String()))
	if len(result.Payload) > 0 {
		c.log.Debug("Wait payload", zap.Strings("payload", result.Payload))
	}
	return nil
}

func (w *Worker) react(ctx context.Context, c *cycle) {
	err := w.dispatcher.Dispatch(ctx, w.Name(), w.account.Commands)
	if err != nil {
		c.log.Warn("Handlers failed", zap.Error(err))
	} else {
		c.log.Info("Handlers completed", zap.Int("commands", len(w.account.Commands)))
	}
	w.emit(ctx, StatusEvent{
		CycleId:    c.id,
		Phase:      enum.PhaseReact,
		Woke:       true,
		Outcome:    c.result.Outcome,
		HandlerErr: err,
	})
}

// teardown ends IDLE and logs out. Each failure is only logged; a failed
// LOGOUT drops the transport.
func (w *Worker) teardown(ctx context.Context, c *cycle) {
	if c.wait != nil {
		if err := c.wait.Done(ctx); err != nil {
			c.log.Warn("Failed to end IDLE", zap.String("phase", enum.PhaseTeardown.String()), zap.Error(err))
		}
		c.wait = nil
	}
	if c.session != nil {
		if err := c.session.Logout(ctx); err != nil {
			c.log.Warn("Failed to log out", zap.String("phase", enum.PhaseTeardown.String()), zap.Error(err))
			c.drop()
			return
		}
		c.session = nil
		c.conn = nil
	}
	c.drop()
}

func (w *Worker) backoff(ctx context.Context, c *cycle) {
	c.drop()
	c.log.Debug("Backing off", zap.Duration("retry", w.settings.Retry))
	select {
	case <-w.after(w.settings.Retry):
	case <-ctx.Done():
	}
}

// drop releases a connection still held by the cycle without LOGOUT.
func (c *cycle) drop() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.log.Debug("Error dropping connection", zap.Error(err))
		}
	}
	c.conn = nil
	c.session = nil
	c.wait = nil
}

// Interrupt ends an in-progress Wait with ManualInterrupt. It reports
// whether the worker was waiting.
func (w *Worker) Interrupt() bool {
	w.waitMu.Lock()
	defer w.waitMu.Unlock()

	if w.wait == nil {
		return false
	}
	w.wait.Interrupt()
	return true
}

func (w *Worker) setWait(handle interfaces.IMAPWaitHandle) {
	w.waitMu.Lock()
	w.wait = handle
	w.waitMu.Unlock()
}

func (w *Worker) clearWait() {
	w.waitMu.Lock()
	w.wait = nil
	w.waitMu.Unlock()
}

func (w *Worker) emit(ctx context.Context, event StatusEvent) {
	if w.events == nil {
		return
	}
	event.Account = w.Name()
	if event.At.IsZero() {
		event.At = time.Now()
	}
	select {
	case w.events <- event:
	case <-ctx.Done():
	}
}
