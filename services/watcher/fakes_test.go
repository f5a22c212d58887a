package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/customeros/idlesync/dto"
	"github.com/customeros/idlesync/interfaces"
	"github.com/customeros/idlesync/internal/enum"
	"github.com/customeros/idlesync/internal/models"
)

// script configures how the fake server for one address behaves.
type script struct {
	connectErr error
	loginErr   error
	selectErr  error
	fetchErr   error
	beginErr   error
	waitErr    error
	doneErr    error
	logoutErr  error

	messages   int
	waitResult models.WaitResult
	// waitBlocks makes Wait block until interrupted or cancelled
	waitBlocks bool
}

type fakeGateway struct {
	mu           sync.Mutex
	scripts      map[string]*script
	calls        []string
	waitTimeouts []time.Duration
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{scripts: make(map[string]*script)}
}

func (g *fakeGateway) script(addr string) *script {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.scripts[addr]; ok {
		return s
	}
	return &script{}
}

func (g *fakeGateway) record(addr, call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, addr+" "+call)
}

func (g *fakeGateway) Calls(addr string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	prefix := addr + " "
	for _, c := range g.calls {
		if len(c) > len(prefix) && c[:len(prefix)] == prefix {
			out = append(out, c[len(prefix):])
		}
	}
	return out
}

func (g *fakeGateway) Count(addr, call string) int {
	n := 0
	for _, c := range g.Calls(addr) {
		if c == call {
			n++
		}
	}
	return n
}

func (g *fakeGateway) WaitTimeouts() []time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]time.Duration(nil), g.waitTimeouts...)
}

func (g *fakeGateway) Connect(ctx context.Context, addr, serverName string, useTLS bool) (interfaces.IMAPConnection, error) {
	g.record(addr, "Connect")
	s := g.script(addr)
	if s.connectErr != nil {
		return nil, s.connectErr
	}
	return &fakeConn{gw: g, addr: addr, script: s}, nil
}

type fakeConn struct {
	gw     *fakeGateway
	addr   string
	script *script
}

func (c *fakeConn) Login(ctx context.Context, user, pass string) (interfaces.IMAPSession, error) {
	c.gw.record(c.addr, "Login")
	if c.script.loginErr != nil {
		return nil, c.script.loginErr
	}
	return &fakeSession{fakeConn: c}, nil
}

func (c *fakeConn) Close() error {
	c.gw.record(c.addr, "Close")
	return nil
}

type fakeSession struct {
	*fakeConn
}

func (s *fakeSession) Select(ctx context.Context, mailbox string) error {
	s.gw.record(s.addr, "Select "+mailbox)
	return s.script.selectErr
}

func (s *fakeSession) FetchFlags(ctx context.Context, seqRange string) ([]models.MessageFlags, error) {
	s.gw.record(s.addr, "FetchFlags "+seqRange)
	if s.script.fetchErr != nil {
		return nil, s.script.fetchErr
	}
	flags := make([]models.MessageFlags, s.script.messages)
	for i := range flags {
		flags[i] = models.MessageFlags{SeqNum: uint32(i + 1)}
	}
	return flags, nil
}

func (s *fakeSession) BeginWait(ctx context.Context) (interfaces.IMAPWaitHandle, error) {
	s.gw.record(s.addr, "BeginWait")
	if s.script.beginErr != nil {
		return nil, s.script.beginErr
	}
	return &fakeWait{fakeConn: s.fakeConn, interrupt: make(chan struct{}, 1)}, nil
}

func (s *fakeSession) Logout(ctx context.Context) error {
	s.gw.record(s.addr, "Logout")
	return s.script.logoutErr
}

type fakeWait struct {
	*fakeConn
	interrupt chan struct{}
}

func (w *fakeWait) Wait(ctx context.Context, timeout time.Duration) (models.WaitResult, error) {
	w.gw.record(w.addr, "Wait")
	w.gw.mu.Lock()
	w.gw.waitTimeouts = append(w.gw.waitTimeouts, timeout)
	w.gw.mu.Unlock()

	if w.script.waitErr != nil {
		return models.WaitResult{}, w.script.waitErr
	}
	if w.script.waitBlocks {
		select {
		case <-w.interrupt:
			return models.WaitResult{Outcome: enum.WaitOutcomeManualInterrupt}, nil
		case <-ctx.Done():
			return models.WaitResult{}, ctx.Err()
		}
	}
	if w.script.waitResult.Outcome == enum.WaitOutcomeNone {
		return models.WaitResult{Outcome: enum.WaitOutcomeTimeout}, nil
	}
	return w.script.waitResult, nil
}

func (w *fakeWait) Interrupt() {
	select {
	case w.interrupt <- struct{}{}:
	default:
	}
}

func (w *fakeWait) Done(ctx context.Context) error {
	w.gw.record(w.addr, "Done")
	return w.script.doneErr
}

type dispatchCall struct {
	account  string
	commands []string
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
	err   error
	// panics makes the first N dispatches panic
	panics int
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, account string, commands []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.panics > 0 {
		d.panics--
		panic("handler exploded")
	}
	d.calls = append(d.calls, dispatchCall{account: account, commands: commands})
	return d.err
}

func (d *fakeDispatcher) Count(account string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c.account == account {
			n++
		}
	}
	return n
}

// fakeClock records backoff durations and fires immediately. It cancels the
// run after limit sleeps when limit is positive.
type fakeClock struct {
	mu        sync.Mutex
	durations []time.Duration
	limit     int
	cancel    context.CancelFunc
	delay     time.Duration
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.durations = append(c.durations, d)
	n := len(c.durations)
	c.mu.Unlock()

	if c.limit > 0 && n >= c.limit && c.cancel != nil {
		c.cancel()
	}
	if c.delay > 0 {
		return time.After(c.delay)
	}
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (c *fakeClock) Durations() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.durations...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []dto.MailboxWoke
	err    error
}

func (p *fakePublisher) PublishMailboxWoke(ctx context.Context, event dto.MailboxWoke) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *fakePublisher) Close() error {
	return nil
}

func (p *fakePublisher) Events() []dto.MailboxWoke {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]dto.MailboxWoke(nil), p.events...)
}

func sequentialIds() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("cycle-%d", n)
	}
}

var errRefused = errors.New("dial tcp: connection refused")
