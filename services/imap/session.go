package imap

import (
	"context"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/customeros/idlesync/interfaces"
	idlesync_errors "github.com/customeros/idlesync/internal/errors"
	"github.com/customeros/idlesync/internal/models"
	"github.com/customeros/idlesync/internal/tracing"
)

type session struct {
	client   *client.Client
	gateway  *Gateway
	addr     string
	mailbox  string
	messages uint32
	selected bool
}

func (s *session) Select(ctx context.Context, mailbox string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPGateway.Select")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("folder.name", mailbox)

	var status *imap.MailboxStatus
	err := runWithContext(ctx, func() error {
		var selectErr error
		status, selectErr = s.client.Select(mailbox, false)
		return selectErr
	}, s.terminate)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "error selecting folder %s", mailbox)
	}

	span.SetTag("messages.total", status.Messages)
	span.SetTag("messages.recent", status.Recent)
	span.SetTag("messages.unseen", status.Unseen)

	s.mailbox = mailbox
	s.messages = status.Messages
	s.selected = true
	return nil
}

func (s *session) FetchFlags(ctx context.Context, seqRange string) ([]models.MessageFlags, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPGateway.FetchFlags")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("range", seqRange)

	if !s.selected {
		return nil, errors.Wrap(idlesync_errors.ErrNotConnected, "no mailbox selected")
	}
	// FETCH 1:* on an empty mailbox is a BAD response on most servers
	if s.messages == 0 {
		return []models.MessageFlags{}, nil
	}

	seqSet, err := imap.ParseSeqSet(seqRange)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "invalid sequence range %q", seqRange)
	}

	messages := make(chan *imap.Message, 10)
	result := make([]models.MessageFlags, 0, s.messages)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for msg := range messages {
			result = append(result, models.MessageFlags{
				SeqNum: msg.SeqNum,
				Flags:  msg.Flags,
			})
		}
	}()

	err = runWithContext(ctx, func() error {
		return s.client.Fetch(seqSet, []imap.FetchItem{imap.FetchFlags}, messages)
	}, s.terminate)
	<-collected
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "error fetching flags")
	}

	span.SetTag("messages.fetched", len(result))
	return result, nil
}

func (s *session) BeginWait(ctx context.Context) (interfaces.IMAPWaitHandle, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPGateway.BeginWait")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if !s.selected {
		err := errors.Wrap(idlesync_errors.ErrIdleNotStarted, "no mailbox selected")
		tracing.TraceErr(span, err)
		return nil, err
	}

	// LOGIN drops cached capabilities, so this may issue CAPABILITY
	var supported bool
	err := runWithContext(ctx, func() error {
		var supportErr error
		supported, supportErr = s.client.Support(idleCapability)
		return supportErr
	}, s.terminate)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "error checking IDLE support")
	}
	span.SetTag("idle_supported", supported)
	if !supported {
		s.gateway.log.Warn("Server does not advertise IDLE, falling back to NOOP polling", zap.String("server", s.addr))
	}

	updates := make(chan client.Update, updatesBuffer)
	s.client.Updates = updates

	h := &waitHandle{
		updates:       updates,
		interrupt:     make(chan struct{}, 1),
		stop:          make(chan struct{}),
		idleDone:      make(chan error, 1),
		logoutTimeout: s.gateway.logoutTimeout,
		release: func() {
			s.client.Updates = nil
		},
		abort: s.terminate,
	}

	go func() {
		h.idleDone <- s.client.Idle(h.stop, &client.IdleOptions{
			LogoutTimeout: DefaultIdleRestart,
			PollInterval:  s.gateway.pollInterval,
		})
	}()

	return h, nil
}

func (s *session) Logout(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPGateway.Logout")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	ctx, cancel := context.WithTimeout(ctx, s.gateway.logoutTimeout)
	defer cancel()

	err := runWithContext(ctx, s.client.Logout, s.terminate)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "error during logout")
	}
	return nil
}

func (s *session) terminate() {
	_ = s.client.Terminate()
}

const (
	idleCapability = "IDLE"
	updatesBuffer  = 100
)
