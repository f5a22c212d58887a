package imap

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/pkg/errors"

	"github.com/customeros/idlesync/internal/enum"
	idlesync_errors "github.com/customeros/idlesync/internal/errors"
	"github.com/customeros/idlesync/internal/models"
)

// waitHandle wraps a running go-imap Idle call.
type waitHandle struct {
	updates   <-chan client.Update
	interrupt chan struct{}
	stop      chan struct{}
	stopOnce  sync.Once
	idleDone  chan error

	// touched only by the owning worker goroutine
	finished bool

	logoutTimeout time.Duration
	release       func()
	abort         func()
}

func (h *waitHandle) Wait(ctx context.Context, timeout time.Duration) (models.WaitResult, error) {
	if h.finished {
		return models.WaitResult{}, idlesync_errors.ErrIdleEnded
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.interrupt:
		return models.WaitResult{Outcome: enum.WaitOutcomeManualInterrupt}, nil
	case update := <-h.updates:
		payload := []string{describeUpdate(update)}
		payload = append(payload, h.pending()...)
		return models.WaitResult{Outcome: enum.WaitOutcomeNewData, Payload: payload}, nil
	case <-timer.C:
		return models.WaitResult{Outcome: enum.WaitOutcomeTimeout}, nil
	case err := <-h.idleDone:
		h.finished = true
		if err == nil {
			return models.WaitResult{}, idlesync_errors.ErrIdleEnded
		}
		return models.WaitResult{}, errors.Wrap(err, "IDLE failed")
	case <-ctx.Done():
		return models.WaitResult{}, ctx.Err()
	}
}

// pending collects updates that are already buffered.
func (h *waitHandle) pending() []string {
	var payload []string
	for {
		select {
		case update := <-h.updates:
			payload = append(payload, describeUpdate(update))
		default:
			return payload
		}
	}
}

func (h *waitHandle) Interrupt() {
	select {
	case h.interrupt <- struct{}{}:
	default:
	}
}

// Done sends DONE and waits for the IDLE command to complete, bounded by the
// logout timeout. On timeout or cancellation the transport is aborted.
func (h *waitHandle) Done(ctx context.Context) error {
	h.stopOnce.Do(func() { close(h.stop) })
	defer h.release()

	if h.finished {
		return nil
	}

	timer := time.NewTimer(h.logoutTimeout)
	defer timer.Stop()

	for {
		select {
		case err := <-h.idleDone:
			h.finished = true
			if err != nil {
				return errors.Wrap(err, "error ending IDLE")
			}
			return nil
		case <-h.updates:
			// keep the reader unblocked until the tagged response arrives
		case <-timer.C:
			h.abort()
			return errors.Wrap(idlesync_errors.ErrConnectionTimeout, "waiting for IDLE to finish")
		case <-ctx.Done():
			h.abort()
			return ctx.Err()
		}
	}
}

func describeUpdate(update client.Update) string {
	switch u := update.(type) {
	case *client.MailboxUpdate:
		return fmt.Sprintf("EXISTS %d", u.Mailbox.Messages)
	case *client.ExpungeUpdate:
		return fmt.Sprintf("EXPUNGE %d", u.SeqNum)
	case *client.MessageUpdate:
		if u.Message == nil {
			return "FETCH"
		}
		return fmt.Sprintf("FETCH %d FLAGS (%s)", u.Message.SeqNum, strings.Join(u.Message.Flags, " "))
	case *client.StatusUpdate:
		if u.Status == nil {
			return "STATUS"
		}
		return fmt.Sprintf("STATUS %s %s", u.Status.Type, u.Status.Info)
	default:
		return fmt.Sprintf("%T", update)
	}
}
