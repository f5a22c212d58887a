package interfaces

import (
	"context"
	"time"

	"github.com/customeros/idlesync/internal/models"
)

// IMAPGateway opens transports to IMAP servers.
type IMAPGateway interface {
	Connect(ctx context.Context, addr, serverName string, useTLS bool) (IMAPConnection, error)
}

// IMAPConnection is an unauthenticated transport. Close drops it without LOGOUT.
type IMAPConnection interface {
	Login(ctx context.Context, user, pass string) (IMAPSession, error)
	Close() error
}

type IMAPSession interface {
	Select(ctx context.Context, mailbox string) error
	// FetchFlags fetches FLAGS for the sequence range. An empty mailbox
	// returns an empty slice without talking to the server.
	FetchFlags(ctx context.Context, seqRange string) ([]models.MessageFlags, error)
	BeginWait(ctx context.Context) (IMAPWaitHandle, error)
	Logout(ctx context.Context) error
}

// IMAPWaitHandle is a running IDLE command.
type IMAPWaitHandle interface {
	Wait(ctx context.Context, timeout time.Duration) (models.WaitResult, error)
	// Interrupt makes an in-progress or next Wait return ManualInterrupt.
	Interrupt()
	Done(ctx context.Context) error
}
