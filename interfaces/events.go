package interfaces

import (
	"context"

	"github.com/customeros/idlesync/dto"
)

type EventPublisher interface {
	PublishMailboxWoke(ctx context.Context, event dto.MailboxWoke) error
	Close() error
}
