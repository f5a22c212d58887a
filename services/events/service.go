package events

import (
	"context"

	"github.com/customeros/idlesync/dto"
	"github.com/customeros/idlesync/interfaces"
	"github.com/customeros/idlesync/internal/logger"
)

// NewEventPublisher returns a RabbitMQ publisher, or a logging no-op
// publisher when no broker URL is configured.
func NewEventPublisher(rabbitmqURL string, log logger.Logger, publisherConfig *PublisherConfig) (interfaces.EventPublisher, error) {
	if rabbitmqURL == "" {
		log.Info("RABBITMQ_URL not set, wake events will not be published")
		return NewNoopPublisher(log), nil
	}
	return NewRabbitMQPublisher(rabbitmqURL, log, publisherConfig)
}

type NoopPublisher struct {
	log logger.Logger
}

func NewNoopPublisher(log logger.Logger) *NoopPublisher {
	return &NoopPublisher{log: log}
}

func (p *NoopPublisher) PublishMailboxWoke(ctx context.Context, event dto.MailboxWoke) error {
	p.log.Debugf("Wake event for %s (cycle %s, outcome %s) not published", event.Account, event.CycleId, event.Outcome)
	return nil
}

func (p *NoopPublisher) Close() error {
	return nil
}
