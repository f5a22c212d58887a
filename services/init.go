package services

import (
	"github.com/customeros/idlesync/config"
	"github.com/customeros/idlesync/interfaces"
	"github.com/customeros/idlesync/internal/logger"
	"github.com/customeros/idlesync/services/command"
	"github.com/customeros/idlesync/services/events"
	"github.com/customeros/idlesync/services/imap"
	"github.com/customeros/idlesync/services/watcher"
)

type Services struct {
	EventPublisher interfaces.EventPublisher
	IMAPGateway    interfaces.IMAPGateway
	CommandRunner  interfaces.CommandRunner
	Dispatcher     interfaces.HandlerDispatcher
	Supervisor     *watcher.Supervisor
}

func InitServices(cfg *config.Config, log logger.Logger) (*Services, error) {
	publisher, err := events.NewEventPublisher(cfg.AppConfig.RabbitMQURL, log, events.DefaultPublisherConfig())
	if err != nil {
		return nil, err
	}

	gateway := imap.NewGateway(log)
	runner := command.NewShellRunner()
	dispatcher := command.NewDispatcher(runner, log)

	supervisor := watcher.NewSupervisor(
		cfg.Watch.Accounts,
		cfg.Watch.Settings,
		gateway,
		dispatcher,
		log,
		watcher.WithPublisher(publisher),
	)

	return &Services{
		EventPublisher: publisher,
		IMAPGateway:    gateway,
		CommandRunner:  runner,
		Dispatcher:     dispatcher,
		Supervisor:     supervisor,
	}, nil
}

func (s *Services) Close() error {
	if s.EventPublisher != nil {
		return s.EventPublisher.Close()
	}
	return nil
}
