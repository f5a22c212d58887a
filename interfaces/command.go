package interfaces

import (
	"context"

	"github.com/customeros/idlesync/internal/models"
)

type CommandRunner interface {
	Run(ctx context.Context, command string) (models.CommandResult, error)
}

type HandlerDispatcher interface {
	Dispatch(ctx context.Context, account string, commands []string) error
}
