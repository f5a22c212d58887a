package command

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/customeros/idlesync/interfaces"
	idlesync_errors "github.com/customeros/idlesync/internal/errors"
	"github.com/customeros/idlesync/internal/logger"
	"github.com/customeros/idlesync/internal/tracing"
)

type Dispatcher struct {
	runner interfaces.CommandRunner
	log    logger.Logger
}

func NewDispatcher(runner interfaces.CommandRunner, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		runner: runner,
		log:    log,
	}
}

// Dispatch runs commands in order and stops at the first one that fails to
// spawn or exits non-zero. The returned error names that command.
func (d *Dispatcher) Dispatch(ctx context.Context, account string, commands []string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Dispatcher.Dispatch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account)
	span.SetTag("commands", len(commands))

	log := d.log.With(zap.String("account", account))

	for i, command := range commands {
		result, err := d.runner.Run(ctx, command)
		if err != nil {
			log.Error("Handler failed to start", zap.String("command", command), zap.Error(err))
			err = errors.Wrapf(idlesync_errors.ErrCommandFailed, "%q: %v", command, err)
			tracing.TraceErr(span, err)
			return err
		}
		if !result.Success {
			stderr := strings.TrimSpace(result.Stderr)
			log.Error("Handler failed",
				zap.String("command", command),
				zap.Int("exit_code", result.ExitCode),
				zap.String("stderr", stderr))
			err = errors.Wrapf(idlesync_errors.ErrCommandFailed, "%q exited with %d", command, result.ExitCode)
			tracing.TraceErr(span, err)
			span.SetTag("commands.run", i+1)
			return err
		}
		log.Info("Handler succeeded", zap.String("command", command))
	}

	span.SetTag("commands.run", len(commands))
	return nil
}
