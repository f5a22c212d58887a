package command

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/idlesync/internal/models"
	"github.com/customeros/idlesync/internal/tracing"
)

const shell = "/bin/sh"

// ShellRunner runs a command line through sh -c with the process environment.
type ShellRunner struct{}

func NewShellRunner() *ShellRunner {
	return &ShellRunner{}
}

// Run blocks until the command exits. A non-zero exit is reported in the
// result, not as an error; the error is reserved for spawn failures.
func (r *ShellRunner) Run(ctx context.Context, command string) (models.CommandResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ShellRunner.Run")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("command", command)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Stderr = &stderr

	result := models.CommandResult{Command: command}

	err := cmd.Run()
	result.Stderr = stderr.String()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			span.SetTag("exit_code", result.ExitCode)
			return result, nil
		}
		tracing.TraceErr(span, err)
		return result, errors.Wrapf(err, "failed to spawn %q", command)
	}

	result.Success = true
	span.SetTag("exit_code", 0)
	return result, nil
}
