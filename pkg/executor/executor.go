package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/logging"
	"github.com/ekaya-inc/ekaya-ingest/pkg/retry"
)

// Executor runs a command inside the target container.
//
// Exec returns an error only when the command could not be run at all
// (container missing, daemon unreachable, binary not found). A command that
// ran and exited non-zero is reported through Result.ExitCode; use Run to
// turn that into an error.
type Executor interface {
	Exec(ctx context.Context, cmd []string) (*Result, error)
	Close() error
}

// Result is the captured outcome of one command.
type Result struct {
	Cmd      []string
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Success returns true if the command exited zero.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Err returns a *ProcessError for a non-zero exit, nil otherwise.
func (r *Result) Err() error {
	if r.Success() {
		return nil
	}
	output := strings.TrimSpace(string(r.Stderr))
	if output == "" {
		// beeline reports most failures on stdout
		output = strings.TrimSpace(string(r.Stdout))
	}
	return &ProcessError{
		Cmd:      r.Cmd,
		ExitCode: r.ExitCode,
		Output:   output,
	}
}

// ProcessError is a command that ran and exited non-zero.
type ProcessError struct {
	Cmd      []string
	ExitCode int
	Output   string
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d",
		strings.Join(logging.SanitizeCommand(e.Cmd), " "), e.ExitCode)
	if e.Output != "" {
		msg += ": " + logging.TruncateString(e.Output, logging.MaxStatementLogLength)
	}
	return msg
}

func (e *ProcessError) Unwrap() error {
	return apperrors.ErrProcessFailed
}

// IsRetryable reports whether the output looks like a transient failure,
// e.g. HiveServer2 still starting or the NameNode in safe mode.
func (e *ProcessError) IsRetryable() bool {
	return retry.IsTransientMessage(e.Output)
}

// Run executes cmd and converts a non-zero exit into a *ProcessError.
// The Result is returned alongside a ProcessError so callers can inspect output.
func Run(ctx context.Context, e Executor, cmd []string) (*Result, error) {
	res, err := e.Exec(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// containerError marks a failure to reach the container as both a process
// failure and a container-not-running condition.
func containerError(name string, cause error) error {
	return fmt.Errorf("%w: container %q: %w: %w",
		apperrors.ErrProcessFailed, name, apperrors.ErrContainerNotRunning, cause)
}
