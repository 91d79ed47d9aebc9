package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/logging"
)

// CLIExecutor runs commands by shelling out to `docker exec`.
// Useful where the daemon socket is not reachable but a docker-compatible
// CLI is (podman, nerdctl, remote contexts).
type CLIExecutor struct {
	binary    string
	container string
	timeout   time.Duration
	logger    *zap.Logger
}

var _ Executor = (*CLIExecutor)(nil)

// NewCLIExecutor creates an executor using the given docker binary.
func NewCLIExecutor(binary, containerName string, timeout time.Duration, logger *zap.Logger) *CLIExecutor {
	if binary == "" {
		binary = "docker"
	}
	return &CLIExecutor{
		binary:    binary,
		container: containerName,
		timeout:   timeout,
		logger:    logger.Named("cli-exec"),
	}
}

// Exec runs `docker exec <container> cmd...` and captures its output.
func (c *CLIExecutor) Exec(ctx context.Context, cmd []string) (*Result, error) {
	if len(cmd) == 0 {
		return nil, fmt.Errorf("%w: empty command", apperrors.ErrProcessFailed)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := append([]string{"exec", c.container}, cmd...)
	c.logger.Debug("Executing command",
		zap.String("binary", c.binary),
		zap.String("container", c.container),
		zap.Strings("cmd", logging.SanitizeCommand(cmd)))

	var stdout, stderr bytes.Buffer
	proc := exec.CommandContext(ctx, c.binary, args...)
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	proc.WaitDelay = time.Second

	err := proc.Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrProcessFailed, ctx.Err())
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: run %s: %w", apperrors.ErrProcessFailed, c.binary, err)
		}
		if isMissingContainer(stderr.String()) {
			return nil, containerError(c.container, errors.New(strings.TrimSpace(stderr.String())))
		}
	}

	res := &Result{
		Cmd:      cmd,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: proc.ProcessState.ExitCode(),
	}
	if !res.Success() {
		c.logger.Debug("Command exited non-zero",
			zap.Int("exit_code", res.ExitCode),
			zap.String("stderr", logging.SanitizeOutput(res.Stderr)))
	}
	return res, nil
}

// Close is a no-op; there is no persistent connection.
func (c *CLIExecutor) Close() error {
	return nil
}

func isMissingContainer(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "no such container") ||
		(strings.Contains(lower, "container") && strings.Contains(lower, "is not running"))
}
