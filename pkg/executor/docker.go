package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/logging"
)

// dockerAPI is the subset of the Docker Engine client used for exec.
type dockerAPI interface {
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
	Close() error
}

// DockerExecutor runs commands through the Docker Engine API exec endpoints.
type DockerExecutor struct {
	api       dockerAPI
	container string
	timeout   time.Duration
	logger    *zap.Logger
}

var _ Executor = (*DockerExecutor)(nil)

// NewDockerExecutor connects to the daemon named by DOCKER_HOST (or the default socket).
func NewDockerExecutor(containerName string, timeout time.Duration, logger *zap.Logger) (*DockerExecutor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return newDockerExecutor(cli, containerName, timeout, logger), nil
}

func newDockerExecutor(api dockerAPI, containerName string, timeout time.Duration, logger *zap.Logger) *DockerExecutor {
	return &DockerExecutor{
		api:       api,
		container: containerName,
		timeout:   timeout,
		logger:    logger.Named("docker-exec"),
	}
}

// Exec runs cmd in the container and waits for it to finish.
func (d *DockerExecutor) Exec(ctx context.Context, cmd []string) (*Result, error) {
	if len(cmd) == 0 {
		return nil, fmt.Errorf("%w: empty command", apperrors.ErrProcessFailed)
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	d.logger.Debug("Executing command",
		zap.String("container", d.container),
		zap.Strings("cmd", logging.SanitizeCommand(cmd)))

	info, err := d.api.ContainerInspect(ctx, d.container)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return nil, containerError(d.container, err)
		}
		return nil, fmt.Errorf("%w: inspect container %q: %w", apperrors.ErrProcessFailed, d.container, err)
	}
	if info.ContainerJSONBase == nil || info.State == nil || !info.State.Running {
		return nil, containerError(d.container, errors.New("not running"))
	}

	created, err := d.api.ContainerExecCreate(ctx, d.container, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		if cerrdefs.IsNotFound(err) || cerrdefs.IsConflict(err) {
			return nil, containerError(d.container, err)
		}
		return nil, fmt.Errorf("%w: create exec: %w", apperrors.ErrProcessFailed, err)
	}

	attach, err := d.api.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: attach exec: %w", apperrors.ErrProcessFailed, err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	copyDone := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		copyDone <- err
	}()

	select {
	case err := <-copyDone:
		if err != nil {
			return nil, fmt.Errorf("%w: read exec output: %w", apperrors.ErrProcessFailed, err)
		}
	case <-ctx.Done():
		attach.Close()
		<-copyDone
		return nil, fmt.Errorf("%w: %w", apperrors.ErrProcessFailed, ctx.Err())
	}

	inspect, err := d.api.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: inspect exec: %w", apperrors.ErrProcessFailed, err)
	}

	res := &Result{
		Cmd:      cmd,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: inspect.ExitCode,
	}
	if !res.Success() {
		d.logger.Debug("Command exited non-zero",
			zap.Int("exit_code", res.ExitCode),
			zap.String("stderr", logging.SanitizeOutput(res.Stderr)))
	}
	return res, nil
}

// Close releases the daemon connection.
func (d *DockerExecutor) Close() error {
	return d.api.Close()
}
