package executor

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/config"
)

// Executor modes accepted in container.mode.
const (
	ModeAPI = "api"
	ModeCLI = "cli"
)

// New builds the executor selected by cfg.Mode.
func New(cfg config.ContainerConfig, logger *zap.Logger) (Executor, error) {
	switch cfg.Mode {
	case ModeAPI, "":
		return NewDockerExecutor(cfg.Name, cfg.ExecTimeout, logger)
	case ModeCLI:
		return NewCLIExecutor(cfg.DockerBinary, cfg.Name, cfg.ExecTimeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown container mode %q", cfg.Mode)
	}
}
