package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/executor"
	"github.com/ekaya-inc/ekaya-ingest/pkg/services/dag"
)

// HDFSService runs `hdfs dfs` commands inside the container.
type HDFSService struct {
	exec   executor.Executor
	binary string
	logger *zap.Logger
}

var (
	_ dag.UploadMethods     = (*HDFSService)(nil)
	_ dag.StagedFileMethods = (*HDFSService)(nil)
)

// NewHDFSService creates an HDFSService. binary defaults to "hdfs".
func NewHDFSService(exec executor.Executor, binary string, logger *zap.Logger) *HDFSService {
	if binary == "" {
		binary = "hdfs"
	}
	return &HDFSService{
		exec:   exec,
		binary: binary,
		logger: logger.Named("hdfs"),
	}
}

func (s *HDFSService) dfs(args ...string) []string {
	return append([]string{s.binary, "dfs"}, args...)
}

// EnsureDir creates dir and any missing parents. Succeeds if it already exists.
func (s *HDFSService) EnsureDir(ctx context.Context, dir string) error {
	if _, err := executor.Run(ctx, s.exec, s.dfs("-mkdir", "-p", dir)); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	s.logger.Debug("HDFS directory ready", zap.String("dir", dir))
	return nil
}

// Put copies a container-local file to target. Without overwrite an existing
// target is an error.
func (s *HDFSService) Put(ctx context.Context, localPath, target string, overwrite bool) error {
	args := []string{"-put"}
	if overwrite {
		args = append(args, "-f")
	}
	args = append(args, localPath, target)

	if _, err := executor.Run(ctx, s.exec, s.dfs(args...)); err != nil {
		return fmt.Errorf("put %s: %w", target, err)
	}
	s.logger.Debug("Copied file into HDFS", zap.String("target", target))
	return nil
}

// Exists reports whether p exists. `-test -e` exits 1 for a missing path;
// any other non-zero exit is an error.
func (s *HDFSService) Exists(ctx context.Context, p string) (bool, error) {
	res, err := s.exec.Exec(ctx, s.dfs("-test", "-e", p))
	if err != nil {
		return false, fmt.Errorf("test %s: %w", p, err)
	}
	switch res.ExitCode {
	case 0:
		return true, nil
	case 1:
		return false, nil
	default:
		return false, fmt.Errorf("test %s: %w", p, res.Err())
	}
}

// Remove deletes p, ignoring a missing path.
func (s *HDFSService) Remove(ctx context.Context, p string) error {
	if _, err := executor.Run(ctx, s.exec, s.dfs("-rm", "-f", p)); err != nil {
		return fmt.Errorf("rm %s: %w", p, err)
	}
	return nil
}
