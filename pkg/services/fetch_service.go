package services

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/executor"
	"github.com/ekaya-inc/ekaya-ingest/pkg/logging"
	"github.com/ekaya-inc/ekaya-ingest/pkg/services/dag"
)

// Download tools accepted in fetch.tool.
const (
	FetchToolWget = "wget"
	FetchToolCurl = "curl"
)

// FetchService downloads the source file into the container filesystem.
type FetchService struct {
	exec   executor.Executor
	tool   string
	logger *zap.Logger
}

var _ dag.FetchMethods = (*FetchService)(nil)

// NewFetchService creates a FetchService using wget or curl inside the container.
func NewFetchService(exec executor.Executor, tool string, logger *zap.Logger) *FetchService {
	if tool == "" {
		tool = FetchToolWget
	}
	return &FetchService{
		exec:   exec,
		tool:   tool,
		logger: logger.Named("fetch"),
	}
}

// Fetch creates the parent directory, downloads url to localPath and reports its size.
func (s *FetchService) Fetch(ctx context.Context, url, localPath string) (*dag.FetchResult, error) {
	if _, err := executor.Run(ctx, s.exec, []string{"mkdir", "-p", path.Dir(localPath)}); err != nil {
		return nil, fmt.Errorf("create %s: %w", path.Dir(localPath), err)
	}

	cmd, err := s.downloadCommand(url, localPath)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Downloading source",
		zap.String("url", logging.SanitizeURL(url)),
		zap.String("tool", s.tool),
		zap.String("local_path", localPath))

	if _, err := executor.Run(ctx, s.exec, cmd); err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}

	res, err := executor.Run(ctx, s.exec, []string{"stat", "-c", "%s", localPath})
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", localPath, err)
	}
	size, err := strconv.ParseInt(strings.TrimSpace(string(res.Stdout)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: size of %s: %w", apperrors.ErrParseFailure, localPath, err)
	}

	return &dag.FetchResult{Bytes: size}, nil
}

func (s *FetchService) downloadCommand(url, localPath string) ([]string, error) {
	switch s.tool {
	case FetchToolWget:
		return []string{"wget", "-O", localPath, url}, nil
	case FetchToolCurl:
		return []string{"curl", "-fsSL", "-o", localPath, url}, nil
	default:
		return nil, fmt.Errorf("unsupported fetch tool %q", s.tool)
	}
}
