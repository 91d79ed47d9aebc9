package dag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// FetchResult describes the file downloaded into the container.
type FetchResult struct {
	Bytes int64
}

// FetchMethods defines the interface for downloading the source into the container.
type FetchMethods interface {
	Fetch(ctx context.Context, url, localPath string) (*FetchResult, error)
}

// FetchNode downloads the source file into the container filesystem.
type FetchNode struct {
	*BaseNode
	fetchSvc FetchMethods
}

// NewFetchNode creates a new fetch node.
func NewFetchNode(fetchSvc FetchMethods, logger *zap.Logger) *FetchNode {
	return &FetchNode{
		BaseNode: NewBaseNode(models.StageFetch, "Failed to download data", logger),
		fetchSvc: fetchSvc,
	}
}

// Execute runs the download.
func (n *FetchNode) Execute(ctx context.Context, run *models.Run) (string, error) {
	result, err := n.fetchSvc.Fetch(ctx, run.SourceURL, run.LocalPath)
	if err != nil {
		return "", fmt.Errorf("fetch source: %w", err)
	}
	run.ArtifactBytes = result.Bytes

	n.Logger().Info("Data downloaded successfully",
		zap.String("local_path", run.LocalPath),
		zap.Int64("bytes", result.Bytes))

	return fmt.Sprintf("Downloaded %d bytes to %s", result.Bytes, run.LocalPath), nil
}
