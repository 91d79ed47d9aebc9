package dag

import (
	"context"
	"fmt"
	"path"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// UploadMethods defines the interface for copying the artifact into HDFS.
type UploadMethods interface {
	EnsureDir(ctx context.Context, dir string) error
	Put(ctx context.Context, localPath, target string, overwrite bool) error
}

// UploadNode copies the downloaded file from the container filesystem into HDFS.
type UploadNode struct {
	*BaseNode
	hdfsSvc   UploadMethods
	overwrite bool
}

// NewUploadNode creates a new upload node.
func NewUploadNode(hdfsSvc UploadMethods, overwrite bool, logger *zap.Logger) *UploadNode {
	return &UploadNode{
		BaseNode:  NewBaseNode(models.StageUpload, "Failed to upload data to HDFS", logger),
		hdfsSvc:   hdfsSvc,
		overwrite: overwrite,
	}
}

// Execute creates the target directory and puts the file. A failed put
// leaves the directory in place.
func (n *UploadNode) Execute(ctx context.Context, run *models.Run) (string, error) {
	dir := path.Dir(run.HDFSPath)
	if err := n.hdfsSvc.EnsureDir(ctx, dir); err != nil {
		return "", fmt.Errorf("create HDFS directory: %w", err)
	}

	if err := n.hdfsSvc.Put(ctx, run.LocalPath, run.HDFSPath, n.overwrite); err != nil {
		return "", fmt.Errorf("put file: %w", err)
	}

	n.Logger().Info("Data uploaded to HDFS",
		zap.String("local_path", run.LocalPath),
		zap.String("hdfs_path", run.HDFSPath))

	return fmt.Sprintf("Uploaded %s to %s", run.LocalPath, run.HDFSPath), nil
}
