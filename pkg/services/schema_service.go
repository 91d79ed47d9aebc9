package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/executor"
	"github.com/ekaya-inc/ekaya-ingest/pkg/schema"
	"github.com/ekaya-inc/ekaya-ingest/pkg/services/dag"
)

// SchemaService infers a table schema from the container-local copy of the
// source file. It reads the file from the container, never from HDFS.
type SchemaService struct {
	exec   executor.Executor
	logger *zap.Logger
}

var _ dag.InferSchemaMethods = (*SchemaService)(nil)

// NewSchemaService creates a SchemaService.
func NewSchemaService(exec executor.Executor, logger *zap.Logger) *SchemaService {
	return &SchemaService{
		exec:   exec,
		logger: logger.Named("schema"),
	}
}

// InferSchema reads localPath and infers column types from its content.
func (s *SchemaService) InferSchema(ctx context.Context, localPath string) (*dag.InferSchemaResult, error) {
	res, err := executor.Run(ctx, s.exec, []string{"cat", localPath})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", localPath, err)
	}

	inferred, err := schema.Infer(bytes.NewReader(res.Stdout))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", localPath, err)
	}

	digest := sha256.Sum256(res.Stdout)
	s.logger.Debug("Read artifact for inference",
		zap.String("local_path", localPath),
		zap.Int("bytes", len(res.Stdout)),
		zap.Int("rows_read", inferred.RowsRead),
		zap.Int("rows_skipped", inferred.RowsSkipped))

	return &dag.InferSchemaResult{
		Schema:      inferred.Schema,
		SHA256:      hex.EncodeToString(digest[:]),
		Bytes:       int64(len(res.Stdout)),
		RowsRead:    inferred.RowsRead,
		RowsSkipped: inferred.RowsSkipped,
	}, nil
}
