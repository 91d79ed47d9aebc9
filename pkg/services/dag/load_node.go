package dag

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// LoadMethods defines the interface for moving an HDFS file into a table.
type LoadMethods interface {
	LoadData(ctx context.Context, hdfsPath, table string, overwrite bool) error
}

// StagedFileMethods defines the HDFS operations the load guard needs.
type StagedFileMethods interface {
	Exists(ctx context.Context, hdfsPath string) (bool, error)
	Remove(ctx context.Context, hdfsPath string) error
}

// LoadLedger records which content has been loaded into which table.
// Nil disables duplicate detection.
type LoadLedger interface {
	FindLoadedDigest(ctx context.Context, tableName, sha256 string) (*models.Run, error)
	MarkLoaded(ctx context.Context, id uuid.UUID) error
}

// LoadNode loads the uploaded file into the table exactly once.
type LoadNode struct {
	*BaseNode
	hiveSvc        LoadMethods
	hdfsSvc        StagedFileMethods
	ledger         LoadLedger
	overwrite      bool
	skipDuplicates bool
}

// NewLoadNode creates a new load node. ledger may be nil.
func NewLoadNode(
	hiveSvc LoadMethods,
	hdfsSvc StagedFileMethods,
	ledger LoadLedger,
	overwrite, skipDuplicates bool,
	logger *zap.Logger,
) *LoadNode {
	return &LoadNode{
		BaseNode:       NewBaseNode(models.StageLoad, "Failed to load data into Hive table", logger),
		hiveSvc:        hiveSvc,
		hdfsSvc:        hdfsSvc,
		ledger:         ledger,
		overwrite:      overwrite,
		skipDuplicates: skipDuplicates,
	}
}

// Execute runs LOAD DATA INPATH.
//
// Hive moves the source file into the warehouse, so a path that no longer
// exists means it was already consumed and the load fails with
// apperrors.ErrAlreadyLoaded instead of reaching Hive. When the ledger shows
// identical content already loaded into the table, the staged file is
// removed and the stage is skipped.
func (n *LoadNode) Execute(ctx context.Context, run *models.Run) (string, error) {
	if prev := n.findDuplicate(ctx, run); prev != nil {
		if err := n.hdfsSvc.Remove(ctx, run.HDFSPath); err != nil {
			n.Logger().Warn("Failed to remove staged duplicate", zap.String("hdfs_path", run.HDFSPath), zap.Error(err))
		}
		n.Logger().Info("Identical content already loaded; skipping load",
			zap.String("table", run.TableName),
			zap.String("previous_run_id", prev.ID.String()))
		return "", fmt.Errorf("%w: content already loaded into %s by run %s", ErrSkipped, run.TableName, prev.ID)
	}

	exists, err := n.hdfsSvc.Exists(ctx, run.HDFSPath)
	if err != nil {
		return "", fmt.Errorf("check staged file: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("%s: %w", run.HDFSPath, apperrors.ErrAlreadyLoaded)
	}

	if err := n.hiveSvc.LoadData(ctx, run.HDFSPath, run.TableName, n.overwrite); err != nil {
		return "", fmt.Errorf("load data: %w", err)
	}

	if n.ledger != nil {
		if err := n.ledger.MarkLoaded(ctx, run.ID); err != nil {
			n.Logger().Warn("Failed to record load in ledger", zap.Error(err))
		}
	}

	n.Logger().Info("Data loaded into Hive table",
		zap.String("hdfs_path", run.HDFSPath),
		zap.String("table", run.TableName))

	return fmt.Sprintf("Loaded %s into %s", run.HDFSPath, run.TableName), nil
}

// findDuplicate returns the earlier run that loaded the same content, if any.
// Ledger errors never block a load.
func (n *LoadNode) findDuplicate(ctx context.Context, run *models.Run) *models.Run {
	if n.ledger == nil || !n.skipDuplicates || n.overwrite || run.ArtifactSHA256 == "" {
		return nil
	}

	prev, err := n.ledger.FindLoadedDigest(ctx, run.TableName, run.ArtifactSHA256)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			n.Logger().Warn("Failed to query ledger for duplicate load", zap.Error(err))
		}
		return nil
	}
	if prev.ID == run.ID {
		return nil
	}
	return prev
}
