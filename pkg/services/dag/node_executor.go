package dag

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// ErrSkipped is returned (wrapped) by a node that decided its work is
// unnecessary. The pipeline records the stage as skipped and continues.
var ErrSkipped = errors.New("stage skipped")

// NodeExecutor defines the interface for pipeline stage execution.
// Each node wraps a service method and reports what it did.
type NodeExecutor interface {
	// Name returns the stage name (e.g., "fetch")
	Name() models.StageName

	// FailureMessage is the single line logged when the stage fails.
	FailureMessage() string

	// Execute runs the stage's work against the run, recording anything it
	// produces on the run. Returns a short outcome message.
	Execute(ctx context.Context, run *models.Run) (string, error)
}

// BaseNode provides common functionality for all pipeline nodes.
type BaseNode struct {
	nodeName       models.StageName
	failureMessage string
	logger         *zap.Logger
}

// NewBaseNode creates a new base node with common dependencies.
func NewBaseNode(nodeName models.StageName, failureMessage string, logger *zap.Logger) *BaseNode {
	return &BaseNode{
		nodeName:       nodeName,
		failureMessage: failureMessage,
		logger:         logger.Named(string(nodeName)),
	}
}

// Name returns the node name.
func (b *BaseNode) Name() models.StageName {
	return b.nodeName
}

// FailureMessage returns the message logged when the node fails.
func (b *BaseNode) FailureMessage() string {
	return b.failureMessage
}

// Logger returns the node's logger.
func (b *BaseNode) Logger() *zap.Logger {
	return b.logger
}
