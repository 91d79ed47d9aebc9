package dag

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/logging"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// AvailabilityMethods defines the interface for the source reachability probe.
type AvailabilityMethods interface {
	IsAccessible(ctx context.Context, url string) bool
}

// AvailabilityNode gates the pipeline on the source URL answering a HEAD request.
type AvailabilityNode struct {
	*BaseNode
	checker AvailabilityMethods
}

// NewAvailabilityNode creates a new availability node.
func NewAvailabilityNode(checker AvailabilityMethods, logger *zap.Logger) *AvailabilityNode {
	return &AvailabilityNode{
		BaseNode: NewBaseNode(models.StageAvailability, "URL is not accessible", logger),
		checker:  checker,
	}
}

// Execute probes the run's source URL. It never runs a container command.
func (n *AvailabilityNode) Execute(ctx context.Context, run *models.Run) (string, error) {
	if !n.checker.IsAccessible(ctx, run.SourceURL) {
		return "", apperrors.ErrNetworkUnreachable
	}

	n.Logger().Debug("Source URL is accessible", zap.String("url", logging.SanitizeURL(run.SourceURL)))
	return "Source URL is accessible", nil
}
