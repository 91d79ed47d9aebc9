package dag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// ValidateMethods defines the interface for the smoke-test query.
type ValidateMethods interface {
	Validate(ctx context.Context, table string, columns []string, limit int) (*models.ValidationResult, error)
}

// ValidateNode queries a few rows back out of the table.
type ValidateNode struct {
	*BaseNode
	hiveSvc ValidateMethods
	columns []string
	limit   int
}

// NewValidateNode creates a new validation node.
func NewValidateNode(hiveSvc ValidateMethods, columns []string, limit int, logger *zap.Logger) *ValidateNode {
	return &ValidateNode{
		BaseNode: NewBaseNode(models.StageValidate, "Failed to validate data", logger),
		hiveSvc:  hiveSvc,
		columns:  columns,
		limit:    limit,
	}
}

// Execute selects from the run's table, not a fixed name.
func (n *ValidateNode) Execute(ctx context.Context, run *models.Run) (string, error) {
	result, err := n.hiveSvc.Validate(ctx, run.TableName, n.columns, n.limit)
	if err != nil {
		return "", fmt.Errorf("validate: %w", err)
	}
	run.Validation = result

	n.Logger().Info("Validation query succeeded",
		zap.String("table", run.TableName),
		zap.Int("rows", len(result.Rows)))

	return fmt.Sprintf("Fetched %d rows from %s", len(result.Rows), run.TableName), nil
}
