package dag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// CreateTableMethods defines the interface for table creation.
type CreateTableMethods interface {
	CreateTable(ctx context.Context, table string, schema *models.TableSchema) error
}

// CreateTableNode creates the target table if it does not exist.
type CreateTableNode struct {
	*BaseNode
	hiveSvc CreateTableMethods
}

// NewCreateTableNode creates a new table creation node.
func NewCreateTableNode(hiveSvc CreateTableMethods, logger *zap.Logger) *CreateTableNode {
	return &CreateTableNode{
		BaseNode: NewBaseNode(models.StageCreateTable, "Failed to create Hive table", logger),
		hiveSvc:  hiveSvc,
	}
}

// Execute submits the CREATE TABLE statement. It refuses to run without a schema.
func (n *CreateTableNode) Execute(ctx context.Context, run *models.Run) (string, error) {
	if run.Schema.IsEmpty() {
		return "", apperrors.ErrSchemaAbsent
	}

	if err := n.hiveSvc.CreateTable(ctx, run.TableName, run.Schema); err != nil {
		return "", fmt.Errorf("create table: %w", err)
	}

	n.Logger().Info("Hive table created", zap.String("table", run.TableName))
	return fmt.Sprintf("Table %s is ready", run.TableName), nil
}
