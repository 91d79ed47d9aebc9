package models

import "strings"

// SemanticType is the target-schema type of a column.
type SemanticType string

const (
	SemanticInteger SemanticType = "INTEGER"
	SemanticFloat   SemanticType = "FLOAT"
	SemanticString  SemanticType = "STRING"
	SemanticBoolean SemanticType = "BOOLEAN"
)

// HiveType returns the Hive DDL spelling of the type.
func (t SemanticType) HiveType() string {
	switch t {
	case SemanticInteger:
		return "INT"
	case SemanticFloat:
		return "FLOAT"
	case SemanticBoolean:
		return "BOOLEAN"
	default:
		return "STRING"
	}
}

// ColumnSpec is one inferred column.
type ColumnSpec struct {
	Name       string       `json:"name" yaml:"name"`
	NativeType string       `json:"native_type" yaml:"native_type"`
	Type       SemanticType `json:"type" yaml:"type"`
}

// TableSchema is the ordered column list inferred from a CSV file.
type TableSchema struct {
	Columns []ColumnSpec `json:"columns" yaml:"columns"`
}

// IsEmpty returns true for a nil schema or one with no columns.
func (s *TableSchema) IsEmpty() bool {
	return s == nil || len(s.Columns) == 0
}

// ColumnNames returns the column names in order.
func (s *TableSchema) ColumnNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// QuoteIdentifier wraps a column name in backticks, doubling any embedded backtick.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// ColumnsDDL renders the column list for a CREATE TABLE statement:
// one "`name` TYPE" pair per line, comma separated.
func (s *TableSchema) ColumnsDDL() string {
	if s.IsEmpty() {
		return ""
	}
	parts := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		parts[i] = QuoteIdentifier(c.Name) + " " + c.Type.HiveType()
	}
	return strings.Join(parts, ",\n")
}
