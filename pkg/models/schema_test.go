package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSemanticType_HiveType(t *testing.T) {
	assert.Equal(t, "INT", SemanticInteger.HiveType())
	assert.Equal(t, "FLOAT", SemanticFloat.HiveType())
	assert.Equal(t, "BOOLEAN", SemanticBoolean.HiveType())
	assert.Equal(t, "STRING", SemanticString.HiveType())
	assert.Equal(t, "STRING", SemanticType("DATE").HiveType())
}

func TestTableSchema_ColumnsDDL(t *testing.T) {
	s := &TableSchema{Columns: []ColumnSpec{
		{Name: "REGION", NativeType: "int64", Type: SemanticInteger},
		{Name: "NAME", NativeType: "object", Type: SemanticString},
		{Name: "odd`name", NativeType: "float64", Type: SemanticFloat},
	}}

	assert.Equal(t, "`REGION` INT,\n`NAME` STRING,\n`odd``name` FLOAT", s.ColumnsDDL())
	assert.Equal(t, []string{"REGION", "NAME", "odd`name"}, s.ColumnNames())
	assert.False(t, s.IsEmpty())
}

func TestTableSchema_Empty(t *testing.T) {
	var nilSchema *TableSchema
	assert.True(t, nilSchema.IsEmpty())
	assert.Equal(t, "", nilSchema.ColumnsDDL())
	assert.Nil(t, nilSchema.ColumnNames())
	assert.True(t, (&TableSchema{}).IsEmpty())
}
