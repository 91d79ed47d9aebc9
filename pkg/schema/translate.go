package schema

import "github.com/ekaya-inc/ekaya-ingest/pkg/models"

// Native type names produced by inference. They follow the dtype names of
// the dataframe libraries the datasets are usually prepared with, so a
// schema inferred here matches one inferred upstream.
const (
	NativeInt64   = "int64"
	NativeFloat64 = "float64"
	NativeBool    = "bool"
	NativeObject  = "object"
)

var typeMapping = map[string]models.SemanticType{
	NativeInt64:   models.SemanticInteger,
	NativeFloat64: models.SemanticFloat,
	NativeObject:  models.SemanticString,
	NativeBool:    models.SemanticBoolean,
}

// NativeColumn is a column name paired with its native type name.
type NativeColumn struct {
	Name       string
	NativeType string
}

// TranslateType maps a native type name to a semantic type.
// Unknown names map to STRING.
func TranslateType(native string) models.SemanticType {
	if t, ok := typeMapping[native]; ok {
		return t
	}
	return models.SemanticString
}

// Translate maps each native column to a ColumnSpec, preserving order and length.
func Translate(columns []NativeColumn) *models.TableSchema {
	specs := make([]models.ColumnSpec, len(columns))
	for i, c := range columns {
		specs[i] = models.ColumnSpec{
			Name:       c.Name,
			NativeType: c.NativeType,
			Type:       TranslateType(c.NativeType),
		}
	}
	return &models.TableSchema{Columns: specs}
}
