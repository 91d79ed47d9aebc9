package hive

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

func censusSchema() *models.TableSchema {
	return &models.TableSchema{Columns: []models.ColumnSpec{
		{Name: "REGION", NativeType: "int64", Type: models.SemanticInteger},
		{Name: "DIVISION", NativeType: "int64", Type: models.SemanticInteger},
		{Name: "STATE", NativeType: "int64", Type: models.SemanticInteger},
		{Name: "NAME", NativeType: "object", Type: models.SemanticString},
	}}
}

func TestCreateTableStatement(t *testing.T) {
	stmt, err := CreateTableStatement("population_data", censusSchema(), CreateTableOptions{})
	require.NoError(t, err)

	want := "CREATE TABLE IF NOT EXISTS population_data (\n" +
		"    `REGION` INT,\n" +
		"    `DIVISION` INT,\n" +
		"    `STATE` INT,\n" +
		"    `NAME` STRING\n" +
		")\n" +
		"ROW FORMAT DELIMITED\n" +
		"FIELDS TERMINATED BY ','\n" +
		"STORED AS TEXTFILE;"
	assert.Equal(t, want, stmt)
}

func TestCreateTableStatement_SkipHeader(t *testing.T) {
	stmt, err := CreateTableStatement("population_data", censusSchema(), CreateTableOptions{SkipHeader: true})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stmt, "STORED AS TEXTFILE\nTBLPROPERTIES (\"skip.header.line.count\"=\"1\");"))
}

func TestCreateTableStatement_IdempotentText(t *testing.T) {
	first, err := CreateTableStatement("t", censusSchema(), CreateTableOptions{SkipHeader: true})
	require.NoError(t, err)
	second, err := CreateTableStatement("t", censusSchema(), CreateTableOptions{SkipHeader: true})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, first, "IF NOT EXISTS")
	assert.Contains(t, first, " t (")
}

func TestCreateTableStatement_Errors(t *testing.T) {
	_, err := CreateTableStatement("population_data", nil, CreateTableOptions{})
	assert.ErrorIs(t, err, apperrors.ErrSchemaAbsent)

	_, err = CreateTableStatement("population_data", &models.TableSchema{}, CreateTableOptions{})
	assert.ErrorIs(t, err, apperrors.ErrSchemaAbsent)

	_, err = CreateTableStatement("drop table x;", censusSchema(), CreateTableOptions{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidIdentifier)
}

func TestCreateTableStatement_QuotesOddColumnNames(t *testing.T) {
	schema := &models.TableSchema{Columns: []models.ColumnSpec{
		{Name: "Unnamed: 0", Type: models.SemanticFloat},
		{Name: "we`ird", Type: models.SemanticBoolean},
	}}
	stmt, err := CreateTableStatement("t", schema, CreateTableOptions{})
	require.NoError(t, err)
	assert.Contains(t, stmt, "    `Unnamed: 0` FLOAT,\n    `we``ird` BOOLEAN\n")
}

func TestLoadDataStatement(t *testing.T) {
	stmt, err := LoadDataStatement("/user/hadoop/population_data/population_data.csv", "population_data", false)
	require.NoError(t, err)
	assert.Equal(t, "LOAD DATA INPATH '/user/hadoop/population_data/population_data.csv' INTO TABLE population_data;", stmt)

	stmt, err = LoadDataStatement("/data/x.csv", "db.t", true)
	require.NoError(t, err)
	assert.Equal(t, "LOAD DATA INPATH '/data/x.csv' OVERWRITE INTO TABLE db.t;", stmt)
}

func TestLoadDataStatement_RejectsInjection(t *testing.T) {
	_, err := LoadDataStatement("/x.csv' OR '1'='1", "population_data", false)
	require.ErrorIs(t, err, apperrors.ErrUnsafeLiteral)

	var result *InjectionCheckResult
	require.ErrorAs(t, err, &result)
	assert.NotEmpty(t, result.Fingerprint)

	_, err = LoadDataStatement("", "population_data", false)
	require.ErrorIs(t, err, apperrors.ErrUnsafeLiteral)
}

func TestSelectStatement(t *testing.T) {
	stmt, err := SelectStatement("population_data", []string{"REGION", "DIVISION", "STATE", "NAME"}, 5)
	require.NoError(t, err)
	assert.Equal(t, "SELECT REGION, DIVISION, STATE, NAME FROM population_data LIMIT 5;", stmt)

	stmt, err = SelectStatement("other_table", []string{"a"}, 1)
	require.NoError(t, err)
	assert.Contains(t, stmt, "FROM other_table ")

	_, err = SelectStatement("t", nil, 5)
	assert.ErrorIs(t, err, apperrors.ErrInvalidIdentifier)
	_, err = SelectStatement("t", []string{"a;b"}, 5)
	assert.ErrorIs(t, err, apperrors.ErrInvalidIdentifier)
	_, err = SelectStatement("t", []string{"a"}, 0)
	assert.Error(t, err)
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, `'/plain/path'`, QuoteLiteral("/plain/path"))
	assert.Equal(t, `'it\'s'`, QuoteLiteral("it's"))
	assert.Equal(t, `'a\\b'`, QuoteLiteral(`a\b`))
}

func TestCheckLiteral(t *testing.T) {
	assert.Nil(t, CheckLiteral("path", "/user/hadoop/population_data/population_data.csv"))
	assert.NotNil(t, CheckLiteral("path", "1' OR '1'='1"))
}
