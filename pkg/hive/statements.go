// Package hive builds the HiveQL statements the pipeline submits through
// beeline and parses beeline's csv2 output.
package hive

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// identifierPattern accepts `name` or `db.name`.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateIdentifier rejects table and column names that would need quoting.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidIdentifier, name)
	}
	return nil
}

// CreateTableOptions controls the storage clauses of CREATE TABLE.
type CreateTableOptions struct {
	// SkipHeader adds skip.header.line.count=1 so the CSV header row is not read as data.
	SkipHeader bool
}

// CreateTableStatement renders an idempotent CREATE TABLE for a comma-delimited
// text table. The output is a pure function of its inputs.
func CreateTableStatement(table string, schema *models.TableSchema, opts CreateTableOptions) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", err
	}
	if schema.IsEmpty() {
		return "", apperrors.ErrSchemaAbsent
	}

	columns := "    " + strings.ReplaceAll(schema.ColumnsDDL(), "\n", "\n    ")

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n%s\n)\n", table, columns)
	b.WriteString("ROW FORMAT DELIMITED\n")
	b.WriteString("FIELDS TERMINATED BY ','\n")
	b.WriteString("STORED AS TEXTFILE")
	if opts.SkipHeader {
		b.WriteString("\nTBLPROPERTIES (\"skip.header.line.count\"=\"1\")")
	}
	b.WriteString(";")
	return b.String(), nil
}

// LoadDataStatement renders LOAD DATA INPATH for a file already in HDFS.
// Hive moves the file into the table's warehouse directory.
func LoadDataStatement(hdfsPath, table string, overwrite bool) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", err
	}
	if hdfsPath == "" {
		return "", fmt.Errorf("%w: empty HDFS path", apperrors.ErrUnsafeLiteral)
	}
	if result := CheckLiteral("hdfs path", hdfsPath); result != nil {
		return "", result
	}

	mode := "INTO"
	if overwrite {
		mode = "OVERWRITE INTO"
	}
	return fmt.Sprintf("LOAD DATA INPATH %s %s TABLE %s;", QuoteLiteral(hdfsPath), mode, table), nil
}

// SelectStatement renders the validation query.
func SelectStatement(table string, columns []string, limit int) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", err
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("%w: no columns selected", apperrors.ErrInvalidIdentifier)
	}
	for _, col := range columns {
		if err := ValidateIdentifier(col); err != nil {
			return "", err
		}
	}
	if limit <= 0 {
		return "", fmt.Errorf("limit must be positive, got %d", limit)
	}
	return fmt.Sprintf("SELECT %s FROM %s LIMIT %d;", strings.Join(columns, ", "), table, limit), nil
}

// QuoteLiteral wraps s in single quotes, escaping backslashes and quotes.
func QuoteLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
