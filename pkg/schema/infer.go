package schema

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// missingValues are cell contents treated as absent.
var missingValues = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

var boolValues = map[string]struct{}{
	"True": {}, "TRUE": {}, "true": {}, "False": {}, "FALSE": {}, "false": {},
}

// Result is the outcome of inferring a schema from CSV content.
type Result struct {
	Schema      *models.TableSchema
	RowsRead    int
	RowsSkipped int
}

type columnStats struct {
	missing    int
	nonMissing int
	allInt     bool
	allNumeric bool
	allBool    bool
}

func newColumnStats() *columnStats {
	return &columnStats{allInt: true, allNumeric: true, allBool: true}
}

func (s *columnStats) observe(value string) {
	if _, ok := missingValues[value]; ok {
		s.missing++
		return
	}
	s.nonMissing++

	trimmed := strings.TrimSpace(value)
	if s.allInt {
		if _, err := strconv.ParseInt(trimmed, 10, 64); err != nil {
			s.allInt = false
		}
	}
	if s.allNumeric && !s.allInt {
		if !isDecimalFloat(trimmed) {
			s.allNumeric = false
		}
	}
	if s.allBool {
		if _, ok := boolValues[value]; !ok {
			s.allBool = false
		}
	}
}

// nativeType decides the column type from the observed values.
func (s *columnStats) nativeType(rows int) string {
	switch {
	case rows == 0:
		return NativeObject
	case s.nonMissing == 0:
		return NativeFloat64
	case s.allInt && s.missing == 0:
		return NativeInt64
	case s.allInt || s.allNumeric:
		return NativeFloat64
	case s.allBool && s.missing == 0:
		return NativeBool
	default:
		return NativeObject
	}
}

func isDecimalFloat(s string) bool {
	if s == "" || strings.ContainsAny(s, "xXpP_") {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// Infer reads comma-delimited text with a header row and infers one native
// type per column. Records with more fields than the header, or that fail
// to parse, are skipped; short records are padded with missing values.
// Empty input or an unreadable header returns apperrors.ErrParseFailure.
func Infer(r io.Reader) (*Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: no columns to parse from file", apperrors.ErrParseFailure)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", apperrors.ErrParseFailure, err)
	}

	names := ColumnNames(header)
	stats := make([]*columnStats, len(names))
	for i := range stats {
		stats[i] = newColumnStats()
	}

	result := &Result{}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.RowsSkipped++
				continue
			}
			return nil, fmt.Errorf("%w: %v", apperrors.ErrParseFailure, err)
		}

		if len(record) > len(names) {
			result.RowsSkipped++
			continue
		}

		for i := range names {
			value := ""
			if i < len(record) {
				value = record[i]
			}
			stats[i].observe(value)
		}
		result.RowsRead++
	}

	columns := make([]NativeColumn, len(names))
	for i, name := range names {
		columns[i] = NativeColumn{Name: name, NativeType: stats[i].nativeType(result.RowsRead)}
	}
	result.Schema = Translate(columns)

	return result, nil
}

// ColumnNames cleans a header row: strips a UTF-8 BOM, names empty cells
// "Unnamed: <index>" and de-duplicates repeats as name.1, name.2, ...
func ColumnNames(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	// next suffix to try per base name
	next := make(map[string]int, len(header))

	for i, col := range header {
		if i == 0 {
			col = strings.TrimPrefix(col, "\ufeff")
		}
		if col == "" {
			col = fmt.Sprintf("Unnamed: %d", i)
		}

		name := col
		if used[name] {
			n := next[col]
			if n == 0 {
				n = 1
			}
			for {
				name = fmt.Sprintf("%s.%d", col, n)
				n++
				if !used[name] {
					break
				}
			}
			next[col] = n
		}
		names[i] = name
		used[name] = true
	}

	return names
}
