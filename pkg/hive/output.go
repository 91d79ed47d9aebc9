package hive

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// ParseCSV2 parses beeline output produced with
// --outputformat=csv2 --showHeader=true. The first record is the header.
// Column labels are reported without a "table." prefix.
func ParseCSV2(output []byte) (*models.ValidationResult, error) {
	r := csv.NewReader(bytes.NewReader(output))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty beeline output", apperrors.ErrParseFailure)
		}
		return nil, fmt.Errorf("%w: beeline header: %w", apperrors.ErrParseFailure, err)
	}
	for i, h := range header {
		if idx := strings.LastIndex(h, "."); idx >= 0 {
			header[i] = h[idx+1:]
		}
	}

	result := &models.ValidationResult{Header: header, Rows: [][]string{}}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: beeline row: %w", apperrors.ErrParseFailure, err)
		}
		result.Rows = append(result.Rows, record)
	}
	return result, nil
}

// FormatRows renders the data rows as comma-separated lines for display.
// The header parsed off by ParseCSV2 is not repeated.
func FormatRows(v *models.ValidationResult) string {
	if v == nil {
		return ""
	}
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.WriteAll(v.Rows)
	return b.String()
}
