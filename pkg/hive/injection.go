package hive

import (
	"fmt"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
)

// InjectionCheckResult describes a literal that libinjection flagged.
type InjectionCheckResult struct {
	Fingerprint string // libinjection fingerprint of the detected pattern
	Field       string // what the value was going to be used as
	Value       string
}

func (r *InjectionCheckResult) Error() string {
	return fmt.Sprintf("%s: %s %q (fingerprint %s)", apperrors.ErrUnsafeLiteral, r.Field, r.Value, r.Fingerprint)
}

func (r *InjectionCheckResult) Unwrap() error {
	return apperrors.ErrUnsafeLiteral
}

// CheckLiteral screens a value that will be embedded in a HiveQL string
// literal. Returns nil if no injection pattern is detected.
//
// Example:
//
//	CheckLiteral("path", "/user/hadoop/population_data/population_data.csv") // nil
//	CheckLiteral("path", "x'; DROP TABLE population_data; --")              // non-nil
func CheckLiteral(field, value string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		Fingerprint: string(fingerprint),
		Field:       field,
		Value:       value,
	}
}
