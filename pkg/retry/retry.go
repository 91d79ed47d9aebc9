package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Config defines retry behavior with exponential backoff.
// MaxRetries counts attempts after the first one; zero means a single attempt.
type Config struct {
	MaxRetries       int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	Multiplier       float64
	JitterFactor     float64 // 0.0-1.0
	MaxSameErrorType int     // consecutive same-class failures before giving up early (0 disables)
}

// DefaultConfig returns the settings used for container commands:
// 3 retries starting at 500ms, capped at 10s, doubling with 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:       3,
		InitialDelay:     500 * time.Millisecond,
		MaxDelay:         10 * time.Second,
		Multiplier:       2.0,
		JitterFactor:     0.1,
		MaxSameErrorType: 3,
	}
}

// NoRetry returns a config that runs fn exactly once.
func NoRetry() *Config {
	return &Config{MaxRetries: 0}
}

// WithMaxRetries returns a copy of DefaultConfig with the retry count replaced.
func WithMaxRetries(n int) *Config {
	if n <= 0 {
		return NoRetry()
	}
	cfg := DefaultConfig()
	cfg.MaxRetries = n
	return cfg
}

func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// wait sleeps for the current delay and returns the next one.
// Returns ctx.Err() if the context ends first.
func wait(ctx context.Context, cfg *Config, delay time.Duration) (time.Duration, error) {
	timer := time.NewTimer(applyJitter(delay, cfg.JitterFactor))
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return delay, ctx.Err()
	}

	next := time.Duration(float64(delay) * cfg.Multiplier)
	if cfg.MaxDelay > 0 && next > cfg.MaxDelay {
		next = cfg.MaxDelay
	}
	return next, nil
}

// RetryableError is implemented by errors that know whether they are transient.
// executor.ProcessError implements it by inspecting the command's stderr.
type RetryableError interface {
	error
	IsRetryable() bool
}

// transientPatterns are substrings (lowercase) of failures worth another attempt:
// network blips, HiveServer2 still starting, NameNode in safe mode.
var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"timed out",
	"read timeout",
	"connect timeout",
	"client.timeout exceeded",
	"temporary failure",
	"network is unreachable",
	"could not open client transport",
	"could not open connection to the hs2 server",
	"safe mode",
	"service unavailable",
	"too many requests",
	"bad gateway",
	"gateway timeout",
	"status 502",
	"status 503",
	"status 504",
	"status code 502",
	"status code 503",
	"status code 504",
}

// IsRetryable reports whether err is transient.
// The first error in the chain implementing RetryableError decides; errors
// without one are matched against known transient message patterns.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var r RetryableError
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	return matchesTransient(err.Error())
}

// IsTransientMessage reports whether a raw message (e.g. process stderr)
// looks like a transient failure.
func IsTransientMessage(msg string) bool {
	return matchesTransient(msg)
}

func matchesTransient(msg string) bool {
	msg = strings.ToLower(msg)
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// classifyErrorType buckets an error so repeated failures of the same kind
// can be detected.
func classifyErrorType(err error) string {
	if err == nil {
		return "nil"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "could not open"):
		return "connection"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return "timeout"
	case strings.Contains(msg, "safe mode"):
		return "safe_mode"
	case strings.Contains(msg, "status 50"), strings.Contains(msg, "status code 50"),
		strings.Contains(msg, "bad gateway"), strings.Contains(msg, "service unavailable"):
		return "http_5xx"
	}
	return "unknown"
}

// DoIfRetryable retries fn only while its error is transient.
// Permanent errors return immediately. After MaxSameErrorType consecutive
// failures of the same class the error is treated as permanent.
func DoIfRetryable(ctx context.Context, cfg *Config, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	delay := cfg.InitialDelay
	sameErrorCount := 0
	var lastErrorType string

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}

		errorType := classifyErrorType(lastErr)
		if errorType == lastErrorType {
			sameErrorCount++
			if cfg.MaxSameErrorType > 0 && sameErrorCount >= cfg.MaxSameErrorType {
				return fmt.Errorf("repeated error (%d times, type=%s): %w", sameErrorCount, errorType, lastErr)
			}
		} else {
			sameErrorCount = 1
			lastErrorType = errorType
		}

		if attempt == cfg.MaxRetries {
			break
		}

		var err error
		if delay, err = wait(ctx, cfg, delay); err != nil {
			return err
		}
	}

	return lastErr
}
