// Package probe checks that a source URL is reachable before any work is done.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/config"
	"github.com/ekaya-inc/ekaya-ingest/pkg/logging"
	"github.com/ekaya-inc/ekaya-ingest/pkg/retry"
)

// StatusError is a response outside the 2xx range.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) Unwrap() error {
	return apperrors.ErrNetworkUnreachable
}

// IsRetryable is true for server-side and rate-limit responses.
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Checker issues HEAD requests against source URLs.
type Checker struct {
	client    *http.Client
	userAgent string
	retryCfg  *retry.Config
	logger    *zap.Logger
}

// NewChecker creates a Checker from the probe configuration.
func NewChecker(cfg config.ProbeConfig, logger *zap.Logger) *Checker {
	return &Checker{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		retryCfg:  retry.WithMaxRetries(cfg.MaxRetries),
		logger:    logger.Named("probe"),
	}
}

// Check returns nil if url answers a HEAD request with a 2xx status.
// Every failure wraps apperrors.ErrNetworkUnreachable.
func (c *Checker) Check(ctx context.Context, url string) error {
	safeURL := logging.SanitizeURL(url)
	start := time.Now()

	err := retry.DoIfRetryable(ctx, c.retryCfg, func() error {
		return c.head(ctx, url)
	})
	if err != nil {
		c.logger.Debug("Source URL probe failed",
			zap.String("url", safeURL),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return err
	}

	c.logger.Debug("Source URL reachable",
		zap.String("url", safeURL),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// IsAccessible reports whether url is reachable. It never returns an error.
func (c *Checker) IsAccessible(ctx context.Context, url string) bool {
	return c.Check(ctx, url) == nil
}

func (c *Checker) head(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrNetworkUnreachable, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrNetworkUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}
