package lister

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/smithy-go"
	"github.com/me/ecswait/pkg/model"
	"github.com/siderolabs/go-retry/retry"
)

// throttleCodes are AWS error codes worth retrying at the transport level.
var throttleCodes = map[string]bool{
	"ThrottlingException":                    true,
	"Throttling":                             true,
	"TooManyRequestsException":               true,
	"RequestLimitExceeded":                   true,
	"ProvisionedThroughputExceededException": true,
}

// RetryConfig controls transport-level retries of a single listing call.
type RetryConfig struct {
	Budget   time.Duration // total time spent retrying one call
	Interval time.Duration // base backoff unit
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Budget: 20 * time.Second, Interval: 500 * time.Millisecond}
}

// Retrying wraps a TaskLister and retries throttled calls with
// exponential backoff. Any other error is returned on the first attempt.
type Retrying struct {
	next      TaskLister
	config    RetryConfig
	retryable func(error) bool
	logger    *slog.Logger
}

// NewRetrying wraps next.
func NewRetrying(next TaskLister, cfg RetryConfig, logger *slog.Logger) *Retrying {
	return &Retrying{
		next:      next,
		config:    cfg,
		retryable: IsThrottle,
		logger:    logger.With("component", "retrying-lister"),
	}
}

// ListTasks calls the wrapped lister until it succeeds, fails with a
// non-retryable error, or the retry budget runs out. The returned error is
// always the wrapped lister's own error, never the retry bookkeeping.
func (r *Retrying) ListTasks(ctx context.Context, filter model.QueryFilter) ([]string, error) {
	var (
		taskIDs []string
		lastErr error
		attempt int
	)

	err := retry.Exponential(r.config.Budget, retry.WithUnits(r.config.Interval), retry.WithJitter(r.config.Interval/4)).
		RetryWithContext(ctx, func(ctx context.Context) error {
			attempt++
			ids, err := r.next.ListTasks(ctx, filter)
			lastErr = err
			if err == nil {
				taskIDs = ids
				return nil
			}
			if r.retryable(err) {
				r.logger.Debug("list tasks throttled", "cluster", filter.Cluster(), "attempt", attempt, "error", err)
				return retry.ExpectedError(err)
			}
			return err
		})
	if err == nil {
		return taskIDs, nil
	}
	if lastErr == nil {
		// Cancelled before the first attempt finished.
		return nil, err
	}
	if r.retryable(lastErr) {
		return nil, fmt.Errorf("retry budget %s exhausted after %d attempts: %w", r.config.Budget, attempt, lastErr)
	}
	return nil, lastErr
}

// IsThrottle reports whether err is an AWS throttling error.
func IsThrottle(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return throttleCodes[apiErr.ErrorCode()]
	}
	return false
}
