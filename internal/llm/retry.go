package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/codescope/codescope/internal/errors"
)

// RetryPolicy bounds retries of a transient failure
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy retries twice after the first failure with
// exponential backoff
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}
}

// WithRetry runs op, retrying on retryable errors with exponential
// backoff. Non-retryable errors return immediately; the last error is
// returned once attempts are exhausted. The context cancels the wait
// between attempts.
func WithRetry(ctx context.Context, policy RetryPolicy, op func() error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Second
	}

	var lastErr error
	delay := policy.BaseDelay

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !errors.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxAttempts {
			break
		}

		slog.Debug("retrying after transient failure",
			"attempt", attempt,
			"delay", delay.String(),
			"error", lastErr)

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay):
		}
		delay *= 2
	}

	return lastErr
}
