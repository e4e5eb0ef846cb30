package workflow

import (
	"context"
	"log/slog"
	"time"

	"reelgen/internal/logging"
	"reelgen/internal/services"
)

// RetryPolicy bounds provider retries. Base delay doubles per attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// withRetry runs fn, retrying transient failures with exponential backoff.
// Terminal provider errors and context cancellation abort immediately.
func withRetry(ctx context.Context, logger *slog.Logger, policy RetryPolicy, op string, fn func(context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := policy.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !services.IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		logger.Warn("transient provider failure; retrying",
			logging.String("operation", op),
			logging.Int("attempt", attempt),
			logging.Duration("backoff", delay),
			logging.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
