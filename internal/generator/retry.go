package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scholardigest/paper-digest-service/internal/domain"
)

// RetryPolicy describes how an external call is retried: how many attempts,
// how the wait between attempts grows, and which errors are worth retrying.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the wait before the second attempt; subsequent waits
	// grow linearly (attempt * InitialDelay).
	InitialDelay time.Duration

	// MaxDelay caps the wait between attempts.
	MaxDelay time.Duration

	// Retryable reports whether an error may succeed on retry. A nil
	// predicate retries everything.
	Retryable func(error) bool
}

// DefaultCatalogRetryPolicy is the policy used for catalog fetches: bounded
// attempts on upstream unavailability and rate limiting.
func DefaultCatalogRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Retryable: func(err error) bool {
			return errors.Is(err, domain.ErrCatalogUnavailable) ||
				errors.Is(err, domain.ErrRateLimited)
		},
	}
}

// Do runs op until it succeeds, the policy is exhausted, a non-retryable
// error occurs, or the context is cancelled. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
			case <-time.After(p.delay(attempt - 1)):
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		lastErr = err
	}

	return lastErr
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.InitialDelay * time.Duration(attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
