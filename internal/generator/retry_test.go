package generator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholardigest/paper-digest-service/internal/domain"
)

func TestRetryPolicy_Do(t *testing.T) {
	ctx := context.Background()

	t.Run("returns nil on eventual success", func(t *testing.T) {
		var calls int
		p := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond}

		err := p.Do(ctx, func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		var calls int
		p := RetryPolicy{
			MaxAttempts:  5,
			InitialDelay: time.Millisecond,
			Retryable:    func(err error) bool { return errors.Is(err, domain.ErrCatalogUnavailable) },
		}

		err := p.Do(ctx, func(ctx context.Context) error {
			calls++
			return errors.New("permanent")
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("returns last error when exhausted", func(t *testing.T) {
		p := RetryPolicy{MaxAttempts: 2, InitialDelay: time.Millisecond}
		sentinel := errors.New("still failing")

		err := p.Do(ctx, func(ctx context.Context) error { return sentinel })
		assert.ErrorIs(t, err, sentinel)
	})

	t.Run("respects context cancellation during wait", func(t *testing.T) {
		p := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Minute}
		cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()

		err := p.Do(cctx, func(ctx context.Context) error { return errors.New("boom") })
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("zero attempts still runs once", func(t *testing.T) {
		var calls int
		p := RetryPolicy{}

		err := p.Do(ctx, func(ctx context.Context) error {
			calls++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("caps delay at MaxDelay", func(t *testing.T) {
		p := RetryPolicy{InitialDelay: 10 * time.Second, MaxDelay: time.Second}
		assert.Equal(t, time.Second, p.delay(5))
	})
}

func TestDefaultCatalogRetryPolicy(t *testing.T) {
	p := DefaultCatalogRetryPolicy()

	assert.Equal(t, 3, p.MaxAttempts)
	assert.True(t, p.Retryable(fmt.Errorf("%w: 503", domain.ErrCatalogUnavailable)))
	assert.True(t, p.Retryable(fmt.Errorf("%w: slow down", domain.ErrRateLimited)))
	assert.False(t, p.Retryable(errors.New("bad request")))
}
