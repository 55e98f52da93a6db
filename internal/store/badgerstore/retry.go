package badgerstore

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const defaultJitterFactor = 0.3

// retryConfig replays commit conflicts with exponential backoff:
// baseDelay, baseDelay*2, baseDelay*4, ... plus up to jitterFactor of each.
type retryConfig struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
}

func (c retryConfig) run(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := range c.maxAttempts {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<(attempt-1))
			delay += time.Duration(rand.Float64() * float64(delay) * c.jitterFactor) //nolint:gosec // jitter only

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn()
		if !errors.Is(lastErr, badger.ErrConflict) {
			return lastErr
		}
	}
	return lastErr
}
