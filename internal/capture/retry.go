package capture

import (
	"context"
	"log"
	"time"
)

// RetryPolicy is the shared bounded-backoff policy the orchestrator applies
// to transient upstream failures. Individual clients never retry; the
// policy lives here so it is visible, testable and overridable.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
}

// DefaultRetryPolicy matches the config defaults.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BackoffBase: 2 * time.Second}

// Do runs fn up to MaxAttempts times, sleeping BackoffBase * 2^(attempt-1)
// between attempts. retryable decides whether an error is worth another
// attempt; permanent errors surface immediately.
func (p RetryPolicy) Do(ctx context.Context, name string, retryable func(error) bool, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BackoffBase
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt == attempts {
			return err
		}

		log.Printf("capture: %s attempt %d/%d failed: %v (retrying in %s)", name, attempt, attempts, err, delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
