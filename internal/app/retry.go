package app

import (
	"context"
	"time"
)

// RetryPolicy is a bounded retry loop with doubling backoff.
type RetryPolicy struct {
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// Do calls fn until it succeeds, retryable reports false, attempts run out,
// or ctx is done. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error, retryable func(error) bool) error {
	attempts := max(p.Attempts, 1)
	delay := p.Backoff

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil || !retryable(err) {
			return err
		}
		if i == attempts-1 || delay <= 0 {
			continue
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
		if p.MaxBackoff > 0 && delay > p.MaxBackoff {
			delay = p.MaxBackoff
		}
	}
	return err
}
