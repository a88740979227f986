// Package retry provides a small bounded-retry policy for contended writes.
package retry

import (
	"context"
	"time"
)

// Policy bounds retries around an operation that may fail transiently. The
// delay between attempts doubles up to MaxBackoff; a zero MaxBackoff keeps
// the delay constant.
type Policy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Retryable decides whether an error is worth another attempt.
	// A nil Retryable retries every error.
	Retryable func(error) bool
}

// Do runs op under the policy. The context cancels waiting between attempts,
// not the operation itself.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := p.InitialBackoff
	if delay <= 0 {
		delay = 10 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if p.MaxBackoff > 0 {
			delay *= 2
			if delay > p.MaxBackoff {
				delay = p.MaxBackoff
			}
		}
	}

	return lastErr
}
