package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	var calls int
	policy := Policy{Attempts: 3, InitialBackoff: time.Millisecond}
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("busy")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoReturnsLastErrorWhenExhausted(t *testing.T) {
	sentinel := errors.New("still busy")
	policy := Policy{Attempts: 2, InitialBackoff: time.Millisecond}
	err := policy.Do(context.Background(), func() error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
}

func TestDoDoublesBackoffUpToMax(t *testing.T) {
	policy := Policy{
		Attempts:       4,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     40 * time.Millisecond,
	}
	start := time.Now()
	err := policy.Do(context.Background(), func() error { return errors.New("busy") })
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	// Delays 10ms, 20ms, 40ms between the four attempts.
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Fatalf("backoff did not grow: elapsed %v", elapsed)
	}
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	fatal := errors.New("constraint violation")
	var calls int
	policy := Policy{
		Attempts:       5,
		InitialBackoff: time.Millisecond,
		Retryable:      func(err error) bool { return !errors.Is(err, fatal) },
	}
	err := policy.Do(context.Background(), func() error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("non-retryable error must not be retried, calls = %d", calls)
	}
}

func TestDoHonorsContextBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	policy := Policy{Attempts: 3, InitialBackoff: time.Hour}
	err := policy.Do(ctx, func() error { return errors.New("busy") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
