package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 2, OpenTimeout: time.Hour}, nil)
	calls := 0
	fail := func(context.Context) error { calls++; return errBoom }

	for range 2 {
		if err := b.Execute(context.Background(), fail); !errors.Is(err, errBoom) {
			t.Fatalf("Execute() error = %v, want errBoom", err)
		}
	}
	if b.State() != "open" {
		t.Fatalf("State() = %q, want open", b.State())
	}

	err := b.Execute(context.Background(), fail)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() on open circuit error = %v, want ErrCircuitOpen", err)
	}
	if calls != 2 {
		t.Errorf("operation calls = %d, want 2", calls)
	}
}

func TestBreakerIgnoredErrorsDoNotTrip(t *testing.T) {
	t.Parallel()

	errMissing := errors.New("missing")
	b := NewBreaker(BreakerConfig{MaxFailures: 1, Ignore: func(err error) bool { return errors.Is(err, errMissing) }}, nil)

	for range 3 {
		if err := b.Execute(context.Background(), func(context.Context) error { return errMissing }); !errors.Is(err, errMissing) {
			t.Fatalf("Execute() error = %v, want errMissing", err)
		}
	}
	if b.State() != "closed" {
		t.Errorf("State() = %q, want closed", b.State())
	}
}

func TestRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		failures  int
		retryable func(error) bool
		wantCalls int
		wantErr   bool
	}{
		{name: "first try", failures: 0, wantCalls: 1},
		{name: "recovers", failures: 2, wantCalls: 3},
		{name: "exhausted", failures: 5, wantCalls: 3, wantErr: true},
		{name: "not retryable", failures: 5, retryable: func(error) bool { return false }, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			calls := 0
			err := Retry(context.Background(), RetryConfig{MaxAttempts: 3, InitialInterval: time.Millisecond, Retryable: tt.retryable},
				func(context.Context) error {
					calls++
					if calls <= tt.failures {
						return errBoom
					}
					return nil
				})
			if (err != nil) != tt.wantErr {
				t.Errorf("Retry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryStopsOnOpenCircuit(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Retry(context.Background(), RetryConfig{MaxAttempts: 5, InitialInterval: time.Millisecond}, func(context.Context) error {
		calls++
		return ErrCircuitOpen
	})
	if !errors.Is(err, ErrCircuitOpen) || calls != 1 {
		t.Errorf("Retry() = %v after %d calls, want ErrCircuitOpen after 1", err, calls)
	}
}

func TestRetryHonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, RetryConfig{MaxAttempts: 3, InitialInterval: time.Hour}, func(context.Context) error { return errBoom })
	if !errors.Is(err, context.Canceled) || !errors.Is(err, errBoom) {
		t.Errorf("Retry() error = %v, want both context.Canceled and errBoom", err)
	}
}
