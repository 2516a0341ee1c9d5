package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/journal-search/pkg/errors"
)

var errFlaky = errors.New("flaky")

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "load", fastRetry(5), func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "load", fastRetry(2), func(context.Context) error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, errFlaky) || calls != 2 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Retry(ctx, "load", fastRetry(5), func(context.Context) error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestRetryConfigFrom(t *testing.T) {
	cfg := RetryConfigFrom(config.RetryConfig{MaxAttempts: 7}).withDefaults()
	if cfg.MaxAttempts != 7 || cfg.InitialDelay != 100*time.Millisecond || cfg.Multiplier != 2 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestComputeDelayCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second}.withDefaults()
	if d := computeDelay(10, cfg); d != 3*time.Second {
		t.Fatalf("delay = %v", d)
	}
}

func TestWithTimeout(t *testing.T) {
	got, err := WithTimeout(context.Background(), time.Second, "quick", func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("got %d, %v", got, err)
	}

	_, err = WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, apperrors.ErrTimeout) {
		t.Fatalf("err = %v", err)
	}
}

func TestCircuitBreakerLifecycle(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	cb.now = func() time.Time { return clock }

	fail := func() error { return errFlaky }
	ok := func() error { return nil }

	cb.Execute(fail)
	if cb.State() != StateClosed {
		t.Fatal("one failure should not trip")
	}
	cb.Execute(fail)
	if cb.State() != StateOpen {
		t.Fatal("threshold reached, expected open")
	}
	if err := cb.Execute(ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open circuit ran fn: %v", err)
	}

	clock = clock.Add(time.Minute)
	if err := cb.Execute(fail); !errors.Is(err, errFlaky) {
		t.Fatalf("probe err = %v", err)
	}
	if cb.State() != StateOpen {
		t.Fatal("failed probe should re-open")
	}

	clock = clock.Add(time.Minute)
	if err := cb.Execute(ok); err != nil {
		t.Fatalf("probe err = %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatal("successful probe should close")
	}
}
