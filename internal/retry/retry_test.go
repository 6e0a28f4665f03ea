package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var fast = Options{
	MaxAttempts:  4,
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
	Multiplier:   2.0,
}

func TestSucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fast, nil, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	err := Do(context.Background(), fast, nil, func(context.Context) error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if attempts != fast.MaxAttempts {
		t.Fatalf("attempts = %d, want %d", attempts, fast.MaxAttempts)
	}
}

func TestNonRetryableStopsImmediately(t *testing.T) {
	fatal := errors.New("fatal")
	attempts := 0
	err := Do(context.Background(), fast, func(err error) bool { return !errors.Is(err, fatal) },
		func(context.Context) error {
			attempts++
			return fatal
		})
	if !errors.Is(err, fatal) {
		t.Fatalf("err = %v, want fatal", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestContextCancelStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	opts := Options{MaxAttempts: 10, InitialDelay: time.Hour, Multiplier: 2.0}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, opts, nil, func(context.Context) error {
		attempts++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestZeroOptionsFallBackToDefault(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Options{}, nil, func(context.Context) error {
		attempts++
		return nil
	})
	if err != nil || attempts != 1 {
		t.Fatalf("err=%v attempts=%d, want nil/1", err, attempts)
	}
}

func TestNextDelayCapsAtMax(t *testing.T) {
	opts := Options{MaxDelay: 4 * time.Millisecond, Multiplier: 10}
	if got := nextDelay(2*time.Millisecond, opts); got != opts.MaxDelay {
		t.Fatalf("nextDelay = %v, want %v", got, opts.MaxDelay)
	}
}
