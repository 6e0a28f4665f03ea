// Package retry implements bounded exponential backoff for failure-prone edge
// operations (blob transfers, bundle downloads). The orchestration core never
// retries; only external collaborators use this package.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Options configures exponential backoff.
type Options struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// Default is used when Options are zero/invalid.
var Default = Options{
	MaxAttempts:  5,
	InitialDelay: 300 * time.Millisecond,
	MaxDelay:     8 * time.Second,
	Multiplier:   2.0,
	Jitter:       true,
}

// IsRetryableFunc decides whether an error is worth another attempt.
// A nil func retries every error.
type IsRetryableFunc func(error) bool

// Do runs fn until it succeeds, the error is not retryable, attempts are
// exhausted, or ctx is done. It returns the last error.
func Do(ctx context.Context, opts Options, isRetryable IsRetryableFunc, fn func(context.Context) error) error {
	if opts.MaxAttempts <= 0 {
		opts = Default
	}

	delay := opts.InitialDelay
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if isRetryable != nil && !isRetryable(err) {
			return err
		}
		if attempt >= opts.MaxAttempts {
			return err
		}

		if err := sleep(ctx, jittered(delay, opts)); err != nil {
			return err
		}
		delay = nextDelay(delay, opts)
	}
}

// jittered applies +/-20% jitter and caps at MaxDelay.
func jittered(d time.Duration, opts Options) time.Duration {
	if opts.Jitter {
		delta := float64(d) * 0.2
		d = time.Duration(float64(d) + (rand.Float64()*2-1)*delta)
		if d < 0 {
			d = 0
		}
	}
	if opts.MaxDelay > 0 && d > opts.MaxDelay {
		d = opts.MaxDelay
	}
	return d
}

// nextDelay grows the backoff with an overflow guard and cap.
func nextDelay(d time.Duration, opts Options) time.Duration {
	next := time.Duration(float64(d) * opts.Multiplier)
	if next < d {
		next = d
	}
	if opts.MaxDelay > 0 && next > opts.MaxDelay {
		next = opts.MaxDelay
	}
	return next
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
