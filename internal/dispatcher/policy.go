package dispatcher

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 2 * time.Second
)

// Strategy creates the backoff sequence for one record. Every record gets
// its own sequence, so strategies may be stateful.
type Strategy func() backoff.BackOff

// RetryPolicy bounds the update attempts made for a single record.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     Strategy
}

// DefaultRetryPolicy makes 3 attempts 2 seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     ConstantBackoff(DefaultBackoff),
	}
}

func ConstantBackoff(d time.Duration) Strategy {
	return func() backoff.BackOff {
		return backoff.NewConstantBackOff(d)
	}
}

// ExponentialBackoff doubles the delay from initial up to max, with jitter.
func ExponentialBackoff(initial, max time.Duration) Strategy {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = max
		return b
	}
}

// NoBackoff retries immediately.
func NoBackoff() Strategy {
	return func() backoff.BackOff {
		return &backoff.ZeroBackOff{}
	}
}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Backoff == nil {
		p.Backoff = NoBackoff()
	}
	return p
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
