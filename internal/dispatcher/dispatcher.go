// Package dispatcher applies remote updates to eligible records with a
// bounded, per-record retry policy.
package dispatcher

import (
	"context"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/turbolytics/duesync/internal/source"
)

// AttemptHook is called after every update attempt.
type AttemptHook func(id string, attempt int, err error)

type Option func(*Dispatcher)

func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithConcurrency caps the number of records updated at once. 1 (the
// default) updates records strictly one after the other.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		d.concurrency = n
	}
}

func WithSleeper(s Sleeper) Option {
	return func(d *Dispatcher) {
		d.sleep = s
	}
}

func WithAttemptHook(h AttemptHook) Option {
	return func(d *Dispatcher) {
		d.onAttempt = h
	}
}

type Dispatcher struct {
	logger      *zap.Logger
	policy      RetryPolicy
	concurrency int
	sleep       Sleeper
	onAttempt   AttemptHook
}

func New(policy RetryPolicy, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger:      zap.NewNop(),
		policy:      policy.normalize(),
		concurrency: 1,
		sleep:       sleep,
		onAttempt:   func(string, int, error) {},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch marks every id processed on the source. A record whose attempts
// are exhausted is reported in the Result and never stops the others. The
// only error returned is the context's, when the caller cancels.
func (d *Dispatcher) Dispatch(ctx context.Context, u source.Updater, ids []string) (Result, error) {
	outcomes := make([]Outcome, len(ids))

	if d.concurrency <= 1 {
		for i, id := range ids {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			o, err := d.update(ctx, u, id)
			if err != nil {
				return Result{}, err
			}
			outcomes[i] = o
		}
		return Result{Outcomes: outcomes}, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			o, err := d.update(gctx, u, id)
			if err != nil {
				return err
			}
			outcomes[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return Result{Outcomes: outcomes}, nil
}

func (d *Dispatcher) update(ctx context.Context, u source.Updater, id string) (Outcome, error) {
	b := d.policy.Backoff()

	var err error
	attempts := 0
	for attempts < d.policy.MaxAttempts {
		attempts++
		err = u.Update(ctx, id)
		d.onAttempt(id, attempts, err)
		if err == nil {
			d.logger.Debug("record updated",
				zap.String("id", id),
				zap.Int("attempts", attempts),
			)
			return Outcome{ID: id, Attempts: attempts}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}

		d.logger.Warn("update attempt failed",
			zap.String("id", id),
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", d.policy.MaxAttempts),
			zap.Int("status", source.StatusOf(err)),
			zap.Error(err),
		)

		if attempts == d.policy.MaxAttempts {
			break
		}
		delay := b.NextBackOff()
		if delay == backoff.Stop {
			break
		}
		if err := d.sleep(ctx, delay); err != nil {
			return Outcome{}, err
		}
	}

	f := &UpdateFailure{
		ID:         id,
		Attempts:   attempts,
		LastStatus: source.StatusOf(err),
		Err:        err,
	}
	d.logger.Error("update failed after retries",
		zap.String("id", id),
		zap.Int("attempts", attempts),
		zap.Int("last_status", f.LastStatus),
		zap.Error(err),
	)
	return Outcome{ID: id, Attempts: attempts, Failure: f}, nil
}
