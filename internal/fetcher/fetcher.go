// Package fetcher drains a paginated query into a complete record set.
package fetcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/turbolytics/duesync/internal"
	"github.com/turbolytics/duesync/internal/source"
)

type Option func(*Fetcher)

func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// WithMaxPages bounds the number of pages followed. Zero means unbounded.
func WithMaxPages(n int) Option {
	return func(f *Fetcher) {
		f.maxPages = n
	}
}

type Fetcher struct {
	logger   *zap.Logger
	maxPages int
}

func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch requests pages until the source returns no continuation cursor.
// Records keep page order and within-page order. Any failed page aborts the
// fetch with an *source.UnavailableError and no records.
func (f *Fetcher) Fetch(ctx context.Context, q source.Querier) ([]internal.Record, error) {
	var records []internal.Record
	cursor := ""

	for page := 1; ; page++ {
		if f.maxPages > 0 && page > f.maxPages {
			return nil, &source.UnavailableError{
				Page: page,
				Err:  errPageLimit(f.maxPages),
			}
		}

		p, err := q.Query(ctx, cursor)
		if err != nil {
			f.logger.Error("page fetch failed",
				zap.Int("page", page),
				zap.Int("status", source.StatusOf(err)),
				zap.Int("records_so_far", len(records)),
				zap.Error(err),
			)
			return nil, &source.UnavailableError{
				Page:   page,
				Status: source.StatusOf(err),
				Err:    err,
			}
		}

		records = append(records, p.Records...)
		f.logger.Info("page fetched",
			zap.Int("page", page),
			zap.Int("records", len(p.Records)),
			zap.Int("total", len(records)),
		)

		if p.Next == "" {
			return records, nil
		}
		if p.Next == cursor {
			return nil, &source.UnavailableError{
				Page: page,
				Err:  errCursorLoop,
			}
		}
		cursor = p.Next
	}
}
