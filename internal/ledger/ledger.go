// Package ledger stores run summaries in Postgres.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/turbolytics/duesync/internal/catalog"
)

const DefaultTable = "sync_runs"

type Option func(*Ledger)

func WithLogger(l *zap.Logger) Option {
	return func(lg *Ledger) {
		lg.logger = l
	}
}

func WithTable(table string) Option {
	return func(lg *Ledger) {
		lg.table = table
	}
}

type Ledger struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	table  string
}

func New(pool *pgxpool.Pool, opts ...Option) *Ledger {
	lg := &Ledger{
		pool:   pool,
		logger: zap.NewNop(),
		table:  DefaultTable,
	}
	for _, opt := range opts {
		opt(lg)
	}
	return lg
}

// Connect opens a pool, pings it and creates the ledger table.
func Connect(ctx context.Context, connString string, opts ...Option) (*Ledger, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	lg := New(pool, opts...)
	if err := lg.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return lg, nil
}

func (lg *Ledger) Close() {
	lg.pool.Close()
}

func (lg *Ledger) Migrate(ctx context.Context) error {
	_, err := lg.pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id      UUID PRIMARY KEY,
	state       TEXT NOT NULL,
	stage       TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	fetched     INTEGER NOT NULL,
	eligible    INTEGER NOT NULL,
	updated     INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	failures    JSONB NOT NULL DEFAULT '[]',
	location    TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL
)`, pgx.Identifier{lg.table}.Sanitize()))
	return err
}

// Record inserts one summary. Recording the same run twice is a no-op.
func (lg *Ledger) Record(ctx context.Context, s catalog.Summary) error {
	failures := s.Failures
	if failures == nil {
		failures = []catalog.Failure{}
	}
	payload, err := json.Marshal(failures)
	if err != nil {
		return err
	}

	_, err = lg.pool.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (
	run_id, state, stage, error, fetched, eligible, updated, failed,
	failures, location, started_at, finished_at, duration_ms
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (run_id) DO NOTHING`, pgx.Identifier{lg.table}.Sanitize()),
		s.RunID, s.State, s.Stage, s.Error,
		s.Fetched, s.Eligible, s.Updated, s.Failed,
		payload, s.Location,
		s.StartedAt, s.FinishedAt, s.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", s.RunID, err)
	}

	lg.logger.Debug("run recorded", zap.String("run_id", s.RunID))
	return nil
}

// Recent returns up to limit summaries, newest first.
func (lg *Ledger) Recent(ctx context.Context, limit int) ([]catalog.Summary, error) {
	rows, err := lg.pool.Query(ctx, fmt.Sprintf(`
SELECT run_id::text, state, stage, error, fetched, eligible, updated, failed,
	failures, location, started_at, finished_at, duration_ms
FROM %s
ORDER BY started_at DESC
LIMIT $1`, pgx.Identifier{lg.table}.Sanitize()), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []catalog.Summary
	for rows.Next() {
		var (
			s          catalog.Summary
			failures   []byte
			durationMS int64
		)
		if err := rows.Scan(
			&s.RunID, &s.State, &s.Stage, &s.Error,
			&s.Fetched, &s.Eligible, &s.Updated, &s.Failed,
			&failures, &s.Location,
			&s.StartedAt, &s.FinishedAt, &durationMS,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(failures, &s.Failures); err != nil {
			return nil, err
		}
		if len(s.Failures) == 0 {
			s.Failures = nil
		}
		s.StartedAt = s.StartedAt.UTC()
		s.FinishedAt = s.FinishedAt.UTC()
		s.Duration = time.Duration(durationMS) * time.Millisecond
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
