// Package coordinator runs one sync end to end: authenticate, fetch, filter,
// update, export and publish.
package coordinator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/turbolytics/duesync/internal"
	"github.com/turbolytics/duesync/internal/catalog"
	"github.com/turbolytics/duesync/internal/dispatcher"
	"github.com/turbolytics/duesync/internal/eligibility"
	"github.com/turbolytics/duesync/internal/export"
	"github.com/turbolytics/duesync/internal/fetcher"
	"github.com/turbolytics/duesync/internal/lock"
	"github.com/turbolytics/duesync/internal/source"
)

// Recorder receives every finished run summary. Recorder errors are logged
// and never change the outcome of a run.
type Recorder interface {
	Record(ctx context.Context, s catalog.Summary) error
}

type RunObserver interface {
	ObserveRun(s catalog.Summary)
}

const recordTimeout = 10 * time.Second

type Option func(*Coordinator)

func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

func WithConnector(conn source.Connector) Option {
	return func(c *Coordinator) {
		c.connector = conn
	}
}

func WithFetcher(f *fetcher.Fetcher) Option {
	return func(c *Coordinator) {
		c.fetcher = f
	}
}

func WithDispatcher(d *dispatcher.Dispatcher) Option {
	return func(c *Coordinator) {
		c.dispatcher = d
	}
}

func WithEncoder(e export.Encoder) Option {
	return func(c *Coordinator) {
		c.encoder = e
	}
}

func WithRepository(r internal.Repository) Option {
	return func(c *Coordinator) {
		c.repository = r
	}
}

func WithArchivePath(a ArchivePath) Option {
	return func(c *Coordinator) {
		c.archive = a
	}
}

// WithReconcile exports updated records with completedValue as their
// processed flag instead of the flag as fetched.
func WithReconcile(completedValue string) Option {
	return func(c *Coordinator) {
		c.reconcile = true
		c.completedValue = completedValue
	}
}

func WithLocker(l lock.Locker) Option {
	return func(c *Coordinator) {
		c.locker = l
	}
}

func WithRecorders(rs ...Recorder) Option {
	return func(c *Coordinator) {
		c.recorders = append(c.recorders, rs...)
	}
}

func WithObserver(o RunObserver) Option {
	return func(c *Coordinator) {
		c.observer = o
	}
}

func WithRunTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.runTimeout = d
	}
}

// WithClock replaces time.Now, the run start time drives eligibility and the
// archive key.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

type Coordinator struct {
	logger     *zap.Logger
	connector  source.Connector
	fetcher    *fetcher.Fetcher
	dispatcher *dispatcher.Dispatcher
	encoder    export.Encoder
	repository internal.Repository
	archive    ArchivePath

	reconcile      bool
	completedValue string

	locker     lock.Locker
	recorders  []Recorder
	observer   RunObserver
	history    History
	runTimeout time.Duration
	now        func() time.Time
}

func New(opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		logger:     zap.NewNop(),
		fetcher:    fetcher.New(),
		dispatcher: dispatcher.New(dispatcher.DefaultRetryPolicy()),
		encoder:    export.CSV{},
		archive: ArchivePath{
			Prefix: DefaultArchivePrefix,
			Label:  DefaultArchiveLabel,
		},
		locker: lock.Noop{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.connector == nil {
		return nil, errors.New("coordinator: a source connector is required")
	}
	if c.repository == nil {
		return nil, errors.New("coordinator: an archive repository is required")
	}
	return c, nil
}

// RunTimeout is the deadline hosts put on a single run, zero means none.
func (c *Coordinator) RunTimeout() time.Duration {
	return c.runTimeout
}

// run carries the mutable state of one invocation.
type run struct {
	fsm     *FSM
	summary catalog.Summary
	logger  *zap.Logger
}

// Run executes one sync. A failed run returns its summary together with a
// *RunError. Update failures are reported in the summary and never fail the
// run. lock.ErrLocked is returned, with an empty summary, when another run
// holds the lock.
func (c *Coordinator) Run(ctx context.Context) (catalog.Summary, error) {
	release, err := c.locker.Acquire(ctx)
	if err != nil {
		return catalog.Summary{}, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			c.logger.Error("releasing run lock", zap.Error(err))
		}
	}()

	started := c.now().UTC()
	id := uuid.NewString()
	l := c.logger.With(zap.String("run_id", id))
	r := &run{
		fsm:    NewFSM(FSMWithLogger(l.Named("fsm"))),
		logger: l,
		summary: catalog.Summary{
			RunID:     id,
			State:     string(StateCreated),
			StartedAt: started,
		},
	}

	l.Info("sync run started", zap.Time("started_at", started))
	err = c.execute(ctx, r, started)
	c.finish(ctx, r, started, err)
	return r.summary, err
}

func (c *Coordinator) execute(ctx context.Context, r *run, started time.Time) error {
	if err := r.fsm.Transition(StateAuthenticating); err != nil {
		return err
	}
	client, err := c.connector.Connect(ctx)
	if err != nil {
		return c.fail(r, err)
	}

	if err := r.fsm.Transition(StateFetching); err != nil {
		return err
	}
	records, err := c.fetcher.Fetch(ctx, client)
	if err != nil {
		return c.fail(r, err)
	}
	r.summary.Fetched = len(records)

	if err := r.fsm.Transition(StateFiltering); err != nil {
		return err
	}
	eligible := eligibility.Filter(records, started)
	r.summary.Eligible = len(eligible)
	r.logger.Info("records filtered",
		zap.Int("fetched", len(records)),
		zap.Int("eligible", len(eligible)),
	)

	if err := r.fsm.Transition(StateUpdating); err != nil {
		return err
	}
	result, err := c.dispatcher.Dispatch(ctx, client, internal.IDs(eligible))
	if err != nil {
		return c.fail(r, err)
	}
	r.summary.Updated = result.Updated()
	r.summary.Failed = result.Failed()
	for _, f := range result.Failures() {
		r.summary.Failures = append(r.summary.Failures, catalog.Failure{
			ID:         f.ID,
			Attempts:   f.Attempts,
			LastStatus: f.LastStatus,
			Error:      fmt.Sprint(f.Err),
		})
	}
	if result.Failed() > 0 {
		r.logger.Warn("some records were not updated",
			zap.Int("eligible", len(eligible)),
			zap.Int("updated", result.Updated()),
			zap.Int("failed", result.Failed()),
		)
	}

	if err := r.fsm.Transition(StateExporting); err != nil {
		return err
	}
	exported := records
	if c.reconcile {
		exported = Reconcile(records, result, c.completedValue)
	}
	var buf bytes.Buffer
	if err := c.encoder.Encode(&buf, exported); err != nil {
		return c.fail(r, err)
	}

	if err := r.fsm.Transition(StatePublishing); err != nil {
		return err
	}
	key := c.archive.Key(started, c.encoder.Extension())
	if err := c.repository.Write(ctx, key, &buf); err != nil {
		return c.fail(r, fmt.Errorf("%w: %w", ErrPublish, err))
	}
	r.logger.Info("archive published",
		zap.String("key", key),
		zap.Int("records", len(exported)),
	)

	if err := r.fsm.Transition(StateCompleted); err != nil {
		return err
	}
	r.summary.Location = key
	return nil
}

// fail moves the run to failed and wraps err with the failing stage.
func (c *Coordinator) fail(r *run, err error) error {
	stage := r.fsm.Current()
	if terr := r.fsm.Transition(StateFailed); terr != nil {
		return errors.Join(terr, err)
	}
	return &RunError{Stage: stage, Err: err}
}

func (c *Coordinator) finish(ctx context.Context, r *run, started time.Time, err error) {
	finished := c.now().UTC()
	s := &r.summary
	s.State = string(r.fsm.Current())
	s.FinishedAt = finished
	s.Duration = finished.Sub(started)

	if err != nil {
		var runErr *RunError
		if errors.As(err, &runErr) {
			s.Stage = string(runErr.Stage)
			err = runErr.Err
		}
		s.Error = err.Error()
		s.Location = ""
		r.logger.Error("sync run failed",
			zap.String("stage", s.Stage),
			zap.Int("fetched", s.Fetched),
			zap.Int("eligible", s.Eligible),
			zap.Int("updated", s.Updated),
			zap.Int("failed", s.Failed),
			zap.Duration("duration", s.Duration),
			zap.Error(err),
		)
	} else {
		r.logger.Info("sync run completed",
			zap.Int("fetched", s.Fetched),
			zap.Int("eligible", s.Eligible),
			zap.Int("updated", s.Updated),
			zap.Int("failed", s.Failed),
			zap.String("location", s.Location),
			zap.Duration("duration", s.Duration),
		)
	}

	if c.observer != nil {
		c.observer.ObserveRun(*s)
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	for _, rec := range c.recorders {
		if err := rec.Record(rctx, *s); err != nil {
			r.logger.Error("recording run summary", zap.Error(err))
		}
	}
}
