package config

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/turbolytics/duesync/internal/catalog"
	"github.com/turbolytics/duesync/internal/coordinator"
	"github.com/turbolytics/duesync/internal/dispatcher"
	"github.com/turbolytics/duesync/internal/export"
	"github.com/turbolytics/duesync/internal/fetcher"
	"github.com/turbolytics/duesync/internal/ledger"
	"github.com/turbolytics/duesync/internal/lock"
	"github.com/turbolytics/duesync/internal/notify"
	"github.com/turbolytics/duesync/internal/source"
	"github.com/turbolytics/duesync/internal/telemetry"
)

// Components is a wired coordinator and the resources it holds.
type Components struct {
	Coordinator *coordinator.Coordinator
	Metrics     *telemetry.Metrics

	closers []func() error
}

func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	return errors.Join(errs...)
}

// NewConnector builds the OAuth connector for the configured source.
func NewConnector(c *Config, logger *zap.Logger) *source.OAuthConnector {
	tokenURL := c.Auth.TokenURL
	if tokenURL == "" {
		tokenURL = source.AzureTokenURL(c.Auth.TenantID)
	}
	scopes := c.Auth.Scopes
	if len(scopes) == 0 {
		scopes = []string{source.DefaultScope(c.Source.BaseURL)}
	}

	return source.NewOAuthConnector(
		c.Source.BaseURL,
		source.Credentials{
			ClientID:     c.Auth.ClientID,
			ClientSecret: c.Auth.ClientSecret,
			TokenURL:     tokenURL,
			Scopes:       scopes,
		},
		source.ConnectorWithLogger(logger.Named("source")),
		source.ConnectorWithHTTPClient(&http.Client{Timeout: c.Source.Timeout}),
		source.ConnectorWithClientOptions(
			source.WithAPIPath(c.Source.APIPath),
			source.WithEntitySet(c.Source.EntitySet),
			source.WithFilter(c.Source.Filter),
			source.WithPageSize(c.Source.PageSize),
			source.WithFields(c.Source.Fields),
			source.WithCompletedValue(c.Source.CompletedValue),
		),
	)
}

// InitializeCoordinator validates c and wires every component it enables.
// Optional services (ledger, lock, notifications) are skipped when their
// address is empty.
func InitializeCoordinator(ctx context.Context, c *Config, logger *zap.Logger) (*Components, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	comps := &Components{
		Metrics: telemetry.New(),
	}
	ok := false
	defer func() {
		if !ok {
			comps.Close()
		}
	}()

	encoder, err := export.New(c.Export.Format)
	if err != nil {
		return nil, err
	}

	repository, err := NewRepository(c.Archive, encoder.ContentType(), logger.Named("repository"))
	if err != nil {
		return nil, err
	}

	opts := []coordinator.Option{
		coordinator.WithLogger(logger.Named("coordinator")),
		coordinator.WithConnector(NewConnector(c, logger)),
		coordinator.WithFetcher(fetcher.New(
			fetcher.WithLogger(logger.Named("fetcher")),
			fetcher.WithMaxPages(c.Source.MaxPages),
		)),
		coordinator.WithDispatcher(dispatcher.New(
			c.Update.RetryPolicy(),
			dispatcher.WithLogger(logger.Named("dispatcher")),
			dispatcher.WithConcurrency(c.Update.Concurrency),
			dispatcher.WithAttemptHook(comps.Metrics.ObserveAttempt),
		)),
		coordinator.WithEncoder(encoder),
		coordinator.WithRepository(repository),
		coordinator.WithArchivePath(coordinator.ArchivePath{
			Prefix: c.Archive.Prefix,
			Label:  c.Archive.Label,
		}),
		coordinator.WithObserver(comps.Metrics),
		coordinator.WithRunTimeout(c.Server.RunTimeout),
	}
	if c.Archive.WriteSummaries {
		opts = append(opts, coordinator.WithRecorders(catalog.NewRecorder(repository, c.Archive.Prefix)))
	}
	if c.Export.Reconcile {
		opts = append(opts, coordinator.WithReconcile(c.Source.CompletedValue))
	}

	if c.Ledger.ConnectionString != "" {
		lg, err := ledger.Connect(ctx, c.Ledger.ConnectionString,
			ledger.WithLogger(logger.Named("ledger")),
			ledger.WithTable(c.Ledger.Table),
		)
		if err != nil {
			return nil, err
		}
		comps.closers = append(comps.closers, func() error {
			lg.Close()
			return nil
		})
		opts = append(opts, coordinator.WithRecorders(lg), coordinator.WithHistory(lg))
	}

	if c.Lock.RedisAddress != "" {
		l := lock.NewRedis(c.Lock.RedisAddress,
			lock.WithLogger(logger.Named("lock")),
			lock.WithKey(c.Lock.Key),
			lock.WithTTL(c.Lock.TTL),
		)
		comps.closers = append(comps.closers, l.Close)
		opts = append(opts, coordinator.WithLocker(l))
	}

	if len(c.Notify.Brokers) > 0 {
		p := notify.NewPublisher(c.Notify.Brokers, c.Notify.Topic,
			notify.WithLogger(logger.Named("notify")),
		)
		comps.closers = append(comps.closers, p.Close)
		opts = append(opts, coordinator.WithRecorders(p))
	}

	comps.Coordinator, err = coordinator.New(opts...)
	if err != nil {
		return nil, err
	}

	ok = true
	return comps, nil
}
