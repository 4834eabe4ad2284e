package fixtures

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/turbolytics/duesync/internal/coordinator"
	"github.com/turbolytics/duesync/internal/source"
	"github.com/turbolytics/duesync/internal/source/sourcetest"
)

type serveOptions struct {
	address       string
	records       int
	seed          uint64
	failPage      int
	failStatus    int
	flakyID       string
	flakyAttempts int
}

func (o serveOptions) server(now time.Time) *sourcetest.Server {
	opts := []sourcetest.Option{
		sourcetest.WithRecords(sourcetest.GenerateRecords(o.records, now, source.DefaultFieldMap(), o.seed)),
	}
	if o.failPage > 0 {
		opts = append(opts, sourcetest.WithPageFailure(o.failPage, o.failStatus))
	}
	if o.flakyID != "" {
		opts = append(opts, sourcetest.WithUpdateFailures(o.flakyID, o.flakyAttempts, o.failStatus))
	}
	return sourcetest.New(opts...)
}

func newServeCommand() *cobra.Command {
	var o serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves an in-memory CRM source with a client credentials token endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, _ := zap.NewDevelopment()
			defer logger.Sync()
			l := logger.Named("duesync.fixtures.serve")

			baseURL := fmt.Sprintf("http://localhost%s", o.address)
			fmt.Fprintf(cmd.OutOrStdout(), `auth:
  client_id: %s
  client_secret: %s
  token_url: %s
source:
  base_url: %s
  entity_set: %s
`, sourcetest.DefaultClientID, sourcetest.DefaultClientSecret,
				sourcetest.TokenURL(baseURL), baseURL, sourcetest.DefaultEntitySet)

			srv := &http.Server{
				Addr:    o.address,
				Handler: coordinator.RequestLogger(l)(o.server(time.Now())),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() {
				l.Info("serving fixture source",
					zap.String("address", o.address),
					zap.Int("records", o.records),
				)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				return err
			}
			if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&o.address, "address", "a", ":8081", "Listen address")
	cmd.Flags().IntVarP(&o.records, "records", "r", 25, "Number of records to generate")
	cmd.Flags().Uint64Var(&o.seed, "seed", 1, "Seed for the generated records")
	cmd.Flags().IntVar(&o.failPage, "fail-page", 0, "Fail the n-th page request (1-based), 0 disables")
	cmd.Flags().StringVar(&o.flakyID, "flaky-id", "", "Record id whose updates fail before succeeding")
	cmd.Flags().IntVar(&o.flakyAttempts, "flaky-attempts", 2, "Number of failed updates for --flaky-id")
	cmd.Flags().IntVar(&o.failStatus, "fail-status", http.StatusServiceUnavailable, "Status of injected failures")
	return cmd
}
