package sync

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/turbolytics/duesync/internal/config"
	"github.com/turbolytics/duesync/internal/coordinator"
)

const shutdownTimeout = 30 * time.Second

func newRouter(comps *config.Components, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(coordinator.RequestLogger(logger))

	comps.Coordinator.RegisterRoutes(r)
	r.Handle("/metrics", comps.Metrics.Handler())
	return r
}

func newServeCommand() *cobra.Command {
	var configPath string
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the HTTP trigger, every request to /api/v1/sync runs one sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, logger, err := load(configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			l := logger.Named("duesync.sync.serve")

			if address != "" {
				c.Server.Address = address
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			comps, err := config.InitializeCoordinator(ctx, c, l)
			if err != nil {
				return err
			}
			defer comps.Close()

			srv := &http.Server{
				Addr:    c.Server.Address,
				Handler: newRouter(comps, l),
			}

			errc := make(chan error, 1)
			go func() {
				l.Info("starting server", zap.String("address", c.Server.Address))
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			l.Info("shutting down server")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
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

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVarP(&address, "address", "a", "", "Listen address, overrides server.address")
	return cmd
}
