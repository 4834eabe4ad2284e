package sync

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/turbolytics/duesync/internal/config"
)

func newRunCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs a single sync and exits. A failed run exits non-zero.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, logger, err := load(configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			l := logger.Named("duesync.sync.run")

			ctx := cmd.Context()
			comps, err := config.InitializeCoordinator(ctx, c, l)
			if err != nil {
				return err
			}
			defer comps.Close()

			if c.Server.RunTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, c.Server.RunTimeout)
				defer cancel()
			}

			summary, err := comps.Coordinator.Run(ctx)
			if err != nil {
				return err
			}

			l.Debug("run summary", zap.Any("summary", summary))
			fmt.Fprintln(cmd.OutOrStdout(), summary.Message())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	return cmd
}
