package sync

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/turbolytics/duesync/internal/config"
)

func NewCommand() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "sync",
		Short: "Runs the record sync, once or behind an HTTP trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newServeCommand())
	return cmd
}

// load reads the config at path and builds the process logger from it.
func load(path string) (*config.Config, *zap.Logger, error) {
	c, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := config.NewLogger(c.Logger)
	if err != nil {
		return nil, nil, err
	}
	return c, logger, nil
}
