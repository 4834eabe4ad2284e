package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/turbolytics/duesync/internal/cmd/config"
	"github.com/turbolytics/duesync/internal/cmd/fixtures"
	"github.com/turbolytics/duesync/internal/cmd/sync"
)

func NewRootCommand() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "duesync",
		Short: "Marks due records processed on the CRM and archives every run",
		Long: `duesync pulls records from an OData style CRM source, marks the ones
that are due and unprocessed as processed, and archives the full record set
to blob storage.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(sync.NewCommand())
	cmd.AddCommand(config.NewCommand())
	cmd.AddCommand(fixtures.NewCommand())

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
