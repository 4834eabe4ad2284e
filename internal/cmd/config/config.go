package config

import (
	"github.com/spf13/cobra"

	appconfig "github.com/turbolytics/duesync/internal/config"
)

func NewCommand() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "config",
		Short: "Inspects the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newPrintCommand())
	return cmd
}

func newPrintCommand() *cobra.Command {
	var configPath string
	var validate bool

	cmd := &cobra.Command{
		Use:   "print",
		Short: "Prints the configuration after defaults and environment overrides, secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := appconfig.Load(configPath)
			if err != nil {
				return err
			}
			if validate {
				if err := c.Validate(); err != nil {
					return err
				}
			}
			return c.Print(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().BoolVar(&validate, "validate", false, "Fail when the configuration is incomplete")
	return cmd
}
