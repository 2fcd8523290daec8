// Package commands defines the CLI command structure and flag bindings.
// Execution is delegated to the handlers package.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andrej220/formation/internal/lg"
)

const SERVICENAME = "formation"

type globalFlags struct {
	debug     bool
	logFormat string
}

// Root returns the root command for the formation CLI.
func Root() *cobra.Command {
	flags := &globalFlags{}
	var logger lg.Logger

	cmd := &cobra.Command{
		Use:           "formation",
		Short:         "Deploy cloud nodes and provision them over SSH",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch flags.logFormat {
			case "console", "json":
			default:
				return fmt.Errorf("unsupported log format %q, use console or json", flags.logFormat)
			}
			logger = lg.New(&lg.Config{ServiceName: SERVICENAME, Debug: flags.debug, Format: flags.logFormat})
			cmd.SetContext(lg.Attach(cmd.Context(), logger))
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "console", "Log encoding: console or json")

	cmd.AddCommand(Deploy())
	cmd.AddCommand(Provision())
	cmd.AddCommand(Version())

	return cmd
}
