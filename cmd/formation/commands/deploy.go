package commands

import (
	"github.com/spf13/cobra"

	"github.com/andrej220/formation/cmd/formation/handlers"
	"github.com/andrej220/formation/pkg/config"
)

// Deploy returns the command that creates the project's networks and nodes.
func Deploy() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create the networks and nodes of a project",
		Long: `Create every network declared by the project, wait for all of them,
then create every node replica of every service.

Each operation runs the driver command configured for its cloud in the
profiles section of the configuration file. The first failing operation
stops the deployment.

Examples:
  formation deploy
  formation deploy -c prod/formation.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Deploy(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.CONFIGFILENAME, "Path to configuration file")

	return cmd
}
