package commands

import (
	"github.com/spf13/cobra"

	"github.com/andrej220/formation/cmd/formation/handlers"
	"github.com/andrej220/formation/pkg/config"
)

// Provision returns the command that runs the provisioning plan on the inventory.
func Provision() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Run the provisioning plan on every host",
		Long: `Run the pre-install, install and post-install phases of the plan on
every host of the inventory. A phase starts only after the previous one
finished on all hosts.

Host output is logged and, when the inventory sets working_dir, appended
to provision.log there together with a provision-report.json.

Examples:
  formation provision
  formation provision -c prod/formation.yaml --debug`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Provision(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.CONFIGFILENAME, "Path to configuration file")

	return cmd
}
