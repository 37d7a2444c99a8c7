// Package cli implements the invoicectl operator commands.
package cli

import "github.com/spf13/cobra"

const defaultConfigPath = "configs/config.yaml"

var version = "dev"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "invoicectl",
		Short:         "Operate the invoice validation and routing engine",
		Long:          "invoicectl processes extracted invoices, records approval decisions, exports approved invoices and loads master data.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to the YAML configuration file")

	cmd.AddCommand(newProcessCmd(opts))
	cmd.AddCommand(newDecideCmd(opts))
	cmd.AddCommand(newExportCmd(opts))
	cmd.AddCommand(newCheckConfigCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))
	cmd.AddCommand(newSLAScanCmd(opts))
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

// Execute runs the root command
func Execute() error {
	return newRootCmd().Execute()
}
