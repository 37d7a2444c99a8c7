package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Load and validate the configuration, then print the rule table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "configuration ok (storage: %s)\n", cfg.Storage.Driver)
			return writeJSON(cmd.OutOrStdout(), cfg.Rules)
		},
	}
}
