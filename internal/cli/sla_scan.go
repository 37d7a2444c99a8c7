package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSLAScanCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sla-scan",
		Short: "Report pending approvals past their SLA deadline once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(cmd, opts)
			if err != nil {
				return err
			}
			defer closeContainer(c)

			n, err := c.SLAMonitor().ScanOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reported %d SLA breach(es)\n", n)
			return nil
		},
	}
}
