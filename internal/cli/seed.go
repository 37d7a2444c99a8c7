package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/infrastructure/seed"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load vendors and purchase orders into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := seed.Load(args[0])
			if err != nil {
				return err
			}

			c, err := openContainer(cmd, opts)
			if err != nil {
				return err
			}
			defer closeContainer(c)

			repos := c.Repositories()
			summary, err := seed.Apply(cmd.Context(), data, repos.MasterData, repos.Tx, c.Logger())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d vendor(s) and %d purchase order(s)\n", summary.Vendors, summary.PurchaseOrders)
			if len(data.Approvers) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "approvers in seed files apply only while a process runs; add them to the approvers section of the config\n")
			}
			return nil
		},
	}
}
