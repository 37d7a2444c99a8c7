package cli

import (
	"github.com/spf13/cobra"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
)

func newDecideCmd(opts *rootOptions) *cobra.Command {
	var decision entity.ApprovalDecision
	var action string

	cmd := &cobra.Command{
		Use:   "decide <invoice-id>",
		Short: "Approve or reject a pending invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(cmd, opts)
			if err != nil {
				return err
			}
			defer closeContainer(c)

			decision.Action = entity.DecisionAction(action)
			updated, err := c.Services().Invoice.Decide(cmd.Context(), args[0], decision)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), updated)
		},
	}

	cmd.Flags().StringVar(&decision.ApproverName, "name", "", "approver name")
	cmd.Flags().StringVar(&decision.ApproverEmail, "email", "", "approver email")
	cmd.Flags().StringVar(&decision.Comments, "comments", "", "optional comments")
	cmd.Flags().StringVar(&action, "action", "", "approve or reject")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}
