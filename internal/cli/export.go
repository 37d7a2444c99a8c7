package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var pending bool

	cmd := &cobra.Command{
		Use:   "export [out.xlsx]",
		Short: "Write approved invoices (or the pending queue) to a workbook",
		Long:  "Write approved invoices, or the pending queue with --pending, to an xlsx workbook. Without a path the file goes to export.output_dir.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(cmd, opts)
			if err != nil {
				return err
			}
			defer closeContainer(c)

			what := "approved invoices"
			if pending {
				what = "pending approvals"
			}

			var out string
			if len(args) == 1 {
				out = args[0]
			} else {
				name := "approved"
				if pending {
					name = "pending"
				}
				out = filepath.Join(c.Config().Export.OutputDir, fmt.Sprintf("%s_%s.xlsx", name, time.Now().Format("20060102_150405")))
			}

			if dir := filepath.Dir(out); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			defer f.Close()

			export := c.Services().Export.ExportApproved
			if pending {
				export = c.Services().Export.ExportPendingQueue
			}

			count, err := export(cmd.Context(), f)
			if err != nil {
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "exported %d %s to %s\n", count, what, out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&pending, "pending", false, "export the pending approval queue instead")
	return cmd
}
