package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
)

func newProcessCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "process <invoice.json>",
		Short: "Validate and route extracted invoices",
		Long:  "Process an invoice JSON file. The file holds one invoice object or an array of invoices; arrays are processed as a batch.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invoices, err := readInvoices(args[0])
			if err != nil {
				return err
			}

			c, err := openContainer(cmd, opts)
			if err != nil {
				return err
			}
			defer closeContainer(c)

			outcomes := c.Services().Invoice.ProcessBatch(cmd.Context(), invoices)
			if err := writeJSON(cmd.OutOrStdout(), outcomes); err != nil {
				return err
			}

			failed := 0
			for _, o := range outcomes {
				if len(o.Errors) > 0 {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d invoice(s) could not be processed", failed, len(outcomes))
			}
			return nil
		},
	}
}

func readInvoices(path string) ([]*entity.InvoiceRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice file: %w", err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var invoices []*entity.InvoiceRecord
		if err := json.Unmarshal(raw, &invoices); err != nil {
			return nil, fmt.Errorf("failed to parse invoice file: %w", err)
		}
		return invoices, nil
	}

	var inv entity.InvoiceRecord
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("failed to parse invoice file: %w", err)
	}
	return []*entity.InvoiceRecord{&inv}, nil
}
