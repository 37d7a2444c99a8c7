// Package seed loads vendor, purchase order and approver master data from YAML
package seed

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
)

// Data is the content of a seed file
type Data struct {
	Vendors        []entity.VendorRecord `yaml:"vendors"`
	PurchaseOrders []entity.PORecord     `yaml:"purchase_orders"`
	Approvers      map[string]string     `yaml:"approvers"`
}

// Summary counts what Apply wrote
type Summary struct {
	Vendors        int
	PurchaseOrders int
}

// Load reads and checks a seed file
func Load(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes seed YAML. Unknown keys are rejected.
func Parse(raw []byte) (*Data, error) {
	var data Data
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	if err := data.validate(); err != nil {
		return nil, fmt.Errorf("invalid seed file: %w", err)
	}
	return &data, nil
}

func (d *Data) validate() error {
	for i := range d.Vendors {
		if strings.TrimSpace(d.Vendors[i].Name) == "" {
			return fmt.Errorf("vendors[%d]: name is required", i)
		}
	}

	for i := range d.PurchaseOrders {
		po := &d.PurchaseOrders[i]
		if strings.TrimSpace(po.Number) == "" {
			return fmt.Errorf("purchase_orders[%d]: po_number is required", i)
		}
		if strings.TrimSpace(po.VendorName) == "" {
			return fmt.Errorf("purchase_orders[%d]: vendor_name is required", i)
		}
		if po.TotalAmount < 0 || po.InvoicedAmount < 0 {
			return fmt.Errorf("purchase_orders[%d]: amounts must not be negative", i)
		}
		if po.Status == "" {
			po.Status = entity.POStatusOpen
		}
		switch po.Status {
		case entity.POStatusOpen, entity.POStatusClosed, entity.POStatusFullyInvoiced:
		default:
			return fmt.Errorf("purchase_orders[%d]: unknown status %q", i, po.Status)
		}
	}

	for level := range d.Approvers {
		switch entity.ApprovalLevel(level) {
		case entity.LevelManager, entity.LevelDirector, entity.LevelExecutive, entity.LevelException:
		default:
			return fmt.Errorf("approvers: unknown level %q", level)
		}
	}
	return nil
}

// Apply upserts the vendors and purchase orders in a single transaction
func Apply(ctx context.Context, data *Data, writer port.MasterDataWriter, tx port.TransactionManager, logger *zap.Logger) (Summary, error) {
	var summary Summary

	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		for i := range data.Vendors {
			if err := writer.UpsertVendor(ctx, &data.Vendors[i]); err != nil {
				return fmt.Errorf("failed to load vendor %s: %w", data.Vendors[i].Name, err)
			}
			summary.Vendors++
		}
		for i := range data.PurchaseOrders {
			if err := writer.UpsertPO(ctx, &data.PurchaseOrders[i]); err != nil {
				return fmt.Errorf("failed to load purchase order %s: %w", data.PurchaseOrders[i].Number, err)
			}
			summary.PurchaseOrders++
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	logger.Info("Seed data loaded",
		zap.Int("vendors", summary.Vendors),
		zap.Int("purchase_orders", summary.PurchaseOrders))
	return summary, nil
}
