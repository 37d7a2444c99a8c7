package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/infrastructure/persistence/sqlite"
)

// LookupRepository answers validation lookups from the vendors, purchase
// orders and invoices tables, and loads master data
type LookupRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
	opts   options
}

// NewLookupRepository creates a new lookup repository
func NewLookupRepository(db *sqlite.DB, logger *zap.Logger, opts ...Option) *LookupRepository {
	return &LookupRepository{
		db:     db,
		logger: logger,
		opts:   buildOptions(opts),
	}
}

// FindVendor matches the name case-insensitively
func (r *LookupRepository) FindVendor(ctx context.Context, name string) (*entity.VendorRecord, error) {
	var (
		v        entity.VendorRecord
		active   int
		approved int
	)
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT id, name, active, approved, tax_id FROM vendors WHERE name_key = ?`, key(name),
	).Scan(&v.ID, &v.Name, &active, &approved, &v.TaxID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.unavailable("vendor", name, err)
	}

	v.Active = active != 0
	v.Approved = approved != 0
	return &v, nil
}

// FindPO matches the PO number case-insensitively
func (r *LookupRepository) FindPO(ctx context.Context, number string) (*entity.PORecord, error) {
	var (
		po        entity.PORecord
		createdAt sql.NullString
	)
	err := r.db.Executor(ctx).QueryRowContext(ctx, `
		SELECT po_number, vendor_name, total_amount, invoiced_amount, currency, status, created_at
		FROM purchase_orders WHERE number_key = ?`, key(number),
	).Scan(&po.Number, &po.VendorName, &po.TotalAmount, &po.InvoicedAmount, &po.Currency, &po.Status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.unavailable("purchase order", number, err)
	}

	at, err := parseNullTime(createdAt)
	if err != nil {
		return nil, r.unavailable("purchase order", number, err)
	}
	if at != nil {
		po.CreatedAt = *at
	}
	return &po, nil
}

// FindRecentInvoices returns the vendor's invoices received in the last windowDays
func (r *LookupRepository) FindRecentInvoices(ctx context.Context, vendor string, windowDays int) ([]entity.InvoiceRecord, error) {
	cutoff := r.opts.now().AddDate(0, 0, -windowDays)
	return r.invoices(ctx, "recent invoices", vendor, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE vendor_key = ? AND received_at >= ?
		ORDER BY received_at DESC`,
		key(vendor), formatTime(cutoff))
}

// FindInvoicesByNumber returns every invoice from vendor carrying number
func (r *LookupRepository) FindInvoicesByNumber(ctx context.Context, vendor, number string) ([]entity.InvoiceRecord, error) {
	return r.invoices(ctx, "invoices by number", vendor, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE vendor_key = ? AND number_key = ?
		ORDER BY received_at DESC`,
		key(vendor), key(number))
}

func (r *LookupRepository) invoices(ctx context.Context, what, vendor, query string, args ...interface{}) ([]entity.InvoiceRecord, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.unavailable(what, vendor, err)
	}
	defer rows.Close()

	var out []entity.InvoiceRecord
	for rows.Next() {
		entry, err := scanInvoice(rows)
		if err != nil {
			return nil, r.unavailable(what, vendor, err)
		}
		out = append(out, entry.Invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, r.unavailable(what, vendor, err)
	}
	return out, nil
}

// UpsertVendor inserts or replaces a vendor by name
func (r *LookupRepository) UpsertVendor(ctx context.Context, vendor *entity.VendorRecord) error {
	if key(vendor.Name) == "" {
		return fmt.Errorf("vendor name is required")
	}

	_, err := r.db.Executor(ctx).ExecContext(ctx, `
		INSERT INTO vendors (name_key, id, name, active, approved, tax_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name_key) DO UPDATE SET
			id = excluded.id,
			name = excluded.name,
			active = excluded.active,
			approved = excluded.approved,
			tax_id = excluded.tax_id`,
		key(vendor.Name), vendor.ID, vendor.Name, boolInt(vendor.Active), boolInt(vendor.Approved), vendor.TaxID,
	)
	if err != nil {
		r.logger.Error("Failed to upsert vendor", zap.String("vendor", vendor.Name), zap.Error(err))
		return fmt.Errorf("failed to upsert vendor: %w", err)
	}
	return nil
}

// UpsertPO inserts or replaces a purchase order by number
func (r *LookupRepository) UpsertPO(ctx context.Context, po *entity.PORecord) error {
	if key(po.Number) == "" {
		return fmt.Errorf("po number is required")
	}

	var createdAt interface{}
	if !po.CreatedAt.IsZero() {
		createdAt = formatTime(po.CreatedAt)
	}

	_, err := r.db.Executor(ctx).ExecContext(ctx, `
		INSERT INTO purchase_orders (number_key, po_number, vendor_name, total_amount, invoiced_amount, currency, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(number_key) DO UPDATE SET
			po_number = excluded.po_number,
			vendor_name = excluded.vendor_name,
			total_amount = excluded.total_amount,
			invoiced_amount = excluded.invoiced_amount,
			currency = excluded.currency,
			status = excluded.status,
			created_at = excluded.created_at`,
		key(po.Number), po.Number, po.VendorName, po.TotalAmount, po.InvoicedAmount, po.Currency, po.Status, createdAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert purchase order", zap.String("po_number", po.Number), zap.Error(err))
		return fmt.Errorf("failed to upsert purchase order: %w", err)
	}
	return nil
}

func (r *LookupRepository) unavailable(what, subject string, err error) error {
	r.logger.Error("Lookup failed",
		zap.String("lookup", what),
		zap.String("subject", subject),
		zap.Error(err))
	return fmt.Errorf("%w: %s %q: %w", port.ErrLookupUnavailable, what, subject, err)
}

var (
	_ port.Lookup           = (*LookupRepository)(nil)
	_ port.MasterDataWriter = (*LookupRepository)(nil)
)
