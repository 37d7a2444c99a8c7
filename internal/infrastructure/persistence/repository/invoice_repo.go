package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/infrastructure/persistence/sqlite"
)

const invoiceColumns = `
	id, vendor_name, invoice_number, invoice_date, due_date, po_number,
	subtotal, tax_amount, total_amount, currency, line_items,
	extraction_confidence, document_path, received_at,
	status, processing_time_ms, created_at, updated_at`

// InvoiceRepository implements port.InvoiceRepository
type InvoiceRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
	opts   options
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sqlite.DB, logger *zap.Logger, opts ...Option) port.InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
		opts:   buildOptions(opts),
	}
}

// Create inserts the invoice with its initial status
func (r *InvoiceRepository) Create(ctx context.Context, entry *entity.InvoiceEntry) error {
	inv := entry.Invoice
	lineItems, err := json.Marshal(inv.LineItems)
	if err != nil {
		return fmt.Errorf("failed to marshal line items: %w", err)
	}

	query := `
		INSERT INTO invoices (
			id, vendor_name, vendor_key, invoice_number, number_key,
			invoice_date, due_date, po_number, subtotal, tax_amount,
			total_amount, currency, line_items, extraction_confidence,
			document_path, received_at, status, processing_time_ms,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var invoiceDate interface{}
	if !inv.InvoiceDate.IsZero() {
		invoiceDate = inv.InvoiceDate.String()
	}

	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		inv.ID, inv.VendorName, key(inv.VendorName), inv.InvoiceNumber, key(inv.InvoiceNumber),
		invoiceDate, nullDate(inv.DueDate), inv.PONumber, nullFloat(inv.Subtotal), nullFloat(inv.TaxAmount),
		inv.TotalAmount, inv.Currency, string(lineItems), inv.ExtractionConfidence,
		inv.DocumentPath, formatTime(inv.ReceivedAt), entry.Status, entry.ProcessingTimeMs,
		formatTime(entry.CreatedAt), formatTime(entry.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("invoice %s: %w", inv.ID, port.ErrAlreadyExists)
		}
		r.logger.Error("Failed to create invoice",
			zap.String("invoice_id", inv.ID),
			zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// GetByID returns nil, nil when the invoice does not exist
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*entity.InvoiceEntry, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`

	entry, err := scanInvoice(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice by ID",
			zap.String("invoice_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return entry, nil
}

// UpdateStatus moves the stored lifecycle status
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE invoices SET status = ?, updated_at = ? WHERE id = ?`,
		status, formatTime(r.opts.now()), id,
	)
	if err != nil {
		r.logger.Error("Failed to update invoice status",
			zap.String("invoice_id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update invoice status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("invoice not found: %s", id)
	}
	return nil
}

// List returns invoices newest first
func (r *InvoiceRepository) List(ctx context.Context, filter port.InvoiceFilter) ([]*entity.InvoiceEntry, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices
		WHERE (? = '' OR status = ?)
		ORDER BY created_at DESC, id ASC
		LIMIT ? OFFSET ?`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query,
		filter.Status, filter.Status, sqlLimit(filter.Limit), filter.Offset)
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.String("status", filter.Status), zap.Error(err))
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	entries := []*entity.InvoiceEntry{}
	for rows.Next() {
		entry, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Statistics aggregates counts and amounts per status
func (r *InvoiceRepository) Statistics(ctx context.Context) (*entity.Statistics, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0), COALESCE(SUM(processing_time_ms), 0)
		FROM invoices
		GROUP BY status
	`)
	if err != nil {
		r.logger.Error("Failed to compute statistics", zap.Error(err))
		return nil, fmt.Errorf("failed to compute statistics: %w", err)
	}
	defer rows.Close()

	stats := &entity.Statistics{ByStatus: make(map[string]int64)}
	var totalMs int64
	for rows.Next() {
		var (
			status string
			count  int64
			amount float64
			ms     int64
		)
		if err := rows.Scan(&status, &count, &amount, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan statistics: %w", err)
		}
		stats.ByStatus[status] = count
		stats.TotalInvoices += count
		stats.TotalAmount += amount
		totalMs += ms
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.TotalInvoices > 0 {
		stats.AvgProcessingTimeMs = float64(totalMs) / float64(stats.TotalInvoices)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (*entity.InvoiceEntry, error) {
	var (
		entry       entity.InvoiceEntry
		invoiceDate sql.NullString
		dueDate     sql.NullString
		subtotal    sql.NullFloat64
		tax         sql.NullFloat64
		lineItems   string
		receivedAt  string
		createdAt   string
		updatedAt   string
	)

	inv := &entry.Invoice
	err := row.Scan(
		&inv.ID, &inv.VendorName, &inv.InvoiceNumber, &invoiceDate, &dueDate, &inv.PONumber,
		&subtotal, &tax, &inv.TotalAmount, &inv.Currency, &lineItems,
		&inv.ExtractionConfidence, &inv.DocumentPath, &receivedAt,
		&entry.Status, &entry.ProcessingTimeMs, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if invoiceDate.Valid {
		if inv.InvoiceDate, err = entity.ParseDate(invoiceDate.String); err != nil {
			return nil, err
		}
	}
	if dueDate.Valid && dueDate.String != "" {
		due, err := entity.ParseDate(dueDate.String)
		if err != nil {
			return nil, err
		}
		inv.DueDate = &due
	}
	inv.Subtotal = floatPtr(subtotal)
	inv.TaxAmount = floatPtr(tax)

	if err := json.Unmarshal([]byte(lineItems), &inv.LineItems); err != nil {
		return nil, fmt.Errorf("failed to unmarshal line items: %w", err)
	}
	if inv.ReceivedAt, err = parseTime(receivedAt); err != nil {
		return nil, err
	}
	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if entry.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &entry, nil
}

var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
