package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/infrastructure/persistence/sqlite"
)

// AuditRepository implements port.AuditRepository. Triggers in the schema
// reject updates and deletes.
type AuditRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sqlite.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts the record and sets its ID
func (r *AuditRepository) Append(ctx context.Context, record *entity.AuditRecord) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, `
		INSERT INTO audit_log (invoice_id, from_state, to_state, trigger_name, actor, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.InvoiceID, record.FromState, record.ToState, record.Trigger,
		record.Actor, record.Detail, formatTime(record.Timestamp),
	)
	if err != nil {
		r.logger.Error("Failed to append audit record",
			zap.String("invoice_id", record.InvoiceID),
			zap.String("to_state", record.ToState),
			zap.Error(err))
		return fmt.Errorf("failed to append audit record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	record.ID = id
	return nil
}

// ListByInvoiceID returns the trail in append order
func (r *AuditRepository) ListByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.AuditRecord, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT id, invoice_id, from_state, to_state, trigger_name, actor, detail, created_at
		FROM audit_log
		WHERE invoice_id = ?
		ORDER BY id ASC`, invoiceID)
	if err != nil {
		r.logger.Error("Failed to list audit records",
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	records := []*entity.AuditRecord{}
	for rows.Next() {
		var (
			rec       entity.AuditRecord
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.InvoiceID, &rec.FromState, &rec.ToState,
			&rec.Trigger, &rec.Actor, &rec.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if rec.Timestamp, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

var _ port.AuditRepository = (*AuditRepository)(nil)
