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

// ValidationRepository stores validation snapshots as JSON, keyed by invoice
type ValidationRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewValidationRepository creates a new validation repository
func NewValidationRepository(db *sqlite.DB, logger *zap.Logger) port.ValidationRepository {
	return &ValidationRepository{
		db:     db,
		logger: logger,
	}
}

// Save stores the result, replacing an earlier one for the same invoice
func (r *ValidationRepository) Save(ctx context.Context, result *entity.ValidationResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal validation result: %w", err)
	}

	query := `
		INSERT INTO validations (invoice_id, overall_status, can_auto_process, result, validated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(invoice_id) DO UPDATE SET
			overall_status = excluded.overall_status,
			can_auto_process = excluded.can_auto_process,
			result = excluded.result,
			validated_at = excluded.validated_at
	`
	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		result.InvoiceID, string(result.OverallStatus), boolInt(result.CanAutoProcess),
		string(data), formatTime(result.ValidatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to save validation result",
			zap.String("invoice_id", result.InvoiceID),
			zap.Error(err))
		return fmt.Errorf("failed to save validation result: %w", err)
	}
	return nil
}

// GetByInvoiceID returns nil, nil when the invoice was never validated
func (r *ValidationRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.ValidationResult, error) {
	var data string
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT result FROM validations WHERE invoice_id = ?`, invoiceID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get validation result",
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get validation result: %w", err)
	}

	var result entity.ValidationResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal validation result: %w", err)
	}
	return &result, nil
}

var _ port.ValidationRepository = (*ValidationRepository)(nil)
