package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/infrastructure/persistence/sqlite"
)

const approvalSelect = `
	SELECT r.id, r.invoice_id, r.level, r.assigned_to, r.priority, r.reason,
		r.amount, r.currency, r.vendor_name, r.sla_deadline, r.status,
		r.created_at, r.decided_at, r.sla_breached_at,
		d.approver_name, d.approver_email, d.comments, d.action, d.decided_at
	FROM approval_requests r
	LEFT JOIN approval_decisions d ON d.invoice_id = r.invoice_id`

// queueOrder matches the in-memory queue: priority, then deadline, then age
const queueOrder = `
	ORDER BY CASE r.priority WHEN 'critical' THEN 0 WHEN 'high' THEN 1 ELSE 2 END,
		r.sla_deadline IS NULL, r.sla_deadline, r.created_at`

// ApprovalRepository implements port.ApprovalRepository
type ApprovalRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sqlite.DB, logger *zap.Logger) port.ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the routing decision for an invoice
func (r *ApprovalRepository) Create(ctx context.Context, req *entity.ApprovalRequest) error {
	query := `
		INSERT INTO approval_requests (
			id, invoice_id, level, assigned_to, priority, reason,
			amount, currency, vendor_name, sla_deadline, status,
			created_at, decided_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		req.ID, req.InvoiceID, string(req.Level), req.AssignedTo, string(req.Priority), req.Reason,
		req.Amount, req.Currency, req.VendorName, nullTime(req.SLADeadline), string(req.Status),
		formatTime(req.CreatedAt), nullTime(req.DecidedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("approval request for %s: %w", req.InvoiceID, port.ErrAlreadyExists)
		}
		r.logger.Error("Failed to create approval request",
			zap.String("invoice_id", req.InvoiceID),
			zap.Error(err))
		return fmt.Errorf("failed to create approval request: %w", err)
	}
	return nil
}

// GetByInvoiceID returns the request with its decision, or nil, nil
func (r *ApprovalRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.ApprovalRequest, error) {
	req, err := scanApproval(r.db.Executor(ctx).QueryRowContext(ctx,
		approvalSelect+` WHERE r.invoice_id = ?`, invoiceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval request",
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get approval request: %w", err)
	}
	return req, nil
}

// CompareAndSetStatus updates the status only while it still equals from.
// The caller that sees true owns the decision.
func (r *ApprovalRepository) CompareAndSetStatus(ctx context.Context, invoiceID string, from, to entity.RequestStatus, decidedAt time.Time) (bool, error) {
	result, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE approval_requests SET status = ?, decided_at = ? WHERE invoice_id = ? AND status = ?`,
		string(to), formatTime(decidedAt), invoiceID, string(from),
	)
	if err != nil {
		r.logger.Error("Failed to update approval status",
			zap.String("invoice_id", invoiceID),
			zap.String("to", string(to)),
			zap.Error(err))
		return false, fmt.Errorf("failed to update approval status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows == 1, nil
}

// AttachDecision stores the decision; a second one is rejected by the unique key
func (r *ApprovalRepository) AttachDecision(ctx context.Context, invoiceID string, decision *entity.ApprovalDecision) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx, `
		INSERT INTO approval_decisions (invoice_id, approver_name, approver_email, comments, action, decided_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		invoiceID, decision.ApproverName, decision.ApproverEmail, decision.Comments,
		string(decision.Action), formatTime(decision.DecidedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("decision for %s: %w", invoiceID, port.ErrAlreadyExists)
		}
		r.logger.Error("Failed to attach decision",
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
		return fmt.Errorf("failed to attach decision: %w", err)
	}
	return nil
}

// ListPending returns the pending queue, most urgent first
func (r *ApprovalRepository) ListPending(ctx context.Context, limit int) ([]*entity.ApprovalRequest, error) {
	return r.list(ctx, approvalSelect+` WHERE r.status = 'pending'`+queueOrder+` LIMIT ?`, sqlLimit(limit))
}

// ListOverdue returns pending requests whose deadline is before now and
// whose breach is not recorded yet
func (r *ApprovalRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*entity.ApprovalRequest, error) {
	return r.list(ctx, approvalSelect+`
		WHERE r.status = 'pending' AND r.sla_breached_at IS NULL
			AND r.sla_deadline IS NOT NULL AND r.sla_deadline < ?`+queueOrder+` LIMIT ?`,
		formatTime(now), sqlLimit(limit))
}

// MarkSLABreached sets sla_breached_at once, while the request is pending
func (r *ApprovalRepository) MarkSLABreached(ctx context.Context, invoiceID string, at time.Time) (bool, error) {
	result, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE approval_requests SET sla_breached_at = ?
		WHERE invoice_id = ? AND status = 'pending' AND sla_breached_at IS NULL`,
		formatTime(at), invoiceID,
	)
	if err != nil {
		r.logger.Error("Failed to mark SLA breach",
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
		return false, fmt.Errorf("failed to mark SLA breach: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows == 1, nil
}

func (r *ApprovalRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.ApprovalRequest, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list approval requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list approval requests: %w", err)
	}
	defer rows.Close()

	requests := []*entity.ApprovalRequest{}
	for rows.Next() {
		req, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanApproval(row rowScanner) (*entity.ApprovalRequest, error) {
	var (
		req           entity.ApprovalRequest
		level         string
		priority      string
		status        string
		slaDeadline   sql.NullString
		createdAt     string
		decidedAt     sql.NullString
		breachedAt    sql.NullString
		approverName  sql.NullString
		approverEmail sql.NullString
		comments      sql.NullString
		action        sql.NullString
		decisionAt    sql.NullString
	)

	err := row.Scan(
		&req.ID, &req.InvoiceID, &level, &req.AssignedTo, &priority, &req.Reason,
		&req.Amount, &req.Currency, &req.VendorName, &slaDeadline, &status,
		&createdAt, &decidedAt, &breachedAt,
		&approverName, &approverEmail, &comments, &action, &decisionAt,
	)
	if err != nil {
		return nil, err
	}

	req.Level = entity.ApprovalLevel(level)
	req.Priority = entity.Priority(priority)
	req.Status = entity.RequestStatus(status)
	if req.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if req.SLADeadline, err = parseNullTime(slaDeadline); err != nil {
		return nil, err
	}
	if req.DecidedAt, err = parseNullTime(decidedAt); err != nil {
		return nil, err
	}
	if req.SLABreachedAt, err = parseNullTime(breachedAt); err != nil {
		return nil, err
	}

	if action.Valid {
		at, err := parseNullTime(decisionAt)
		if err != nil {
			return nil, err
		}
		req.Decision = &entity.ApprovalDecision{
			ApproverName:  approverName.String,
			ApproverEmail: approverEmail.String,
			Comments:      comments.String,
			Action:        entity.DecisionAction(action.String),
		}
		if at != nil {
			req.Decision.DecidedAt = *at
		}
	}
	return &req, nil
}

var _ port.ApprovalRepository = (*ApprovalRepository)(nil)
