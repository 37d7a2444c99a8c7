package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/dispatcher"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/event"
	domainwf "github.com/AshrafHassan95/invoice-automation-agent/internal/domain/workflow"
	"github.com/AshrafHassan95/invoice-automation-agent/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type lifecycleImpl struct {
	invoiceRepo  port.InvoiceRepository
	approvalRepo port.ApprovalRepository
	auditRepo    port.AuditRepository
	txManager    port.TransactionManager
	dispatcher   dispatcher.Dispatcher
	logger       Logger
	now          func() time.Time
}

// LifecycleOption configures the lifecycle
type LifecycleOption func(*lifecycleImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) LifecycleOption {
	return func(l *lifecycleImpl) {
		l.dispatcher = d
	}
}

// WithLogger sets a logger for the lifecycle
func WithLogger(logger Logger) LifecycleOption {
	return func(l *lifecycleImpl) {
		l.logger = logger
	}
}

// WithClock sets the time source for decision timestamps
func WithClock(now func() time.Time) LifecycleOption {
	return func(l *lifecycleImpl) {
		l.now = now
	}
}

// NewLifecycle creates a new approval lifecycle
func NewLifecycle(
	invoiceRepo port.InvoiceRepository,
	approvalRepo port.ApprovalRepository,
	auditRepo port.AuditRepository,
	txManager port.TransactionManager,
	opts ...LifecycleOption,
) Lifecycle {
	l := &lifecycleImpl{
		invoiceRepo:  invoiceRepo,
		approvalRepo: approvalRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// ValidateDecision checks the fields a decision must carry
func ValidateDecision(decision entity.ApprovalDecision) error {
	if strings.TrimSpace(decision.ApproverName) == "" {
		return &domainwf.InvalidDecisionError{Field: "approver_name", Reason: "is required"}
	}
	email := strings.TrimSpace(decision.ApproverEmail)
	if email == "" {
		return &domainwf.InvalidDecisionError{Field: "approver_email", Reason: "is required"}
	}
	if err := utils.ValidateEmail(email); err != nil {
		return &domainwf.InvalidDecisionError{Field: "approver_email", Reason: "is not a valid address"}
	}
	if !decision.Action.IsValid() {
		return &domainwf.InvalidDecisionError{Field: "action", Reason: fmt.Sprintf("must be approve or reject, got %q", decision.Action)}
	}
	return nil
}

func (l *lifecycleImpl) Decide(ctx context.Context, invoiceID string, decision entity.ApprovalDecision) (*entity.ApprovalRequest, error) {
	if err := ValidateDecision(decision); err != nil {
		return nil, err
	}

	req, err := l.approvalRepo.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get approval request: %w", err)
	}
	if req == nil {
		return nil, &domainwf.InvoiceNotFoundError{InvoiceID: invoiceID}
	}
	if !req.IsPending() {
		return nil, &domainwf.StaleDecisionError{InvoiceID: invoiceID, Status: string(req.Status)}
	}

	decidedAt := l.now()
	recorded := entity.ApprovalDecision{
		ApproverName:  strings.TrimSpace(decision.ApproverName),
		ApproverEmail: strings.TrimSpace(decision.ApproverEmail),
		Comments:      utils.SanitizeString(decision.Comments),
		Action:        decision.Action,
		DecidedAt:     decidedAt,
	}
	to := decision.Action.ResultingStatus()

	var tr domainwf.Transition
	err = l.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		swapped, err := l.approvalRepo.CompareAndSetStatus(txCtx, invoiceID, entity.RequestPending, to, decidedAt)
		if err != nil {
			return fmt.Errorf("failed to update approval status: %w", err)
		}
		if !swapped {
			current, err := l.approvalRepo.GetByInvoiceID(txCtx, invoiceID)
			if err != nil {
				return fmt.Errorf("failed to reload approval request: %w", err)
			}
			status := "unknown"
			if current != nil {
				status = string(current.Status)
			}
			return &domainwf.StaleDecisionError{InvoiceID: invoiceID, Status: status}
		}

		entry, err := l.invoiceRepo.GetByID(txCtx, invoiceID)
		if err != nil {
			return fmt.Errorf("failed to get invoice: %w", err)
		}
		if entry == nil {
			return &domainwf.InvoiceNotFoundError{InvoiceID: invoiceID}
		}
		state, err := domainwf.ParseState(entry.Status)
		if err != nil {
			return err
		}

		machine := BuildInvoiceStateMachine(state, domainwf.WithClock(func() time.Time { return decidedAt }))
		tr, err = machine.Fire(txCtx, domainwf.TriggerFor(decision.Action))
		if err != nil {
			return fmt.Errorf("state machine fire failed: %w", err)
		}

		if err := l.approvalRepo.AttachDecision(txCtx, invoiceID, &recorded); err != nil {
			return fmt.Errorf("failed to record decision: %w", err)
		}
		if err := l.invoiceRepo.UpdateStatus(txCtx, invoiceID, tr.To.String()); err != nil {
			return fmt.Errorf("failed to update invoice status: %w", err)
		}

		audit := &entity.AuditRecord{
			InvoiceID: invoiceID,
			FromState: tr.From.String(),
			ToState:   tr.To.String(),
			Trigger:   tr.Trigger.String(),
			Actor:     recorded.ApproverEmail,
			Detail:    recorded.Comments,
			Timestamp: decidedAt,
		}
		if err := l.auditRepo.Append(txCtx, audit); err != nil {
			return fmt.Errorf("failed to append audit record: %w", err)
		}
		return nil
	})
	if err != nil {
		if l.logger != nil {
			l.logger.Error("Decision not applied",
				"invoice_id", invoiceID,
				"action", decision.Action,
				"error", err,
			)
		}
		return nil, err
	}

	req.Status = to
	req.DecidedAt = &decidedAt
	req.Decision = &recorded

	if l.logger != nil {
		l.logger.Info("Decision recorded",
			"invoice_id", invoiceID,
			"action", decision.Action,
			"approver", recorded.ApproverEmail,
			"new_state", tr.To,
		)
	}

	l.emit(ctx, req, tr)
	return req, nil
}

func (l *lifecycleImpl) CurrentState(ctx context.Context, invoiceID string) (domainwf.State, error) {
	entry, err := l.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return "", fmt.Errorf("failed to get invoice: %w", err)
	}
	if entry == nil {
		return "", &domainwf.InvoiceNotFoundError{InvoiceID: invoiceID}
	}
	return domainwf.ParseState(entry.Status)
}

func (l *lifecycleImpl) emit(ctx context.Context, req *entity.ApprovalRequest, tr domainwf.Transition) {
	if l.dispatcher == nil {
		return
	}

	decided := event.NewEvent(event.TypeApprovalDecided, req.InvoiceID, map[string]interface{}{
		"request_id": req.ID,
		"action":     string(req.Decision.Action),
		"approver":   req.Decision.ApproverEmail,
		"level":      string(req.Level),
	})
	l.dispatcher.DispatchAsync(ctx, decided)

	l.dispatcher.DispatchAsync(ctx, event.NewEventWithCorrelation(event.TypeStatusChanged, req.InvoiceID, map[string]interface{}{
		"previous_status": tr.From.String(),
		"new_status":      tr.To.String(),
		"trigger":         tr.Trigger.String(),
	}, decided.CorrelationID))
}
