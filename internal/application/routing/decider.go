// Package routing turns a validation verdict and an amount into an approval
// request: the level, the approver, the priority and the SLA deadline.
package routing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/rules"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Decider routes validated invoices. It is safe for concurrent use.
type Decider struct {
	rules     rules.Config
	directory port.ApproverDirectory
	now       func() time.Time
	newID     func() string
	logger    Logger
}

// Option configures the decider
type Option func(*Decider)

// WithClock sets the time source for created-at and SLA deadlines
func WithClock(now func() time.Time) Option {
	return func(d *Decider) {
		d.now = now
	}
}

// WithIDGenerator overrides request id generation
func WithIDGenerator(newID func() string) Option {
	return func(d *Decider) {
		d.newID = newID
	}
}

// WithLogger sets a logger for the decider
func WithLogger(logger Logger) Option {
	return func(d *Decider) {
		d.logger = logger
	}
}

// NewDecider creates a decider; an inconsistent rule table is rejected
func NewDecider(cfg rules.Config, directory port.ApproverDirectory, opts ...Option) (*Decider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if directory == nil {
		return nil, fmt.Errorf("approver directory is required")
	}

	d := &Decider{
		rules:     cfg.Clone(),
		directory: directory,
		now:       time.Now,
		newID:     func() string { return "APR-" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Route produces the approval request for an invoice. Routing always yields a
// request: exceptions go to a team, clean low-value invoices are approved
// outright and everything else is bucketed by amount.
func (d *Decider) Route(ctx context.Context, inv *entity.InvoiceRecord, validation *entity.ValidationResult) *entity.ApprovalRequest {
	now := d.now()
	req := &entity.ApprovalRequest{
		ID:         d.newID(),
		InvoiceID:  inv.ID,
		Amount:     inv.TotalAmount,
		Currency:   inv.Currency,
		VendorName: inv.VendorName,
		Status:     entity.RequestPending,
		CreatedAt:  now,
	}

	switch {
	case validation.Failed() || validation.HasExceptions():
		d.routeException(req, validation, now)
	case validation.CanAutoProcess && inv.TotalAmount <= d.rules.AutoApproveThreshold:
		req.Level = entity.LevelAuto
		req.AssignedTo = entity.AutoApprover
		req.Priority = entity.PriorityNormal
		req.Status = entity.RequestApproved
		req.DecidedAt = &now
		req.Reason = fmt.Sprintf("Auto-approved: all checks passed and amount %.2f is within the auto-approval threshold of %.2f",
			inv.TotalAmount, d.rules.AutoApproveThreshold)
	default:
		d.routeByAmount(ctx, req, inv.TotalAmount, now)
	}

	if d.logger != nil {
		d.logger.Info("Invoice routed",
			"invoice_id", inv.ID,
			"request_id", req.ID,
			"level", req.Level,
			"assigned_to", req.AssignedTo,
			"priority", req.Priority,
		)
	}

	return req
}

func (d *Decider) routeException(req *entity.ApprovalRequest, validation *entity.ValidationResult, now time.Time) {
	primary, _ := validation.PrimaryException()

	req.Level = entity.LevelException
	req.AssignedTo = TeamFor(primary)

	slaKey := rules.SLAException
	req.Priority = entity.PriorityHigh
	if validation.Failed() {
		req.Priority = entity.PriorityCritical
		slaKey = rules.SLACritical
	}
	req.SLADeadline = d.deadline(now, slaKey)
	req.Reason = exceptionReason(validation)
}

func (d *Decider) routeByAmount(ctx context.Context, req *entity.ApprovalRequest, amount float64, now time.Time) {
	switch {
	case amount <= d.rules.ManagerThreshold:
		req.Level = entity.LevelManager
		req.Priority = entity.PriorityNormal
		req.SLADeadline = d.deadline(now, rules.SLAManager)
	case amount <= d.rules.DirectorThreshold:
		req.Level = entity.LevelDirector
		req.Priority = entity.PriorityNormal
		req.SLADeadline = d.deadline(now, rules.SLADirector)
	default:
		req.Level = entity.LevelExecutive
		req.Priority = entity.PriorityCritical
		req.SLADeadline = d.deadline(now, rules.SLAExecutive)
	}

	req.AssignedTo = d.approverFor(ctx, req.Level)
	req.Reason = fmt.Sprintf("Amount %.2f requires %s approval", amount, req.Level)
}

func (d *Decider) approverFor(ctx context.Context, level entity.ApprovalLevel) string {
	approver, err := d.directory.ApproverFor(ctx, level)
	if err == nil && strings.TrimSpace(approver) != "" {
		return approver
	}

	if d.logger != nil {
		d.logger.Error("Approver lookup failed, assigning to role",
			"level", level,
			"error", err,
		)
	}
	return "role:" + string(level)
}

func (d *Decider) deadline(now time.Time, key string) *time.Time {
	t := now.Add(time.Duration(d.rules.SLAFor(key)) * time.Hour)
	return &t
}
