// Package validation runs the fixed battery of business-rule checks that turn
// an extracted invoice into a validation verdict.
package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/rules"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Evaluator validates invoices against a rule table. It holds no per-invoice
// state and is safe for concurrent use.
type Evaluator struct {
	rules  rules.Config
	now    func() time.Time
	logger Logger
}

// Option configures the evaluator
type Option func(*Evaluator)

// WithClock sets the time source used for date checks
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

// WithLogger sets a logger for the evaluator
func WithLogger(logger Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// NewEvaluator creates an evaluator; an inconsistent rule table is rejected
func NewEvaluator(cfg rules.Config, opts ...Option) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Evaluator{
		rules: cfg.Clone(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Rules returns a copy of the rule table in use
func (e *Evaluator) Rules() rules.Config {
	return e.rules.Clone()
}

// Evaluate runs every check in order and aggregates the outcomes.
// It never returns an error: defects and lookup failures become failed checks.
func (e *Evaluator) Evaluate(ctx context.Context, inv *entity.InvoiceRecord, lookup port.Lookup) *entity.ValidationResult {
	if inv == nil {
		inv = &entity.InvoiceRecord{}
	}
	now := e.now()

	checks := []entity.CheckOutcome{
		e.checkRequiredFields(inv),
		e.checkAmount(inv),
		e.checkDates(inv, entity.DateOf(now)),
		e.checkVendor(ctx, inv, lookup),
		e.checkDuplicates(ctx, inv, lookup),
		e.checkPurchaseOrder(ctx, inv, lookup),
	}

	poSatisfied := inv.HasPO() || !e.rules.RequirePOForAutoApproval
	result := entity.NewValidationResult(inv.ID, checks, poSatisfied, now)

	if e.logger != nil {
		e.logger.Info("Invoice validated",
			"invoice_id", inv.ID,
			"overall_status", result.OverallStatus,
			"can_auto_process", result.CanAutoProcess,
			"exceptions", fmt.Sprint(result.Exceptions),
		)
	}

	return result
}

func (e *Evaluator) lookupFailed(check, what string, inv *entity.InvoiceRecord, err error) entity.CheckOutcome {
	if e.logger != nil {
		e.logger.Error("Lookup failed during validation",
			"invoice_id", inv.ID,
			"check", check,
			"error", err,
		)
	}
	return failed(check, fmt.Sprintf("%s lookup unavailable: %v", what, err), entity.ExceptionLookupUnavailable)
}

func passed(name, message string) entity.CheckOutcome {
	return entity.CheckOutcome{Name: name, Status: entity.ValidationPassed, Message: message}
}

func warning(name, message string, kinds ...entity.ExceptionKind) entity.CheckOutcome {
	return entity.CheckOutcome{Name: name, Status: entity.ValidationWarning, Message: message, Exceptions: kinds}
}

func failed(name, message string, kinds ...entity.ExceptionKind) entity.CheckOutcome {
	return entity.CheckOutcome{Name: name, Status: entity.ValidationFailed, Message: message, Exceptions: kinds}
}
