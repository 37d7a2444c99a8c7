// Package workflow applies lifecycle transitions to stored invoices.
package workflow

import (
	"context"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"
	domainwf "github.com/AshrafHassan95/invoice-automation-agent/internal/domain/workflow"
)

// Lifecycle records human decisions against pending approval requests
type Lifecycle interface {
	// Decide applies a decision to the invoice's pending request. Exactly one
	// of several concurrent decisions succeeds; the others get a
	// StaleDecisionError.
	Decide(ctx context.Context, invoiceID string, decision entity.ApprovalDecision) (*entity.ApprovalRequest, error)

	// CurrentState returns the stored lifecycle state of an invoice
	CurrentState(ctx context.Context, invoiceID string) (domainwf.State, error)
}
