package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrStaleDecision is matched by StaleDecisionError
	ErrStaleDecision = errors.New("stale decision")

	// ErrInvoiceNotFound is matched by InvoiceNotFoundError
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrInvalidDecision is matched by InvalidDecisionError
	ErrInvalidDecision = errors.New("invalid decision")
)

// StaleDecisionError reports a decision on an invoice that is no longer pending
type StaleDecisionError struct {
	InvoiceID string
	Status    string
}

func (e *StaleDecisionError) Error() string {
	return fmt.Sprintf("stale decision: invoice %s is %s, not pending approval", e.InvoiceID, e.Status)
}

func (e *StaleDecisionError) Unwrap() error { return ErrStaleDecision }

// InvoiceNotFoundError reports a decision on an unknown invoice id
type InvoiceNotFoundError struct {
	InvoiceID string
}

func (e *InvoiceNotFoundError) Error() string {
	return fmt.Sprintf("invoice not found: %s", e.InvoiceID)
}

func (e *InvoiceNotFoundError) Unwrap() error { return ErrInvoiceNotFound }

// InvalidDecisionError reports a malformed decision
type InvalidDecisionError struct {
	Field  string
	Reason string
}

func (e *InvalidDecisionError) Error() string {
	return fmt.Sprintf("invalid decision: %s %s", e.Field, e.Reason)
}

func (e *InvalidDecisionError) Unwrap() error { return ErrInvalidDecision }
