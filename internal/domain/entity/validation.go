package entity

import "time"

// ValidationStatus is the verdict of one check or of a whole validation run
type ValidationStatus string

const (
	ValidationPassed  ValidationStatus = "passed"
	ValidationWarning ValidationStatus = "warning"
	ValidationFailed  ValidationStatus = "failed"
)

// ExceptionKind names a condition that keeps an invoice out of straight-through processing
type ExceptionKind string

const (
	ExceptionMissingRequiredField ExceptionKind = "missing-required-field"
	ExceptionAmountOutOfRange     ExceptionKind = "amount-out-of-range"
	ExceptionAmountMismatch       ExceptionKind = "amount-mismatch"
	ExceptionInvalidDate          ExceptionKind = "invalid-date"
	ExceptionVendorUnapproved     ExceptionKind = "vendor-unapproved"
	ExceptionDuplicateInvoice     ExceptionKind = "duplicate-invoice"
	ExceptionDuplicateSuspected   ExceptionKind = "duplicate-suspected"
	ExceptionPOMismatch           ExceptionKind = "po-mismatch"
	ExceptionMissingPO            ExceptionKind = "missing-po"
	ExceptionLookupUnavailable    ExceptionKind = "lookup-unavailable"
)

// Check names, in evaluation order
const (
	CheckRequiredFields = "required_fields"
	CheckAmount         = "amount_validation"
	CheckDate           = "date_validation"
	CheckVendor         = "vendor_verification"
	CheckDuplicate      = "duplicate_detection"
	CheckPurchaseOrder  = "po_matching"
)

// CheckOutcome is the result of a single check
type CheckOutcome struct {
	Name       string           `json:"name"`
	Status     ValidationStatus `json:"status"`
	Message    string           `json:"message"`
	Exceptions []ExceptionKind  `json:"exceptions,omitempty"`
}

// ValidationResult is the snapshot produced by one validation run.
// Build it with NewValidationResult; it is not modified afterwards.
type ValidationResult struct {
	InvoiceID      string           `json:"invoice_id"`
	OverallStatus  ValidationStatus `json:"overall_status"`
	Checks         []CheckOutcome   `json:"checks"`
	CanAutoProcess bool             `json:"can_auto_process"`
	Exceptions     []ExceptionKind  `json:"exceptions"`
	ValidatedAt    time.Time        `json:"validated_at"`
}

// NewValidationResult aggregates check outcomes into a result.
// poSatisfied is true when the invoice carries a PO or none is required.
func NewValidationResult(invoiceID string, checks []CheckOutcome, poSatisfied bool, at time.Time) *ValidationResult {
	result := &ValidationResult{
		InvoiceID:     invoiceID,
		OverallStatus: ValidationPassed,
		Checks:        make([]CheckOutcome, len(checks)),
		Exceptions:    []ExceptionKind{},
		ValidatedAt:   at,
	}
	copy(result.Checks, checks)

	seen := make(map[ExceptionKind]bool)
	for _, c := range checks {
		switch c.Status {
		case ValidationFailed:
			result.OverallStatus = ValidationFailed
		case ValidationWarning:
			if result.OverallStatus == ValidationPassed {
				result.OverallStatus = ValidationWarning
			}
		}
		for _, kind := range c.Exceptions {
			if !seen[kind] {
				seen[kind] = true
				result.Exceptions = append(result.Exceptions, kind)
			}
		}
	}

	result.CanAutoProcess = result.OverallStatus == ValidationPassed &&
		len(result.Exceptions) == 0 &&
		poSatisfied

	return result
}

// Failed reports whether any check hard-failed
func (r *ValidationResult) Failed() bool {
	return r.OverallStatus == ValidationFailed
}

// HasExceptions reports whether any exception kind was raised
func (r *ValidationResult) HasExceptions() bool {
	return len(r.Exceptions) > 0
}

// HasException reports whether kind was raised
func (r *ValidationResult) HasException(kind ExceptionKind) bool {
	for _, k := range r.Exceptions {
		if k == kind {
			return true
		}
	}
	return false
}

// PrimaryException returns the first exception raised in check order
func (r *ValidationResult) PrimaryException() (ExceptionKind, bool) {
	if len(r.Exceptions) == 0 {
		return "", false
	}
	return r.Exceptions[0], true
}

// FirstFailure returns the first failed check in evaluation order
func (r *ValidationResult) FirstFailure() (CheckOutcome, bool) {
	for _, c := range r.Checks {
		if c.Status == ValidationFailed {
			return c, true
		}
	}
	return CheckOutcome{}, false
}

// Check returns the outcome of the named check
func (r *ValidationResult) Check(name string) (CheckOutcome, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckOutcome{}, false
}
