package entity

import "time"

// ApprovalLevel is the tier an invoice is routed to
type ApprovalLevel string

const (
	LevelAuto      ApprovalLevel = "auto"
	LevelManager   ApprovalLevel = "manager"
	LevelDirector  ApprovalLevel = "director"
	LevelExecutive ApprovalLevel = "executive"
	LevelException ApprovalLevel = "exception"
)

// IsValid reports whether the level is known
func (l ApprovalLevel) IsValid() bool {
	switch l {
	case LevelAuto, LevelManager, LevelDirector, LevelExecutive, LevelException:
		return true
	}
	return false
}

// Priority of an approval request
type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// RequestStatus is the status of an approval request
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// DecisionAction is what a human approver chose
type DecisionAction string

const (
	ActionApprove DecisionAction = "approve"
	ActionReject  DecisionAction = "reject"
)

// IsValid reports whether the action is approve or reject
func (a DecisionAction) IsValid() bool {
	return a == ActionApprove || a == ActionReject
}

// ResultingStatus maps the action onto the request status it produces
func (a DecisionAction) ResultingStatus() RequestStatus {
	if a == ActionApprove {
		return RequestApproved
	}
	return RequestRejected
}

// ApprovalRequest is the routing decision for one invoice
type ApprovalRequest struct {
	ID          string            `json:"id"`
	InvoiceID   string            `json:"invoice_id"`
	Level       ApprovalLevel     `json:"approval_level"`
	AssignedTo  string            `json:"assigned_to"`
	Priority    Priority          `json:"priority"`
	Reason      string            `json:"reason"`
	Amount      float64           `json:"amount"`
	Currency    string            `json:"currency"`
	VendorName  string            `json:"vendor_name"`
	SLADeadline *time.Time        `json:"sla_deadline,omitempty"`
	Status      RequestStatus     `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	DecidedAt   *time.Time        `json:"decided_at,omitempty"`
	Decision    *ApprovalDecision `json:"decision,omitempty"`

	// SLABreachedAt is set once when the monitor reports the missed deadline
	SLABreachedAt *time.Time `json:"sla_breached_at,omitempty"`
}

// IsPending reports whether the request still awaits a human decision
func (r *ApprovalRequest) IsPending() bool {
	return r.Status == RequestPending
}

// Overdue reports whether a pending request has passed its SLA deadline
func (r *ApprovalRequest) Overdue(now time.Time) bool {
	return r.IsPending() && r.SLADeadline != nil && now.After(*r.SLADeadline)
}

// BreachUnreported reports whether the request is overdue and no breach has
// been recorded for it yet
func (r *ApprovalRequest) BreachUnreported(now time.Time) bool {
	return r.Overdue(now) && r.SLABreachedAt == nil
}

// ApprovalDecision is a human verdict on a pending request.
// Once attached to a request it is never changed.
type ApprovalDecision struct {
	ApproverName  string         `json:"approver_name"`
	ApproverEmail string         `json:"approver_email"`
	Comments      string         `json:"comments,omitempty"`
	Action        DecisionAction `json:"action"`
	DecidedAt     time.Time      `json:"decided_at"`
}
