package event

// Type identifies the type of domain event
type Type string

const (
	TypeInvoiceReceived  Type = "invoice.received"
	TypeInvoiceValidated Type = "invoice.validated"
	TypeInvoiceRouted    Type = "invoice.routed"
	TypeAutoApproved     Type = "invoice.auto_approved"
	TypeApprovalRequired Type = "approval.required"
	TypeApprovalDecided  Type = "approval.decided"
	TypeStatusChanged    Type = "invoice.status_changed"
	TypeSLABreached      Type = "approval.sla_breached"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeInvoiceReceived,
		TypeInvoiceValidated,
		TypeInvoiceRouted,
		TypeAutoApproved,
		TypeApprovalRequired,
		TypeApprovalDecided,
		TypeStatusChanged,
		TypeSLABreached:
		return true
	default:
		return false
	}
}
