package entity

// Actors recorded in audit trails
const (
	ActorSystem = "system"
	ActorSLA    = "sla-monitor"
)

// Exception handling teams
const (
	TeamProcurement      = "procurement"
	TeamVendorManagement = "vendor-management"
	TeamAccountsPayable  = "accounts-payable"
)

// AutoApprover is recorded as the approver of auto-approved invoices
const AutoApprover = "SYSTEM"
