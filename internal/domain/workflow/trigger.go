package workflow

import "github.com/AshrafHassan95/invoice-automation-agent/internal/domain/entity"

// Trigger is an event that moves an invoice between states
type Trigger string

const (
	TriggerValidate        Trigger = "VALIDATE"
	TriggerRoute           Trigger = "ROUTE"
	TriggerAutoApprove     Trigger = "AUTO_APPROVE"
	TriggerRequestApproval Trigger = "REQUEST_APPROVAL"
	TriggerApprove         Trigger = "APPROVE"
	TriggerReject          Trigger = "REJECT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// TriggerFor maps a decision action onto its trigger
func TriggerFor(action entity.DecisionAction) Trigger {
	if action == entity.ActionApprove {
		return TriggerApprove
	}
	return TriggerReject
}
