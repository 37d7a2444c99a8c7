package workflow

import (
	"context"
	"fmt"

	domainwf "github.com/AshrafHassan95/invoice-automation-agent/internal/domain/workflow"
)

// BuildInvoiceStateMachine creates a state machine configured for the invoice approval lifecycle
func BuildInvoiceStateMachine(initialState domainwf.State, opts ...domainwf.BuilderOption) domainwf.StateMachine {
	builder := domainwf.NewBuilder(opts...)

	builder.Configure(domainwf.StateCreated).
		Permit(domainwf.TriggerValidate, domainwf.StateValidated)

	builder.Configure(domainwf.StateValidated).
		Permit(domainwf.TriggerRoute, domainwf.StateRouted)

	builder.Configure(domainwf.StateRouted).
		Permit(domainwf.TriggerAutoApprove, domainwf.StateAutoApproved).
		Permit(domainwf.TriggerRequestApproval, domainwf.StatePendingApproval)

	builder.Configure(domainwf.StatePendingApproval).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected)

	// AUTO_APPROVED, APPROVED and REJECTED are terminal

	return builder.Build(initialState)
}

// RunIntake drives a new invoice from CREATED through validation and routing,
// ending in AUTO_APPROVED or PENDING_APPROVAL. The fired transitions are
// returned in order so the caller can persist them.
func RunIntake(ctx context.Context, autoApproved bool, opts ...domainwf.BuilderOption) ([]domainwf.Transition, error) {
	machine := BuildInvoiceStateMachine(domainwf.StateCreated, opts...)

	final := domainwf.TriggerRequestApproval
	if autoApproved {
		final = domainwf.TriggerAutoApprove
	}

	for _, trigger := range []domainwf.Trigger{domainwf.TriggerValidate, domainwf.TriggerRoute, final} {
		if _, err := machine.Fire(ctx, trigger); err != nil {
			return nil, fmt.Errorf("intake transition %s failed: %w", trigger, err)
		}
	}

	return machine.History(), nil
}
