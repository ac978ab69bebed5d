package workflow

import (
	domainwf "github.com/eddyoasis/procurement-workflow/internal/domain/workflow"
)

// BuildRequisitionStateMachine creates a state machine configured for the
// requisition lifecycle, starting in initialState.
func BuildRequisitionStateMachine(initialState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StateDraft).
		Permit(domainwf.TriggerSubmit, domainwf.StateSubmitted)

	// The step pointer moves inside SUBMITTED; only the last group completes it.
	builder.Configure(domainwf.StateSubmitted).
		PermitReentry(domainwf.TriggerAdvance).
		Permit(domainwf.TriggerComplete, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		Permit(domainwf.TriggerRequestModification, domainwf.StateRequiresModification)

	// APPROVED, REJECTED and REQUIRES_MODIFICATION have no outgoing transitions here.

	return builder.Build(initialState)
}
