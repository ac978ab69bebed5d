package workflow

// Trigger is an event that moves a requisition between states
type Trigger string

const (
	// TriggerSubmit generates the step list and starts the chain.
	TriggerSubmit Trigger = "SUBMIT"
	// TriggerAdvance moves the step pointer to the next group; the state is unchanged.
	TriggerAdvance Trigger = "ADVANCE"
	// TriggerComplete closes the chain after the last group is approved.
	TriggerComplete Trigger = "COMPLETE"
	TriggerReject   Trigger = "REJECT"

	// TriggerRequestModification is a manual side path, never fired by step processing.
	TriggerRequestModification Trigger = "REQUEST_MODIFICATION"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
