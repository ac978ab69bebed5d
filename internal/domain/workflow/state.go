package workflow

// State is the lifecycle state of a requisition
type State string

const (
	StateDraft                State = "DRAFT"
	StateSubmitted            State = "SUBMITTED"
	StateApproved             State = "APPROVED"
	StateRejected             State = "REJECTED"
	StateRequiresModification State = "REQUIRES_MODIFICATION"
)

var validStates = map[State]bool{
	StateDraft:                true,
	StateSubmitted:            true,
	StateApproved:             true,
	StateRejected:             true,
	StateRequiresModification: true,
}

// Approved and Rejected close the approval chain; nothing is processed after them.
var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// IsTerminal returns true if no further step may be processed in this state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known requisition state
func (s State) IsValid() bool {
	return validStates[s]
}
