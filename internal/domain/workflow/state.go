package workflow

import "fmt"

// State is a step in an invoice's approval lifecycle
type State string

const (
	StateCreated         State = "CREATED"
	StateValidated       State = "VALIDATED"
	StateRouted          State = "ROUTED"
	StateAutoApproved    State = "AUTO_APPROVED"
	StatePendingApproval State = "PENDING_APPROVAL"
	StateApproved        State = "APPROVED"
	StateRejected        State = "REJECTED"
)

var validStates = map[State]bool{
	StateCreated:         true,
	StateValidated:       true,
	StateRouted:          true,
	StateAutoApproved:    true,
	StatePendingApproval: true,
	StateApproved:        true,
	StateRejected:        true,
}

var terminalStates = map[State]bool{
	StateAutoApproved: true,
	StateApproved:     true,
	StateRejected:     true,
}

// IsTerminal returns true if no transition leaves the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// AcceptsDecision returns true if a human decision may be applied in this state
func (s State) AcceptsDecision() bool {
	return s == StatePendingApproval
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}

// ParseState converts a stored status into a State
func ParseState(s string) (State, error) {
	state := State(s)
	if !state.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
	return state, nil
}
