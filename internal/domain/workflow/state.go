package workflow

import "fmt"

// State represents a workflow state in a request's approval lifecycle
type State string

const (
	StatePending                 State = "Pending"
	StatePendingHRApproval       State = "Pending HR Approval"
	StatePendingDirectorApproval State = "Pending Director Approval"
	StateApproved                State = "Approved"
	StateRejected                State = "Rejected"

	// Conveyance tracks
	StateSeen State = "Seen"

	// Asset chain
	StatePendingTLApproval               State = "Pending TL Approval"
	StatePendingProcurementApproval      State = "Pending Procurement Approval"
	StatePendingTLFinalApproval          State = "Pending TL Final Approval"
	StatePendingManagingDirectorApproval State = "Pending Managing Director Approval"
	StatePendingProcurementFinalApproval State = "Pending Procurement Final Approval"
	StatePendingAccountsApproval         State = "Pending Accounts Approval"
	StatePendingFinalDelivery            State = "Pending Final Delivery"
	StateCompleted                       State = "Completed"
	StateRejectedByTeamLead              State = "Rejected by Team Lead"
	StateRejectedByProcurement           State = "Rejected by Procurement"
	StateRejectedByManagingDirector      State = "Rejected by Managing Director"
	StateRejectedByAccounts              State = "Rejected by Accounts"
)

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// Track names a status column. Most request types have a single track;
// conveyance claims carry two independent ones.
type Track string

const (
	TrackStatus   Track = "status"
	TrackHR       Track = "status_hr"
	TrackAccounts Track = "status_accounts"
)

// String returns the string representation of the track
func (t Track) String() string {
	return string(t)
}

// StateSet is the declared, finite set of states of one machine
type StateSet struct {
	ordered  []State
	valid    map[State]bool
	terminal map[State]bool
}

// NewStateSet declares the states of a machine. Every terminal state must also be declared.
func NewStateSet(states []State, terminal ...State) StateSet {
	set := StateSet{
		ordered:  append([]State{}, states...),
		valid:    make(map[State]bool, len(states)),
		terminal: make(map[State]bool, len(terminal)),
	}
	for _, s := range states {
		set.valid[s] = true
	}
	for _, s := range terminal {
		if !set.valid[s] {
			panic(fmt.Sprintf("terminal state %q is not declared", s))
		}
		set.terminal[s] = true
	}
	return set
}

// IsValid returns true if the state belongs to the set
func (s StateSet) IsValid(state State) bool {
	return s.valid[state]
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s StateSet) IsTerminal(state State) bool {
	return s.terminal[state]
}

// States returns the declared states in declaration order
func (s StateSet) States() []State {
	return append([]State{}, s.ordered...)
}

// Terminal returns the terminal states in declaration order
func (s StateSet) Terminal() []State {
	out := make([]State, 0, len(s.terminal))
	for _, st := range s.ordered {
		if s.terminal[st] {
			out = append(out, st)
		}
	}
	return out
}

// Parse validates a raw status string against the set
func (s StateSet) Parse(raw string) (State, error) {
	st := State(raw)
	if !s.valid[st] {
		return "", fmt.Errorf("%w: %q", ErrInvalidState, raw)
	}
	return st, nil
}
