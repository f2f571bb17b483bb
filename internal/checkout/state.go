package checkout

// State is a step of the checkout state machine. Committed, Rejected and
// RolledBack are terminal.
type State string

const (
	StateIdle       State = "idle"
	StateLoaded     State = "loaded"
	StateLocked     State = "locked"
	StateValidated  State = "validated"
	StateDeducted   State = "deducted"
	StateRecorded   State = "recorded"
	StateAudited    State = "audited"
	StateCleared    State = "cleared"
	StateCommitted  State = "committed"
	StateRejected   State = "rejected"
	StateRolledBack State = "rolled_back"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	switch s {
	case StateCommitted, StateRejected, StateRolledBack:
		return true
	}
	return false
}
