package pairing

import "fmt"

// State is the state of a pairing attempt.
type State int

const (
	// StateIdle means no request has been sent.
	StateIdle State = iota
	// StateAwaitingConfirmation means the request was sent and the vehicle
	// is waiting for the user to confirm the key.
	StateAwaitingConfirmation
	// StatePaired is terminal: the key was added to the whitelist.
	StatePaired
	// StateFailed is terminal: the vehicle rejected the key, the request
	// could not be sent or no answer arrived in time.
	StateFailed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingConfirmation:
		return "AwaitingConfirmation"
	case StatePaired:
		return "Paired"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// IsTerminal reports whether no further transition can happen.
func (s State) IsTerminal() bool {
	return s == StatePaired || s == StateFailed
}
