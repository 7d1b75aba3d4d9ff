package model

// WaitState represents the lifecycle state of a persisted Wait.
type WaitState string

const (
	WaitStateWaiting   WaitState = "WAITING"
	WaitStateCompleted WaitState = "COMPLETED"
	WaitStateFailed    WaitState = "FAILED"
	WaitStateTimedOut  WaitState = "TIMED_OUT"
	WaitStateSkipped   WaitState = "SKIPPED"
	WaitStateCancelled WaitState = "CANCELLED"
)

// String returns the string representation of the wait state.
func (s WaitState) String() string {
	return string(s)
}

// IsTerminal returns true if the wait is in a final state.
func (s WaitState) IsTerminal() bool {
	switch s {
	case WaitStateCompleted, WaitStateFailed, WaitStateTimedOut, WaitStateSkipped, WaitStateCancelled:
		return true
	}
	return false
}

// ValidWaitTransitions defines the allowed state transitions for Waits.
var ValidWaitTransitions = map[WaitState][]WaitState{
	WaitStateWaiting: {
		WaitStateCompleted,
		WaitStateFailed,
		WaitStateTimedOut,
		WaitStateSkipped,
		WaitStateCancelled,
	},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s WaitState) CanTransitionTo(next WaitState) bool {
	for _, allowed := range ValidWaitTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// WaitStateFor maps a terminal check decision onto the wait lifecycle.
// Pending decisions keep the wait in WAITING.
func WaitStateFor(d DecisionState) WaitState {
	switch d {
	case DecisionComplete:
		return WaitStateCompleted
	case DecisionFailed:
		return WaitStateFailed
	default:
		return WaitStateWaiting
	}
}
