package domain

// ConnectionState represents the state of the node subscription.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateLive         ConnectionState = "live"
	StateRecovering   ConnectionState = "recovering"
)

// transitions lists the legal moves of the supervisor state machine.
// Disconnected is only re-entered on shutdown, which is allowed from anywhere.
var transitions = map[ConnectionState][]ConnectionState{
	StateDisconnected: {StateConnecting},
	StateConnecting:   {StateLive, StateRecovering},
	StateLive:         {StateLive, StateRecovering},
	StateRecovering:   {StateConnecting},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to ConnectionState) bool {
	if to == StateDisconnected {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Gauge returns the numeric value exported on the connection state gauge.
func (s ConnectionState) Gauge() int64 {
	switch s {
	case StateConnecting:
		return 1
	case StateLive:
		return 2
	case StateRecovering:
		return 3
	default:
		return 0
	}
}
