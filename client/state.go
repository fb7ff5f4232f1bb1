package client

// ConnectionState represents the current state of the transport session.
type ConnectionState int

const (
	// StateDisconnected means there is no live connection.
	StateDisconnected ConnectionState = iota

	// StateConnecting means a connection attempt is in progress.
	StateConnecting

	// StateConnected means the session is up and delivering events.
	StateConnected

	// StateRetrying means the last attempt failed and another is scheduled.
	StateRetrying

	// StateFailed means all attempts were exhausted.
	StateFailed

	// StateClosed means the session was explicitly closed.
	StateClosed
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRetrying:
		return "retrying"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StateEvent describes one state transition of the transport session.
// IdentityID is the identity the session was serving when the transition
// happened; observers use it to discard transitions for a stale identity.
type StateEvent struct {
	Old        ConnectionState
	New        ConnectionState
	IdentityID int64
	Err        error
}
