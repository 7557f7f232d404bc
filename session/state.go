package session

// State is the lifecycle state of a streaming session.
type State int32

const (
	// StateIdle is the initial state before the first Connect.
	StateIdle State = iota

	// StateConnecting means a dial is in flight.
	StateConnecting

	// StateConnected means the transport is live and sends are permitted.
	StateConnected

	// StateDisconnected is the transient state entered on transport failure
	// before the reconnect controller decides what happens next.
	StateDisconnected

	// StateReconnecting means a retry is scheduled after the cooldown.
	StateReconnecting

	// StateTerminated is absorbing: entered on Disconnect or retry
	// exhaustion, never left. A new session must be created to resume.
	StateTerminated
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateReconnecting:
		return "reconnecting"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
