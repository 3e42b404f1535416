package client

// ConnectionState is the externally observable state of a session's connection.
type ConnectionState int

const (
	// StateConnecting is the initial state before the first successful open.
	StateConnecting ConnectionState = iota
	// StateConnected means the channel is open and live.
	StateConnected
	// StateReconnecting means the channel failed and a retry is pending or in flight.
	StateReconnecting
	// StateDisconnected is shown while reconnecting with the network reported
	// offline, and after a deliberate close.
	StateDisconnected
	// StateReconnected is a transient success indicator shown after recovery.
	StateReconnected
	// StateError is terminal: reconnection attempts were exhausted.
	StateError
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	case StateReconnected:
		return "reconnected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON snapshots.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsOpen reports whether messages can be sent in this state.
func (s ConnectionState) IsOpen() bool {
	return s == StateConnected || s == StateReconnected
}

// ReconnectionInfo describes reconnection progress for display.
// Attempt never exceeds MaxAttempts while IsReconnecting is true and drops
// back to 0 on every successful open.
type ReconnectionInfo struct {
	IsReconnecting   bool    `json:"isReconnecting"`
	Attempt          int     `json:"attempt"`
	MaxAttempts      int     `json:"maxAttempts"`
	CountdownSeconds float64 `json:"countdownSeconds"`
}
