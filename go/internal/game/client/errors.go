package client

import "errors"

var (
	// ErrSessionClosed is returned by calls made after the session loop exited.
	ErrSessionClosed = errors.New("session closed")
	// ErrNotConnected is returned when sending without an open channel.
	ErrNotConnected = errors.New("not connected")
	// ErrLivenessTimeout marks a channel declared dead by the heartbeat monitor.
	ErrLivenessTimeout = errors.New("liveness timeout")
	// ErrStaleChannel marks a channel abandoned after a visibility or
	// network change suggested it no longer works.
	ErrStaleChannel = errors.New("stale channel")
	// ErrReconnectionExhausted is reported once attempts exceed the policy budget.
	ErrReconnectionExhausted = errors.New("reconnection attempts exhausted")
)

// ChannelClosedError is a non-deliberate close reported by the transport.
type ChannelClosedError struct {
	Code   int
	Reason string
}

func (e *ChannelClosedError) Error() string {
	if e.Reason == "" {
		return "channel closed"
	}
	return "channel closed: " + e.Reason
}
