package client

// Transport is one volatile bidirectional connection to the session authority.
// Implementations live outside this package; see the transport package for
// the websocket one.
type Transport interface {
	Send(frame []byte) error
	Close() error
}

// TransportEvents receives a transport's lifecycle. Implementations of
// Transport may call these from any goroutine.
type TransportEvents interface {
	OnOpen()
	OnMessage(frame []byte)
	OnError(err error)
	OnClose(code int, reason string)
}

// Dialer starts a new transport. Dial must not block on the network: the
// outcome is reported later through events.
type Dialer interface {
	Dial(events TransportEvents) Transport
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(events TransportEvents) Transport

func (f DialerFunc) Dial(events TransportEvents) Transport { return f(events) }
