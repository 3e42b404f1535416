package client

import (
	"fmt"
	"sync/atomic"

	"github.com/mcdev12/geoduel/go/internal/game/protocol"
)

// channelHandler receives channel events on the loop goroutine, tagged with
// the generation the channel was opened under.
type channelHandler interface {
	channelOpened(gen uint64)
	channelMessage(gen uint64, frame []byte)
	channelFailed(gen uint64, err error)
}

// SessionChannel owns one transport for the lifetime of a single connection
// attempt. Events from the transport are forwarded to the loop; after Close
// they are dropped at the source.
type SessionChannel struct {
	gen       uint64
	transport Transport
	post      func(func()) bool
	handler   channelHandler
	closed    atomic.Bool
}

func openSessionChannel(gen uint64, dialer Dialer, post func(func()) bool, handler channelHandler) *SessionChannel {
	ch := &SessionChannel{
		gen:     gen,
		post:    post,
		handler: handler,
	}
	ch.transport = dialer.Dial(ch)
	return ch
}

// Generation returns the token this channel was opened under.
func (c *SessionChannel) Generation() uint64 {
	return c.gen
}

// Send encodes and writes a message.
func (c *SessionChannel) Send(m protocol.Message) error {
	if c.closed.Load() || c.transport == nil {
		return ErrNotConnected
	}
	frame, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	if err := c.transport.Send(frame); err != nil {
		return fmt.Errorf("send %s: %w", m.MessageType(), err)
	}
	return nil
}

// Close tears the transport down. Events still in flight from it are
// discarded.
func (c *SessionChannel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.transport == nil {
		return nil
	}
	return c.transport.Close()
}

func (c *SessionChannel) OnOpen() {
	c.forward(func() { c.handler.channelOpened(c.gen) })
}

func (c *SessionChannel) OnMessage(frame []byte) {
	c.forward(func() { c.handler.channelMessage(c.gen, frame) })
}

func (c *SessionChannel) OnError(err error) {
	c.forward(func() { c.handler.channelFailed(c.gen, err) })
}

func (c *SessionChannel) OnClose(code int, reason string) {
	c.forward(func() {
		c.handler.channelFailed(c.gen, &ChannelClosedError{Code: code, Reason: reason})
	})
}

func (c *SessionChannel) forward(fn func()) {
	if c.closed.Load() {
		return
	}
	c.post(fn)
}
