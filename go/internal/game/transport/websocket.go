package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/geoduel/go/internal/game/client"
)

var ErrSendBufferFull = errors.New("send buffer full")

// WebSocketConfig holds configuration for client websocket connections.
type WebSocketConfig struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	MaxMessageSize   int64
	SendBufferSize   int
}

// DefaultWebSocketConfig returns default client websocket configuration.
func DefaultWebSocketConfig(url string) WebSocketConfig {
	return WebSocketConfig{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		MaxMessageSize:   64 * 1024,
		SendBufferSize:   64,
	}
}

// WebSocketDialer opens client.Transport connections over gorilla/websocket.
type WebSocketDialer struct {
	config WebSocketConfig
	dialer *websocket.Dialer
}

// NewWebSocketDialer creates a dialer for the given configuration.
func NewWebSocketDialer(config WebSocketConfig) *WebSocketDialer {
	return &WebSocketDialer{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
		},
	}
}

// Dial starts connecting in the background and returns immediately.
func (d *WebSocketDialer) Dial(events client.TransportEvents) client.Transport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &wsTransport{
		config: d.config,
		events: events,
		send:   make(chan []byte, d.config.SendBufferSize),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go t.run(ctx, d.dialer)
	return t
}

// wsTransport is one websocket connection.
type wsTransport struct {
	config WebSocketConfig
	events client.TransportEvents
	send   chan []byte
	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn
	// closing is set by a deliberate Close
	closing bool
}

func (t *wsTransport) Send(frame []byte) error {
	select {
	case <-t.done:
		return net.ErrClosed
	default:
	}
	select {
	case t.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		return nil
	}
	t.closing = true
	conn := t.conn
	t.mu.Unlock()

	t.cancel()
	if conn == nil {
		return nil
	}
	deadline := time.Now().Add(t.config.WriteTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing")
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		log.Debug().Err(err).Msg("failed to send close frame")
	}
	return conn.Close()
}

func (t *wsTransport) isClosing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closing
}

func (t *wsTransport) run(ctx context.Context, dialer *websocket.Dialer) {
	defer close(t.done)

	conn, _, err := dialer.DialContext(ctx, t.config.URL, t.config.Header)
	if err != nil {
		if !t.isClosing() {
			t.events.OnError(fmt.Errorf("dial %s: %w", t.config.URL, err))
		}
		return
	}

	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		conn.Close()
		return
	}
	t.conn = conn
	t.mu.Unlock()

	if t.config.MaxMessageSize > 0 {
		conn.SetReadLimit(t.config.MaxMessageSize)
	}
	t.events.OnOpen()

	go t.writePump(ctx, conn)
	t.readPump(conn)
}

// readPump delivers frames until the connection fails.
func (t *wsTransport) readPump(conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if t.isClosing() {
				return
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				t.events.OnClose(closeErr.Code, closeErr.Text)
			} else {
				t.events.OnClose(websocket.CloseAbnormalClosure, err.Error())
			}
			return
		}
		t.events.OnMessage(frame)
	}
}

// writePump serializes writes to the connection.
func (t *wsTransport) writePump(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		case frame := <-t.send:
			conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				if !t.isClosing() {
					t.events.OnError(fmt.Errorf("write: %w", err))
				}
				return
			}
		}
	}
}
