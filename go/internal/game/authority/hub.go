package authority

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/geoduel/go/internal/game/geo"
	"github.com/mcdev12/geoduel/go/internal/game/protocol"
)

// SessionHandler receives player lifecycle and guesses from the hub.
type SessionHandler interface {
	Join(sessionID uuid.UUID, playerID string, connID uuid.UUID)
	Leave(sessionID uuid.UUID, playerID string)
	Guess(sessionID uuid.UUID, playerID string, p geo.Point) error
}

// Hub manages player websocket connections grouped by session.
type Hub struct {
	sessions map[uuid.UUID]map[*Conn]bool
	mu       sync.RWMutex

	upgrader websocket.Upgrader
	config   HubConfig
	clock    clockwork.Clock
	handler  SessionHandler

	pingFrame   []byte
	broadcastCh chan outbound
}

// Conn is one player's websocket connection.
type Conn struct {
	ID        uuid.UUID
	PlayerID  string
	SessionID uuid.UUID

	ws   *websocket.Conn
	send chan []byte
	hub  *Hub

	ConnectedAt time.Time
}

type outbound struct {
	SessionID uuid.UUID
	ConnID    uuid.UUID // uuid.Nil targets every connection of the session
	Message   protocol.Message
}

// Stats summarizes the hub's connections.
type Stats struct {
	TotalConnections   int            `json:"total_connections"`
	ActiveSessions     int            `json:"active_sessions"`
	SessionConnections map[string]int `json:"session_connections"`
}

// NewHub creates a hub that reports player activity to handler.
func NewHub(config HubConfig, clock clockwork.Clock, handler SessionHandler) *Hub {
	ping, err := protocol.Encode(protocol.Ping{})
	if err != nil {
		panic(fmt.Sprintf("encode ping: %v", err))
	}
	return &Hub{
		sessions: make(map[uuid.UUID]map[*Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		clock:       clock,
		handler:     handler,
		pingFrame:   ping,
		broadcastCh: make(chan outbound, 1000),
	}
}

// Start processes outbound messages until ctx is cancelled, then closes
// every connection.
func (h *Hub) Start(ctx context.Context) {
	log.Info().Msg("hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("hub shutting down")
			h.closeAll()
			return
		case msg := <-h.broadcastCh:
			h.deliver(msg)
		}
	}
}

// Broadcast queues a message for every connection of a session.
func (h *Hub) Broadcast(sessionID uuid.UUID, msg protocol.Message) {
	h.enqueue(outbound{SessionID: sessionID, Message: msg})
}

// SendTo queues a message for a single connection.
func (h *Hub) SendTo(sessionID, connID uuid.UUID, msg protocol.Message) {
	h.enqueue(outbound{SessionID: sessionID, ConnID: connID, Message: msg})
}

func (h *Hub) enqueue(msg outbound) {
	select {
	case h.broadcastCh <- msg:
	default:
		log.Warn().
			Str("session_id", msg.SessionID.String()).
			Str("event_type", string(msg.Message.MessageType())).
			Msg("broadcast channel full, dropping message")
	}
}

// UpgradeConnection upgrades an HTTP request and attaches the player to the session.
func (h *Hub) UpgradeConnection(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, playerID string) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	conn := &Conn{
		ID:          uuid.New(),
		PlayerID:    playerID,
		SessionID:   sessionID,
		ws:          ws,
		send:        make(chan []byte, h.config.SendBufferSize),
		hub:         h,
		ConnectedAt: h.clock.Now(),
	}

	// Join before the pumps start so a dropped socket's Leave cannot overtake it.
	h.register(conn)
	h.handler.Join(sessionID, playerID, conn.ID)
	go conn.writePump()
	go conn.readPump()

	log.Info().
		Str("connection_id", conn.ID.String()).
		Str("player_id", playerID).
		Str("session_id", sessionID.String()).
		Msg("websocket connection established")
	return nil
}

func (h *Hub) register(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[conn.SessionID] == nil {
		h.sessions[conn.SessionID] = make(map[*Conn]bool)
	}
	h.sessions[conn.SessionID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID.String()).
		Str("session_id", conn.SessionID.String()).
		Int("session_connections", len(h.sessions[conn.SessionID])).
		Msg("connection registered")
}

// unregister removes a connection once and reports the departure.
func (h *Hub) unregister(conn *Conn) {
	h.mu.Lock()
	conns, ok := h.sessions[conn.SessionID]
	if !ok || !conns[conn] {
		h.mu.Unlock()
		return
	}
	delete(conns, conn)
	close(conn.send)
	if len(conns) == 0 {
		delete(h.sessions, conn.SessionID)
	}
	h.mu.Unlock()

	h.handler.Leave(conn.SessionID, conn.PlayerID)

	log.Info().
		Str("connection_id", conn.ID.String()).
		Str("player_id", conn.PlayerID).
		Str("session_id", conn.SessionID.String()).
		Msg("connection unregistered")
}

// deliver sends under the read lock so unregister cannot close a send
// channel mid-delivery.
func (h *Hub) deliver(msg outbound) {
	frame, err := protocol.Encode(msg.Message)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode message for broadcast")
		return
	}

	var slow []*Conn
	delivered := 0
	h.mu.RLock()
	for conn := range h.sessions[msg.SessionID] {
		if msg.ConnID != uuid.Nil && conn.ID != msg.ConnID {
			continue
		}
		select {
		case conn.send <- frame:
			delivered++
		default:
			slow = append(slow, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID.String()).
			Str("player_id", conn.PlayerID).
			Msg("connection send buffer full, closing connection")
		h.unregister(conn)
		conn.ws.Close()
	}

	log.Debug().
		Str("event_type", string(msg.Message.MessageType())).
		Str("session_id", msg.SessionID.String()).
		Int("connections", delivered).
		Msg("message delivered")
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	var conns []*Conn
	for _, set := range h.sessions {
		for conn := range set {
			conns = append(conns, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		h.unregister(conn)
	}
}

// GetConnectionStats returns statistics about active connections.
func (h *Hub) GetConnectionStats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := Stats{
		ActiveSessions:     len(h.sessions),
		SessionConnections: make(map[string]int, len(h.sessions)),
	}
	for id, conns := range h.sessions {
		stats.TotalConnections += len(conns)
		stats.SessionConnections[id.String()] = len(conns)
	}
	return stats
}

// writePump sends queued frames and pings. Each tick carries an application
// ping for the session channel and a control ping whose pong keeps the read
// deadline alive for clients that do not answer the application ping.
func (c *Conn) writePump() {
	ticker := c.hub.clock.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		c.hub.unregister(c)
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID.String()).Msg("failed to write message to websocket")
				return
			}

		case <-ticker.Chan():
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, c.hub.pingFrame); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID.String()).Msg("failed to send ping")
				return
			}
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.hub.config.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID.String()).Msg("failed to send control ping")
				return
			}
		}
	}
}

// readPump handles inbound frames. Any frame or control pong extends the
// read deadline.
func (c *Conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.hub.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	})

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID.String()).Msg("unexpected websocket close error")
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		c.handleClientMessage(frame)
	}
}

func (c *Conn) handleClientMessage(frame []byte) {
	msg, err := protocol.Decode(frame)
	if err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", c.ID.String()).
			Str("player_id", c.PlayerID).
			Msg("dropping client frame")
		return
	}

	switch m := msg.(type) {
	case protocol.Pong:
	case protocol.Guess:
		err := c.hub.handler.Guess(c.SessionID, c.PlayerID, geo.Point{Lat: m.Lat, Lon: m.Lon})
		if err != nil {
			lvl := log.Warn()
			if errors.Is(err, ErrRoundClosed) || errors.Is(err, ErrAlreadyGuessed) {
				lvl = log.Debug()
			}
			lvl.Err(err).
				Str("connection_id", c.ID.String()).
				Str("player_id", c.PlayerID).
				Msg("guess rejected")
		}
	default:
		log.Debug().
			Str("connection_id", c.ID.String()).
			Str("event_type", string(msg.MessageType())).
			Msg("ignoring unexpected client message")
	}
}
