package authority

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/geoduel/go/internal/game/protocol"
)

// Event is a game message handed to external services.
type Event struct {
	ID         uuid.UUID
	SessionID  uuid.UUID
	OccurredAt time.Time
	Message    protocol.Message
}

// EventPublisher makes game events available outside the authority.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, event Event) error {
	log.Debug().
		Str("session_id", event.SessionID.String()).
		Str("event_type", string(event.Message.MessageType())).
		Msg("event publishing disabled")
	return nil
}

func (NoopPublisher) Close() error { return nil }

// JetStreamPublisherConfig holds configuration for the JetStream publisher.
type JetStreamPublisherConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string // e.g., "game.events"
	MaxAge        time.Duration
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultJetStreamPublisherConfig returns default JetStream publisher configuration.
func DefaultJetStreamPublisherConfig() JetStreamPublisherConfig {
	return JetStreamPublisherConfig{
		URL:           nats.DefaultURL,
		StreamName:    "GAME_EVENTS",
		SubjectPrefix: "game.events",
		MaxAge:        24 * time.Hour,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// JetStreamPublisher publishes game events to a JetStream stream. Subjects
// are <prefix>.<session id>.<message type>.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamPublisherConfig
}

// NewJetStreamPublisher connects to NATS and ensures the event stream exists.
func NewJetStreamPublisher(ctx context.Context, config JetStreamPublisherConfig) (*JetStreamPublisher, error) {
	opts := []nats.Option{
		nats.Name("geoduel-authority"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        config.StreamName,
		Description: "Game session events",
		Subjects:    []string{config.SubjectPrefix + ".>"},
		MaxAge:      config.MaxAge,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", config.StreamName, err)
	}

	log.Info().
		Str("stream", config.StreamName).
		Str("subjects", config.SubjectPrefix+".>").
		Msg("JetStream publisher ready")

	return &JetStreamPublisher{nc: nc, js: js, config: config}, nil
}

// Publish sends the event with its id as the JetStream dedupe key.
func (p *JetStreamPublisher) Publish(ctx context.Context, event Event) error {
	data, err := marshalEvent(event)
	if err != nil {
		return err
	}
	subject := subjectFor(p.config.SubjectPrefix, event)
	if _, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.ID.String())); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains the NATS connection.
func (p *JetStreamPublisher) Close() error {
	return p.nc.Drain()
}

func subjectFor(prefix string, event Event) string {
	return fmt.Sprintf("%s.%s.%s", prefix, event.SessionID, event.Message.MessageType())
}

// eventEnvelope is the JSON body stored in the stream.
type eventEnvelope struct {
	EventID    string               `json:"eventId"`
	EventType  protocol.MessageType `json:"eventType"`
	SessionID  string               `json:"sessionId"`
	OccurredAt time.Time            `json:"occurredAt"`
	Payload    json.RawMessage      `json:"payload"`
}

func marshalEvent(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event.Message.MessageType(), err)
	}
	return json.Marshal(eventEnvelope{
		EventID:    event.ID.String(),
		EventType:  event.Message.MessageType(),
		SessionID:  event.SessionID.String(),
		OccurredAt: event.OccurredAt,
		Payload:    payload,
	})
}
