package authority

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Service is the session authority: it accepts player websockets, runs the
// rounds of every session, and publishes game events.
type Service struct {
	hub       *Hub
	games     *Games
	wsHandler *WebSocketHandler
	publisher EventPublisher
}

// NewService wires the hub and game registry. A nil publisher disables
// event publishing.
func NewService(config Config, clock clockwork.Clock, locations LocationProvider, publisher EventPublisher) (*Service, error) {
	if err := config.Game.Validate(); err != nil {
		return nil, fmt.Errorf("invalid game settings: %w", err)
	}
	if locations == nil {
		return nil, ErrNoLocations
	}
	if publisher == nil {
		publisher = NoopPublisher{}
	}

	games := NewGames(config.Game, clock, locations, publisher, config.EventBufferSize)
	hub := NewHub(config.Hub, clock, games)
	games.out = hub

	return &Service{
		hub:       hub,
		games:     games,
		wsHandler: NewWebSocketHandler(hub),
		publisher: publisher,
	}, nil
}

// Start runs the service until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting session authority")

	go s.hub.Start(ctx)
	go s.games.Run(ctx)

	<-ctx.Done()

	log.Info().Msg("session authority shutting down")
	return s.Stop()
}

// Stop halts every game and closes the publisher.
func (s *Service) Stop() error {
	s.games.Stop()
	if err := s.publisher.Close(); err != nil {
		return fmt.Errorf("close publisher: %w", err)
	}
	log.Info().Msg("session authority stopped")
	return nil
}

// RegisterRoutes registers the websocket HTTP routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("session authority routes registered")
}

// Stats returns connection statistics plus the number of running games.
func (s *Service) Stats() (Stats, int) {
	return s.hub.GetConnectionStats(), s.games.Count()
}
