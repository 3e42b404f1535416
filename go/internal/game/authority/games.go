package authority

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/geoduel/go/internal/game/geo"
)

// Games owns every running session and forwards their events to the
// publisher from a single worker.
type Games struct {
	settings  GameSettings
	clock     clockwork.Clock
	locations LocationProvider
	publisher EventPublisher
	out       Broadcaster

	events chan Event

	mu    sync.Mutex
	games map[uuid.UUID]*Game
}

// NewGames creates an empty registry. out must be set before the first Join.
func NewGames(settings GameSettings, clock clockwork.Clock, locations LocationProvider, publisher EventPublisher, eventBuffer int) *Games {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &Games{
		settings:  settings,
		clock:     clock,
		locations: locations,
		publisher: publisher,
		events:    make(chan Event, eventBuffer),
		games:     make(map[uuid.UUID]*Game),
	}
}

// Get returns the running game for a session.
func (gs *Games) Get(sessionID uuid.UUID) (*Game, bool) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	g, ok := gs.games[sessionID]
	return g, ok
}

// Count returns the number of running games.
func (gs *Games) Count() int {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return len(gs.games)
}

// Join adds a player connection, creating the session's game on first use.
// The registry lock is held across the join so a concurrent retire cannot
// stop the game underneath it.
func (gs *Games) Join(sessionID uuid.UUID, playerID string, connID uuid.UUID) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	g, ok := gs.games[sessionID]
	if !ok {
		g = newGame(sessionID, gs.settings, gs.clock, gs.locations, gs.out, gs.enqueue)
		g.onIdle = func() { gs.retire(sessionID, g) }
		gs.games[sessionID] = g
		log.Info().Str("session_id", sessionID.String()).Msg("game created")
	}
	g.Join(playerID, connID)
}

// Leave removes a player connection and retires the game once it is idle.
func (gs *Games) Leave(sessionID uuid.UUID, playerID string) {
	g, ok := gs.Get(sessionID)
	if !ok {
		return
	}
	if g.Leave(playerID) {
		gs.retire(sessionID, g)
	}
}

// retire drops an idle game from the registry. Lock order is registry then game.
func (gs *Games) retire(sessionID uuid.UUID, g *Game) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.games[sessionID] != g || !g.StopIfIdle() {
		return
	}
	delete(gs.games, sessionID)
	log.Info().Str("session_id", sessionID.String()).Msg("game retired")
}

// Guess forwards a player's guess to the session's game.
func (gs *Games) Guess(sessionID uuid.UUID, playerID string, p geo.Point) error {
	g, ok := gs.Get(sessionID)
	if !ok {
		return ErrUnknownPlayer
	}
	return g.SubmitGuess(playerID, p)
}

// Run publishes queued events until ctx is cancelled.
func (gs *Games) Run(ctx context.Context) {
	log.Info().Msg("event publisher worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event publisher worker stopped")
			return
		case ev := <-gs.events:
			if err := gs.publisher.Publish(ctx, ev); err != nil {
				log.Error().
					Err(err).
					Str("session_id", ev.SessionID.String()).
					Str("event_type", string(ev.Message.MessageType())).
					Msg("failed to publish event")
			}
		}
	}
}

// Stop halts every game.
func (gs *Games) Stop() {
	gs.mu.Lock()
	games := make([]*Game, 0, len(gs.games))
	for id, g := range gs.games {
		games = append(games, g)
		delete(gs.games, id)
	}
	gs.mu.Unlock()

	for _, g := range games {
		g.Stop()
	}
}

func (gs *Games) enqueue(ev Event) {
	select {
	case gs.events <- ev:
	default:
		log.Warn().
			Str("session_id", ev.SessionID.String()).
			Str("event_type", string(ev.Message.MessageType())).
			Msg("event channel full, dropping event")
	}
}
