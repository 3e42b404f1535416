package authority

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/geoduel/go/internal/game/geo"
	"github.com/mcdev12/geoduel/go/internal/game/protocol"
	"github.com/mcdev12/geoduel/go/internal/game/scoring"
)

var (
	ErrRoundClosed    = errors.New("no round is open")
	ErrAlreadyGuessed = errors.New("player already guessed this round")
	ErrUnknownPlayer  = errors.New("player has not joined the session")
)

// Broadcaster delivers messages to the connections of a session.
type Broadcaster interface {
	Broadcast(sessionID uuid.UUID, msg protocol.Message)
	SendTo(sessionID, connID uuid.UUID, msg protocol.Message)
}

type phase int

const (
	phaseWaiting phase = iota
	phaseStarting
	phaseRound
	phaseIntermission
	phaseFinished
)

func (p phase) String() string {
	switch p {
	case phaseWaiting:
		return "waiting"
	case phaseStarting:
		return "starting"
	case phaseRound:
		return "round"
	case phaseIntermission:
		return "intermission"
	case phaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

type submittedGuess struct {
	playerID string
	point    geo.Point
}

type pendingTimer struct {
	timer  clockwork.Timer
	cancel chan struct{}
}

// Game runs the rounds of one session. All state is guarded by mu and every
// timer callback re-checks its generation under the lock before acting.
type Game struct {
	ID uuid.UUID

	settings  GameSettings
	clock     clockwork.Clock
	locations LocationProvider
	out       Broadcaster
	emit      func(Event)
	// onIdle runs on its own goroutine when the game finishes with no
	// connections left.
	onIdle func()

	mu        sync.Mutex
	phase     phase
	round     int
	answer    Location
	deadline  time.Time
	guesses   []submittedGuess
	guessed   map[string]bool
	connected map[string]int
	tally     scoring.Tally

	pending  *pendingTimer
	timerGen uint64
	updates  chan struct{}
	done     chan struct{}
	stopped  bool
}

func newGame(id uuid.UUID, settings GameSettings, clock clockwork.Clock, locations LocationProvider, out Broadcaster, emit func(Event)) *Game {
	return &Game{
		ID:        id,
		settings:  settings,
		clock:     clock,
		locations: locations,
		out:       out,
		emit:      emit,
		guessed:   make(map[string]bool),
		connected: make(map[string]int),
		tally:     make(scoring.Tally),
		done:      make(chan struct{}),
	}
}

// Join registers a player connection. Connections joining mid-round receive
// the authoritative remaining time, and after the game ends the final result.
func (g *Game) Join(playerID string, connID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}

	g.connected[playerID]++
	if g.phase != phaseFinished {
		if _, ok := g.tally[playerID]; !ok {
			g.tally[playerID] = 0
		}
	}

	log.Info().
		Str("session_id", g.ID.String()).
		Str("player_id", playerID).
		Str("phase", g.phase.String()).
		Int("connected_players", len(g.connected)).
		Msg("player joined")

	switch g.phase {
	case phaseWaiting:
		if len(g.connected) >= g.settings.MinPlayers {
			g.phase = phaseStarting
			g.scheduleLocked(g.settings.Intermission, g.startRoundLocked)
		}
	case phaseRound:
		g.out.SendTo(g.ID, connID, protocol.RoundStart{TimeLeft: g.timeLeftLocked(), RoundIndex: g.round})
	case phaseFinished:
		g.out.SendTo(g.ID, connID, g.gameOverLocked())
	}
}

// Leave unregisters a player connection. It reports whether the game is
// idle: no connections left and no round underway.
func (g *Game) Leave(playerID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n := g.connected[playerID]; n <= 1 {
		delete(g.connected, playerID)
	} else {
		g.connected[playerID] = n - 1
	}

	switch {
	case g.phase == phaseRound:
		g.maybeCloseEarlyLocked()
	case g.phase == phaseStarting && len(g.connected) == 0:
		g.cancelTimerLocked()
		g.phase = phaseWaiting
	}
	return g.idleLocked()
}

// StopIfIdle stops the game if it is still idle and reports whether it did.
func (g *Game) StopIfIdle() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return true
	}
	if !g.idleLocked() {
		return false
	}
	g.stopLocked()
	return true
}

func (g *Game) idleLocked() bool {
	if len(g.connected) > 0 {
		return false
	}
	return g.phase == phaseWaiting || g.phase == phaseFinished
}

// SubmitGuess records a player's answer for the open round.
func (g *Game) SubmitGuess(playerID string, p geo.Point) error {
	if err := p.Validate(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != phaseRound {
		return ErrRoundClosed
	}
	if _, ok := g.tally[playerID]; !ok {
		return ErrUnknownPlayer
	}
	if g.guessed[playerID] {
		return ErrAlreadyGuessed
	}
	g.guessed[playerID] = true
	g.guesses = append(g.guesses, submittedGuess{playerID: playerID, point: p})

	log.Debug().
		Str("session_id", g.ID.String()).
		Str("player_id", playerID).
		Int("round", g.round).
		Msg("guess recorded")

	g.maybeCloseEarlyLocked()
	return nil
}

// Round returns the index of the current or next round.
func (g *Game) Round() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.round
}

// Finished reports whether the final round has been scored.
func (g *Game) Finished() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase == phaseFinished
}

// Stop cancels every timer. No callback runs after Stop returns.
func (g *Game) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}
	g.stopLocked()
}

func (g *Game) stopLocked() {
	g.stopped = true
	g.cancelTimerLocked()
	g.stopUpdatesLocked()
	close(g.done)
}

func (g *Game) startRoundLocked() {
	loc, err := g.locations.Location(context.Background(), g.ID, g.round)
	if err != nil {
		retry := max(g.settings.Intermission, time.Second)
		log.Error().
			Err(err).
			Str("session_id", g.ID.String()).
			Int("round", g.round).
			Dur("retry_in", retry).
			Msg("failed to choose round location")
		g.scheduleLocked(retry, g.startRoundLocked)
		return
	}

	g.answer = loc
	g.phase = phaseRound
	g.guesses = nil
	g.guessed = make(map[string]bool)
	g.deadline = g.clock.Now().Add(g.settings.RoundDuration)

	g.scheduleLocked(g.settings.RoundDuration, func() { g.closeRoundLocked("deadline") })
	g.startUpdatesLocked()

	log.Info().
		Str("session_id", g.ID.String()).
		Int("round", g.round).
		Time("deadline", g.deadline).
		Msg("round started")

	g.emitLocked(protocol.RoundStart{TimeLeft: g.settings.RoundDuration.Seconds(), RoundIndex: g.round}, true)
}

func (g *Game) maybeCloseEarlyLocked() {
	if len(g.guesses) == 0 {
		return
	}
	for id := range g.connected {
		if !g.guessed[id] {
			return
		}
	}
	g.closeRoundLocked("all players guessed")
}

func (g *Game) closeRoundLocked(reason string) {
	g.cancelTimerLocked()
	g.stopUpdatesLocked()

	reveals := make([]protocol.GuessReveal, len(g.guesses))
	scored := make([]scoring.Guess, len(g.guesses))
	for i, sg := range g.guesses {
		d := geo.DistanceKm(sg.point, g.answer.Point)
		reveals[i] = protocol.GuessReveal{PlayerID: sg.playerID, Lat: sg.point.Lat, Lon: sg.point.Lon, DistanceKm: d}
		scored[i] = scoring.Guess{PlayerID: sg.playerID, DistanceKm: d}
	}

	scores, err := scoring.ScoreRound(scored, len(g.tally))
	if err != nil {
		log.Error().Err(err).Str("session_id", g.ID.String()).Int("round", g.round).Msg("failed to score round")
		scores = []scoring.RoundScore{}
	}
	g.tally.Add(scores)

	log.Info().
		Str("session_id", g.ID.String()).
		Int("round", g.round).
		Int("guesses", len(g.guesses)).
		Str("reason", reason).
		Msg("round closed")

	answer := g.answer.Point
	g.emitLocked(protocol.RoundResult{
		RoundIndex: g.round,
		Answer:     &answer,
		Guesses:    reveals,
		Scores:     scores,
		Standings:  g.tally.Standings(),
	}, true)

	g.round++
	if g.round >= g.settings.Rounds {
		g.phase = phaseFinished
		over := g.gameOverLocked()
		log.Info().Str("session_id", g.ID.String()).Str("winner", over.Winner).Msg("game over")
		g.emitLocked(over, true)
		if len(g.connected) == 0 && g.onIdle != nil {
			go g.onIdle()
		}
		return
	}
	g.phase = phaseIntermission
	g.scheduleLocked(g.settings.Intermission, g.startRoundLocked)
}

func (g *Game) gameOverLocked() protocol.GameOver {
	return protocol.GameOver{Winner: g.tally.Winner(), Standings: g.tally.Standings()}
}

func (g *Game) timeLeftLocked() float64 {
	left := g.deadline.Sub(g.clock.Now())
	if left < 0 {
		return 0
	}
	return left.Seconds()
}

func (g *Game) emitLocked(msg protocol.Message, publish bool) {
	g.out.Broadcast(g.ID, msg)
	if publish && g.emit != nil {
		g.emit(Event{ID: uuid.New(), SessionID: g.ID, OccurredAt: g.clock.Now(), Message: msg})
	}
}

// scheduleLocked replaces the pending phase timer with one that runs fn
// under the lock after d.
func (g *Game) scheduleLocked(d time.Duration, fn func()) {
	g.cancelTimerLocked()
	g.timerGen++
	gen := g.timerGen

	p := &pendingTimer{timer: g.clock.NewTimer(d), cancel: make(chan struct{})}
	g.pending = p

	go func() {
		select {
		case <-p.timer.Chan():
			g.mu.Lock()
			defer g.mu.Unlock()
			if g.stopped || gen != g.timerGen {
				return
			}
			g.pending = nil
			fn()
		case <-p.cancel:
		case <-g.done:
		}
	}()

	log.Debug().
		Str("session_id", g.ID.String()).
		Dur("duration", d).
		Msg("scheduled phase timer")
}

func (g *Game) cancelTimerLocked() {
	if g.pending == nil {
		return
	}
	stopAndDrainTimer(g.pending.timer)
	close(g.pending.cancel)
	g.pending = nil
	g.timerGen++
}

func (g *Game) startUpdatesLocked() {
	g.stopUpdatesLocked()
	stop := make(chan struct{})
	g.updates = stop
	ticker := g.clock.NewTicker(g.settings.UpdateInterval)
	round := g.round

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				g.mu.Lock()
				if !g.stopped && g.phase == phaseRound && g.round == round {
					if left := g.timeLeftLocked(); left > 0 {
						g.emitLocked(protocol.RoundUpdate{TimeLeft: left}, false)
					}
				}
				g.mu.Unlock()
			case <-stop:
				return
			case <-g.done:
				return
			}
		}
	}()
}

func (g *Game) stopUpdatesLocked() {
	if g.updates != nil {
		close(g.updates)
		g.updates = nil
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
