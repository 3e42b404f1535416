package client

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/geoduel/go/internal/game/protocol"
	"github.com/mcdev12/geoduel/go/internal/game/scoring"
)

// Config holds everything a Session needs besides its dialer.
type Config struct {
	Machine         MachineConfig `yaml:"machine"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	InboxSize       int           `yaml:"inbox_size"`

	Clock  clockwork.Clock `yaml:"-"`
	Logger *zerolog.Logger `yaml:"-"`
}

// DefaultConfig returns production defaults with a real clock.
func DefaultConfig() Config {
	return Config{
		Machine:         DefaultMachineConfig(),
		RefreshInterval: DefaultRefreshInterval,
		InboxSize:       256,
	}
}

// Session keeps one client synchronized with a game session. All state lives
// on a single loop goroutine started by Run; the exported methods are safe to
// call from any goroutine.
type Session struct {
	cfg     Config
	clock   clockwork.Clock
	logger  zerolog.Logger
	loop    *loop
	store   *Store
	machine *ConnectionStateMachine
	timer   *RoundTimer

	roundIndex int
	scores     []scoring.RoundScore
	standings  []scoring.Standing
	winner     string
	gameOver   bool
}

// NewSession builds a session that will dial through dialer once Run starts.
func NewSession(dialer Dialer, cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = DefaultConfig().InboxSize
	}
	logger := log.With().Str("component", "session").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	s := &Session{
		cfg:    cfg,
		clock:  cfg.Clock,
		logger: logger,
		loop:   newLoop(cfg.InboxSize),
	}
	s.machine = newConnectionStateMachine(cfg.Clock, dialer, cfg.Machine, s.loop.post, logger, s.publish, s.handleMessage)
	s.timer = NewRoundTimer(cfg.Clock, cfg.RefreshInterval, s.loop.post, func(float64) { s.publish() })
	s.store = NewStore(s.snapshot())
	return s
}

// Run connects and processes events until ctx is cancelled or Close is
// called. Every timer is cancelled before Run returns.
func (s *Session) Run(ctx context.Context) error {
	if !s.loop.post(s.machine.Start) {
		return ErrSessionClosed
	}
	s.loop.run(ctx, s.teardown)
	return nil
}

// Close deliberately ends the session without attempting to reconnect.
func (s *Session) Close() {
	s.loop.post(s.loop.stop)
}

// Done is closed once the session loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.loop.done
}

// Subscribe registers a snapshot callback; see Store.Subscribe.
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return s.store.Subscribe(fn)
}

// Snapshot returns the latest published snapshot.
func (s *Session) Snapshot() Snapshot {
	return s.store.Current()
}

// SendGuess submits a guess for the open round.
func (s *Session) SendGuess(ctx context.Context, lat, lon float64) error {
	var sendErr error
	err := s.loop.call(ctx, func() {
		sendErr = s.machine.Send(protocol.Guess{Lat: lat, Lon: lon})
	})
	if err != nil {
		return err
	}
	return sendErr
}

// NotifyVisible forwards a foreground/resume signal to the state machine.
func (s *Session) NotifyVisible() {
	s.loop.post(s.machine.NotifyVisible)
}

// NotifyOnline forwards a network availability change to the state machine.
func (s *Session) NotifyOnline(online bool) {
	s.loop.post(func() { s.machine.NotifyOnline(online) })
}

// Reconnect restarts reconnection after the session reported StateError.
func (s *Session) Reconnect() {
	s.loop.post(s.machine.Reconnect)
}

func (s *Session) teardown() {
	s.timer.Stop()
	s.machine.Close()
}

func (s *Session) handleMessage(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.RoundStart:
		s.roundIndex = m.RoundIndex
		s.scores = nil
		s.logger.Debug().Int("round", m.RoundIndex).Float64("time_left", m.TimeLeft).Msg("round started")
		s.timer.Reset(m.TimeLeft)

	case protocol.RoundUpdate:
		s.timer.Reset(m.TimeLeft)

	case protocol.RoundResult:
		s.scores = m.Scores
		if m.Standings != nil {
			s.standings = m.Standings
		}
		s.logger.Debug().Int("round", m.RoundIndex).Int("scores", len(m.Scores)).Msg("round closed")
		s.timer.Finish()

	case protocol.GameOver:
		s.winner = m.Winner
		s.gameOver = true
		if m.Standings != nil {
			s.standings = m.Standings
		}
		s.logger.Info().Str("winner", m.Winner).Msg("game over")
		s.timer.Finish()

	default:
		s.logger.Debug().Str("type", string(msg.MessageType())).Msg("ignoring message")
	}
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		ConnectionStatus: s.machine.Status(),
		Reconnection:     s.machine.Info(),
		RoundTimerState:  s.timer.State(),
		RoundIndex:       s.roundIndex,
		Scores:           s.scores,
		Standings:        s.standings,
		Winner:           s.winner,
		GameOver:         s.gameOver,
	}
}

func (s *Session) publish() {
	if s.store == nil {
		return
	}
	s.store.Publish(s.snapshot())
}
