package client

import (
	"errors"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/mcdev12/geoduel/go/internal/game/protocol"
)

// MachineConfig holds the connection state machine's tuning.
type MachineConfig struct {
	Policy    ReconnectPolicy `yaml:"policy"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	// ReconnectedDisplay is how long StateReconnected is shown before
	// settling to StateConnected.
	ReconnectedDisplay time.Duration `yaml:"reconnected_display"`
	// CountdownInterval is the refresh cadence of CountdownSeconds.
	CountdownInterval time.Duration `yaml:"countdown_interval"`
}

// DefaultMachineConfig returns production defaults.
func DefaultMachineConfig() MachineConfig {
	return MachineConfig{
		Policy:             DefaultReconnectPolicy(),
		Heartbeat:          DefaultHeartbeatConfig(),
		ReconnectedDisplay: 2 * time.Second,
		CountdownInterval:  250 * time.Millisecond,
	}
}

// ConnectionStateMachine owns the session's channel and turns channel,
// heartbeat, visibility and network events into a ConnectionState.
//
// Every method must run on the session loop. Deferred work (retries,
// countdown refresh, the reconnected display window, heartbeat checks)
// captures the generation current when it was scheduled and is discarded if
// the generation moved on by the time it runs.
type ConnectionStateMachine struct {
	clock     clockwork.Clock
	dialer    Dialer
	cfg       MachineConfig
	post      func(func()) bool
	logger    zerolog.Logger
	onChange  func()
	onMessage func(protocol.Message)

	state     ConnectionState
	attempt   int
	countdown float64
	offline   bool
	closed    bool
	lastErr   error

	gen       uint64
	channel   *SessionChannel
	heartbeat *HeartbeatMonitor

	retryAt        time.Time
	retryTimer     clockwork.Timer
	countdownTimer clockwork.Timer
	settleTimer    clockwork.Timer
	// held is set when a retry came due while offline
	held bool
}

func newConnectionStateMachine(
	clock clockwork.Clock,
	dialer Dialer,
	cfg MachineConfig,
	post func(func()) bool,
	logger zerolog.Logger,
	onChange func(),
	onMessage func(protocol.Message),
) *ConnectionStateMachine {
	if cfg.CountdownInterval <= 0 {
		cfg.CountdownInterval = DefaultMachineConfig().CountdownInterval
	}
	return &ConnectionStateMachine{
		clock:     clock,
		dialer:    dialer,
		cfg:       cfg,
		post:      post,
		logger:    logger,
		onChange:  onChange,
		onMessage: onMessage,
		state:     StateConnecting,
	}
}

// Status is the state shown to the presentation layer. A reconnecting
// session renders as disconnected while the network is reported offline.
func (m *ConnectionStateMachine) Status() ConnectionState {
	if m.state == StateReconnecting && m.offline {
		return StateDisconnected
	}
	return m.state
}

// Info reports reconnection progress.
func (m *ConnectionStateMachine) Info() ReconnectionInfo {
	return ReconnectionInfo{
		IsReconnecting:   m.state == StateReconnecting,
		Attempt:          m.attempt,
		MaxAttempts:      m.cfg.Policy.MaxAttempts,
		CountdownSeconds: m.countdown,
	}
}

// Err returns the cause of the last failure, if any.
func (m *ConnectionStateMachine) Err() error {
	return m.lastErr
}

// Generation returns the current generation token.
func (m *ConnectionStateMachine) Generation() uint64 {
	return m.gen
}

// Start opens the first channel.
func (m *ConnectionStateMachine) Start() {
	m.logger.Info().Msg("connecting to session")
	m.connect()
	m.changed()
}

// Send writes a message on the open channel.
func (m *ConnectionStateMachine) Send(msg protocol.Message) error {
	if m.closed || !m.state.IsOpen() || m.channel == nil {
		return ErrNotConnected
	}
	return m.channel.Send(msg)
}

// Close is the deliberate, caller-initiated teardown. It never enters
// StateReconnecting.
func (m *ConnectionStateMachine) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.supersede()
	m.state = StateDisconnected
	m.attempt = 0
	m.countdown = 0
	m.logger.Info().Msg("session closed")
	m.changed()
}

// Reconnect restarts the retry budget and connects now. It is the way out of
// StateError. It does nothing while the first dial is pending.
func (m *ConnectionStateMachine) Reconnect() {
	if m.closed || m.state.IsOpen() || m.state == StateConnecting {
		return
	}
	m.attempt = 0
	m.state = StateReconnecting
	m.connect()
	m.changed()
}

// NotifyOnline reports a change of network availability.
func (m *ConnectionStateMachine) NotifyOnline(online bool) {
	wasOffline := m.offline
	m.offline = !online
	if m.closed {
		return
	}
	if !online || !wasOffline {
		m.changed()
		return
	}

	m.logger.Info().Str("state", m.state.String()).Msg("network back online")
	switch {
	case m.state.IsOpen():
		m.fail(ErrStaleChannel)
	case m.state == StateReconnecting && m.channel == nil:
		m.connect()
	case m.state == StateError && m.held:
		m.connect()
	}
	m.changed()
}

// NotifyVisible reports that the client was resumed or brought to the
// foreground, which is when a silently dead channel is most likely.
func (m *ConnectionStateMachine) NotifyVisible() {
	if m.closed {
		return
	}
	switch {
	case m.state.IsOpen() && m.heartbeat != nil && m.heartbeat.Overdue():
		m.logger.Info().Msg("channel overdue after resume")
		m.fail(ErrStaleChannel)
	case m.state == StateReconnecting && m.channel == nil && !m.offline:
		m.connect()
	default:
		return
	}
	m.changed()
}

func (m *ConnectionStateMachine) channelOpened(gen uint64) {
	if m.stale(gen) {
		return
	}
	recovered := m.state != StateConnecting
	m.attempt = 0
	m.countdown = 0
	m.lastErr = nil

	m.heartbeat = NewHeartbeatMonitor(m.clock, m.cfg.Heartbeat, m.post, func() {
		if m.stale(gen) {
			return
		}
		m.logger.Warn().Dur("timeout", m.cfg.Heartbeat.Timeout()).Msg("no liveness signal, abandoning channel")
		m.fail(ErrLivenessTimeout)
		m.changed()
	})
	m.heartbeat.Start()

	if recovered {
		m.state = StateReconnected
		m.settleTimer = m.clock.AfterFunc(m.cfg.ReconnectedDisplay, func() {
			m.post(func() {
				if m.stale(gen) || m.state != StateReconnected {
					return
				}
				m.state = StateConnected
				m.changed()
			})
		})
		m.logger.Info().Uint64("generation", gen).Msg("session reconnected")
	} else {
		m.state = StateConnected
		m.logger.Info().Uint64("generation", gen).Msg("session connected")
	}
	m.changed()
}

func (m *ConnectionStateMachine) channelMessage(gen uint64, frame []byte) {
	if m.stale(gen) {
		return
	}
	if m.heartbeat != nil {
		m.heartbeat.Observe()
	}

	msg, err := protocol.Decode(frame)
	if err != nil {
		// unknown types and bad frames are dropped, the channel stays up
		m.logger.Debug().Err(err).Int("size", len(frame)).Msg("dropping inbound frame")
		return
	}

	if _, ok := msg.(protocol.Ping); ok {
		if m.cfg.Heartbeat.ReplyToPing && m.channel != nil {
			if err := m.channel.Send(protocol.Pong{}); err != nil {
				m.logger.Debug().Err(err).Msg("failed to answer ping")
			}
		}
		return
	}
	m.onMessage(msg)
}

func (m *ConnectionStateMachine) channelFailed(gen uint64, err error) {
	if m.stale(gen) {
		return
	}
	m.fail(err)
	m.changed()
}

// fail abandons the current channel and schedules the next attempt. The
// caller publishes the change.
func (m *ConnectionStateMachine) fail(cause error) {
	if m.closed {
		return
	}
	m.supersede()
	m.attempt++
	m.lastErr = cause

	var closed *ChannelClosedError
	event := m.logger.Warn().Err(cause).Int("attempt", m.attempt)
	if errors.As(cause, &closed) {
		event = event.Int("close_code", closed.Code)
	}
	event.Msg("session channel failed")

	if m.cfg.Policy.Exhausted(m.attempt) {
		m.state = StateError
		m.lastErr = ErrReconnectionExhausted
		m.countdown = 0
		m.logger.Error().Int("max_attempts", m.cfg.Policy.MaxAttempts).Msg("reconnection attempts exhausted")
		if m.cfg.Policy.RetryAfterExhausted {
			m.scheduleRetry(m.cfg.Policy.Delay(m.attempt))
		}
		return
	}

	m.state = StateReconnecting
	m.scheduleRetry(m.cfg.Policy.Delay(m.attempt))
}

func (m *ConnectionStateMachine) scheduleRetry(d time.Duration) {
	if d <= 0 {
		m.countdown = 0
		if m.offline {
			m.held = true
			return
		}
		m.connect()
		return
	}

	gen := m.gen
	m.retryAt = m.clock.Now().Add(d)
	m.countdown = countdownSeconds(d)
	m.retryTimer = m.clock.AfterFunc(d, func() {
		m.post(func() {
			if m.stale(gen) {
				return
			}
			m.retryDue()
		})
	})
	m.scheduleCountdown(gen)

	m.logger.Debug().Dur("delay", d).Int("attempt", m.attempt).Msg("retry scheduled")
}

func (m *ConnectionStateMachine) retryDue() {
	m.retryTimer = nil
	m.countdown = 0
	if m.offline {
		m.held = true
		m.changed()
		return
	}
	m.connect()
	m.changed()
}

func (m *ConnectionStateMachine) scheduleCountdown(gen uint64) {
	m.countdownTimer = m.clock.AfterFunc(m.cfg.CountdownInterval, func() {
		m.post(func() {
			if m.stale(gen) {
				return
			}
			m.countdown = countdownSeconds(m.retryAt.Sub(m.clock.Now()))
			if m.countdown > 0 {
				m.scheduleCountdown(gen)
			}
			m.changed()
		})
	})
}

// connect replaces whatever channel exists with a fresh one.
func (m *ConnectionStateMachine) connect() {
	m.supersede()
	m.channel = openSessionChannel(m.gen, m.dialer, m.post, m)
	m.logger.Debug().Uint64("generation", m.gen).Int("attempt", m.attempt).Msg("dialing session channel")
}

// supersede tears down the channel and every pending timer, then advances
// the generation so callbacks already in flight are ignored.
func (m *ConnectionStateMachine) supersede() {
	if m.heartbeat != nil {
		m.heartbeat.Stop()
		m.heartbeat = nil
	}
	if m.channel != nil {
		if err := m.channel.Close(); err != nil {
			m.logger.Debug().Err(err).Msg("error closing superseded channel")
		}
		m.channel = nil
	}
	for _, t := range []clockwork.Timer{m.retryTimer, m.countdownTimer, m.settleTimer} {
		if t != nil {
			t.Stop()
		}
	}
	m.retryTimer, m.countdownTimer, m.settleTimer = nil, nil, nil
	m.held = false
	m.gen++
}

func (m *ConnectionStateMachine) stale(gen uint64) bool {
	return m.closed || gen != m.gen
}

func (m *ConnectionStateMachine) changed() {
	if m.onChange != nil {
		m.onChange()
	}
}

// countdownSeconds rounds up to a tenth of a second so the display never
// reads 0 before the retry fires.
func countdownSeconds(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return math.Ceil(d.Seconds()*10) / 10
}
