package client

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// HeartbeatConfig controls liveness detection. The authority sends a ping
// every Interval; a channel with no inbound traffic for
// Interval*TimeoutMultiplier is considered dead.
type HeartbeatConfig struct {
	Interval          time.Duration `yaml:"interval"`
	TimeoutMultiplier int           `yaml:"timeout_multiplier"`
	// ReplyToPing answers each application ping with a pong. The transport
	// answers control pings regardless, which keeps the authority's read
	// deadline alive when this is off.
	ReplyToPing bool `yaml:"reply_to_ping"`
}

// DefaultHeartbeatConfig matches the authority's default ping cadence.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval:          15 * time.Second,
		TimeoutMultiplier: 3,
		ReplyToPing:       true,
	}
}

// Timeout is the silence after which a channel is declared dead.
func (c HeartbeatConfig) Timeout() time.Duration {
	m := c.TimeoutMultiplier
	if m < 1 {
		m = 1
	}
	return c.Interval * time.Duration(m)
}

// HeartbeatMonitor watches one channel. It is confined to the session loop;
// its timer only posts a check back onto the loop.
type HeartbeatMonitor struct {
	clock    clockwork.Clock
	interval time.Duration
	timeout  time.Duration
	post     func(func()) bool
	onDead   func()

	lastSeen time.Time
	timer    clockwork.Timer
	stopped  bool
}

// NewHeartbeatMonitor builds a monitor; onDead runs on the loop when the
// timeout elapses without traffic.
func NewHeartbeatMonitor(clock clockwork.Clock, cfg HeartbeatConfig, post func(func()) bool, onDead func()) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		clock:    clock,
		interval: cfg.Interval,
		timeout:  cfg.Timeout(),
		post:     post,
		onDead:   onDead,
		stopped:  true,
	}
}

// Start begins watching from now.
func (h *HeartbeatMonitor) Start() {
	h.stopped = false
	h.lastSeen = h.clock.Now()
	h.arm(h.timeout)
}

// Observe records inbound traffic. Any frame counts as liveness.
func (h *HeartbeatMonitor) Observe() {
	h.lastSeen = h.clock.Now()
}

// Overdue reports whether a whole ping interval passed without traffic.
func (h *HeartbeatMonitor) Overdue() bool {
	return !h.stopped && h.clock.Since(h.lastSeen) > h.interval
}

// Stop cancels the pending check.
func (h *HeartbeatMonitor) Stop() {
	h.stopped = true
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

func (h *HeartbeatMonitor) arm(d time.Duration) {
	h.timer = h.clock.AfterFunc(d, func() {
		h.post(h.check)
	})
}

// check re-arms for the remaining window when traffic arrived since the
// timer was set, and declares the channel dead otherwise.
func (h *HeartbeatMonitor) check() {
	if h.stopped {
		return
	}
	silent := h.clock.Since(h.lastSeen)
	if silent < h.timeout {
		h.arm(h.timeout - silent)
		return
	}
	h.stopped = true
	h.timer = nil
	h.onDead()
}
