package client

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Thresholds for the round timer's warning flags, in seconds.
const (
	LowTimeThreshold      = 10.0
	CriticalTimeThreshold = 5.0
)

// DefaultRefreshInterval is how often the displayed round time is recomputed.
const DefaultRefreshInterval = 100 * time.Millisecond

// RoundTimerState is what the presentation layer shows for the round clock.
type RoundTimerState struct {
	DisplayTime  float64 `json:"displayTime"`
	LowTime      bool    `json:"lowTime"`
	CriticalTime bool    `json:"criticalTime"`
}

// NewRoundTimerState derives the warning flags from a display time.
func NewRoundTimerState(displayTime float64) RoundTimerState {
	return RoundTimerState{
		DisplayTime:  displayTime,
		LowTime:      displayTime <= LowTimeThreshold,
		CriticalTime: displayTime <= CriticalTimeThreshold,
	}
}

// DisplayTimeAt extrapolates an authoritative timeLeft (seconds) received at
// t0 to the local time t.
func DisplayTimeAt(timeLeft float64, t0, t time.Time) float64 {
	remaining := timeLeft - t.Sub(t0).Seconds()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RoundTimer extrapolates the remaining round time between authoritative
// updates. It is confined to the session loop and holds at most one ticker.
type RoundTimer struct {
	clock   clockwork.Clock
	refresh time.Duration
	post    func(func()) bool
	onTick  func(displayTime float64)

	baseline time.Time
	timeLeft float64
	display  float64

	ticker clockwork.Ticker
	halt   chan struct{}
	token  uint64
}

// NewRoundTimer builds an idle timer. onTick runs on the loop after every
// recomputation.
func NewRoundTimer(clock clockwork.Clock, refresh time.Duration, post func(func()) bool, onTick func(float64)) *RoundTimer {
	if refresh <= 0 {
		refresh = DefaultRefreshInterval
	}
	return &RoundTimer{
		clock:   clock,
		refresh: refresh,
		post:    post,
		onTick:  onTick,
	}
}

// Reset installs a new authoritative baseline. The previous baseline is
// discarded without blending and any running ticker is replaced.
func (r *RoundTimer) Reset(timeLeft float64) {
	r.stopTicker()
	r.baseline = r.clock.Now()
	r.timeLeft = timeLeft
	r.display = timeLeft
	if timeLeft > 0 {
		r.startTicker()
	}
	r.onTick(r.display)
}

// Finish forces the display to zero and stops ticking.
func (r *RoundTimer) Finish() {
	r.stopTicker()
	r.timeLeft = 0
	r.display = 0
	r.onTick(0)
}

// Stop halts ticking without changing the display.
func (r *RoundTimer) Stop() {
	r.stopTicker()
}

// DisplayTime returns the last computed display time.
func (r *RoundTimer) DisplayTime() float64 {
	return r.display
}

// State returns the display time with its warning flags.
func (r *RoundTimer) State() RoundTimerState {
	return NewRoundTimerState(r.display)
}

func (r *RoundTimer) tick() {
	r.display = DisplayTimeAt(r.timeLeft, r.baseline, r.clock.Now())
	if r.display == 0 {
		r.stopTicker()
	}
	r.onTick(r.display)
}

func (r *RoundTimer) startTicker() {
	r.token++
	token := r.token
	ticker := r.clock.NewTicker(r.refresh)
	halt := make(chan struct{})
	r.ticker = ticker
	r.halt = halt

	go func() {
		for {
			select {
			case <-halt:
				return
			case <-ticker.Chan():
				ok := r.post(func() {
					if token == r.token {
						r.tick()
					}
				})
				if !ok {
					return
				}
			}
		}
	}()
}

func (r *RoundTimer) stopTicker() {
	r.token++
	if r.ticker != nil {
		r.ticker.Stop()
		close(r.halt)
		r.ticker = nil
		r.halt = nil
	}
}
