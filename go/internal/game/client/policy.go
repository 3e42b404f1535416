package client

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// ReconnectPolicy maps a failure count to the wait before the next attempt.
// It holds no state; the attempt counter belongs to the state machine.
type ReconnectPolicy struct {
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	Multiplier float64       `yaml:"multiplier"`
	// Jitter is the largest fraction (0..1) shaved off a delay at random.
	Jitter float64 `yaml:"jitter"`
	// MaxAttempts is how many consecutive failures are retried before the
	// session reports StateError.
	MaxAttempts int `yaml:"max_attempts"`
	// RetryAfterExhausted keeps retrying at MaxDelay after MaxAttempts while
	// the session keeps showing StateError.
	RetryAfterExhausted bool `yaml:"retry_after_exhausted"`

	// Rand returns a value in [0,1). Nil uses math/rand/v2.
	Rand func() float64 `yaml:"-"`
}

const defaultMaxDelay = 30 * time.Second

// Validate rejects a policy that cannot produce a bounded backoff.
func (p ReconnectPolicy) Validate() error {
	switch {
	case p.BaseDelay < 0:
		return fmt.Errorf("base delay must not be negative, got %v", p.BaseDelay)
	case p.MaxDelay <= 0:
		return fmt.Errorf("max delay must be positive, got %v", p.MaxDelay)
	case p.BaseDelay > p.MaxDelay:
		return fmt.Errorf("base delay %v exceeds max delay %v", p.BaseDelay, p.MaxDelay)
	case p.MaxAttempts < 0:
		return fmt.Errorf("max attempts must not be negative, got %d", p.MaxAttempts)
	}
	return nil
}

// DefaultReconnectPolicy returns the standard backoff: immediate first retry,
// then 500ms doubling up to 30s, with 20% jitter and 10 attempts.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    defaultMaxDelay,
		Multiplier:  2,
		Jitter:      0.2,
		MaxAttempts: 10,
	}
}

// Delay returns the wait before the given attempt (1-based). The first
// attempt fires immediately. A non-positive MaxDelay uses the default cap.
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	ceiling := float64(p.MaxDelay)
	if p.MaxDelay <= 0 {
		ceiling = float64(defaultMaxDelay)
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.BaseDelay) * math.Pow(mult, float64(attempt-2))
	if math.IsNaN(d) || d > ceiling {
		d = ceiling
	}

	if j := math.Min(math.Max(p.Jitter, 0), 1); j > 0 {
		r := p.Rand
		if r == nil {
			r = rand.Float64
		}
		d -= d * j * r()
	}
	return time.Duration(d)
}

// Exhausted reports whether attempt is past the retry budget.
func (p ReconnectPolicy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt > p.MaxAttempts
}
