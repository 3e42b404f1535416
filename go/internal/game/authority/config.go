package authority

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// GameSettings controls the pacing of every session the authority runs.
type GameSettings struct {
	Rounds         int           `yaml:"rounds"`
	RoundDuration  time.Duration `yaml:"round_duration"`
	Intermission   time.Duration `yaml:"intermission"`
	UpdateInterval time.Duration `yaml:"update_interval"`
	MinPlayers     int           `yaml:"min_players"`
}

// DefaultGameSettings returns the standard five round game.
func DefaultGameSettings() GameSettings {
	return GameSettings{
		Rounds:         5,
		RoundDuration:  30 * time.Second,
		Intermission:   5 * time.Second,
		UpdateInterval: 5 * time.Second,
		MinPlayers:     2,
	}
}

// Validate reports the first unusable setting.
func (s GameSettings) Validate() error {
	switch {
	case s.Rounds < 1:
		return fmt.Errorf("rounds must be at least 1, got %d", s.Rounds)
	case s.RoundDuration <= 0:
		return errors.New("round_duration must be positive")
	case s.Intermission < 0:
		return errors.New("intermission must not be negative")
	case s.UpdateInterval <= 0:
		return errors.New("update_interval must be positive")
	case s.MinPlayers < 1:
		return fmt.Errorf("min_players must be at least 1, got %d", s.MinPlayers)
	}
	return nil
}

// HubConfig holds configuration for player websocket connections.
type HubConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultHubConfig returns default websocket configuration. ReadTimeout
// matches the client's liveness window of three missed pings.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     45 * time.Second,
		PingInterval:    15 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Config holds configuration for the authority service.
type Config struct {
	Hub             HubConfig
	Game            GameSettings
	EventBufferSize int
}

// DefaultConfig returns default configuration for the authority.
func DefaultConfig() Config {
	return Config{
		Hub:             DefaultHubConfig(),
		Game:            DefaultGameSettings(),
		EventBufferSize: 1024,
	}
}
