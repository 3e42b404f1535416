package main

import (
	"fmt"
	"time"

	"github.com/mcdev12/geoduel/go/internal/game/authority"
	"github.com/mcdev12/geoduel/go/internal/platform/config"
)

// Config is read from the environment (after .env is loaded).
type Config struct {
	Port            string        `env:"AUTHORITY_PORT" envDefault:"8082"`
	GameFile        string        `env:"GAME_FILE" envDefault:"game.yaml"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	NATSURL           string `env:"NATS_URL"`
	NATSStream        string `env:"NATS_STREAM" envDefault:"GAME_EVENTS"`
	NATSSubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"game.events"`
}

// GameFile is the yaml file describing game pacing and the location pool.
type GameFile struct {
	Game      authority.GameSettings `yaml:"game"`
	Locations []authority.Location   `yaml:"locations"`
}

func loadGameFile(path string) (*GameFile, error) {
	file := GameFile{Game: authority.DefaultGameSettings()}
	if err := config.LoadYAML(path, &file); err != nil {
		return nil, err
	}
	if err := file.Game.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &file, nil
}
