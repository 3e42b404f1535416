package main

import (
	"context"
	"math/rand/v2"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/geoduel/go/internal/game/client"
	"github.com/mcdev12/geoduel/go/internal/game/transport"
)

func run(ctx context.Context, cfg *Config, sessionCfg client.Config) error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	dialer := transport.NewWebSocketDialer(transport.DefaultWebSocketConfig(cfg.sessionURL()))
	session := client.NewSession(dialer, sessionCfg)

	rounds := make(chan int, 1)
	var reporter snapshotReporter
	unsubscribe := session.Subscribe(func(s client.Snapshot) {
		reporter.report(s, cfg.verbose)
		if cfg.autoGuess {
			if round, ok := reporter.roundToGuess(s); ok {
				select {
				case rounds <- round:
				default:
				}
			}
		}
	})
	defer unsubscribe()

	if cfg.autoGuess {
		go guessLoop(ctx, session, rounds, cfg.guessDelay)
	}

	log.Info().
		Str("url", cfg.sessionURL()).
		Bool("auto_guess", cfg.autoGuess).
		Msg("joining session")

	err := session.Run(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// snapshotReporter logs transitions. The session serializes its calls.
type snapshotReporter struct {
	last        client.Snapshot
	started     bool
	guessedUpTo int
}

func (r *snapshotReporter) report(s client.Snapshot, verbose bool) {
	prev := r.last
	first := !r.started
	r.last = s
	r.started = true

	if first || s.ConnectionStatus != prev.ConnectionStatus {
		ev := log.Info()
		if s.ConnectionStatus == client.StateError {
			ev = log.Error()
		}
		ev.Str("status", s.ConnectionStatus.String()).Msg("connection status")
	}
	if s.Reconnection.IsReconnecting && s.Reconnection.Attempt != prev.Reconnection.Attempt {
		log.Warn().
			Int("attempt", s.Reconnection.Attempt).
			Int("max_attempts", s.Reconnection.MaxAttempts).
			Float64("retry_in", s.Reconnection.CountdownSeconds).
			Msg("reconnecting")
	}
	if len(s.Scores) > 0 && (len(prev.Scores) == 0 || s.RoundIndex != prev.RoundIndex || prev.DisplayTime > 0 && s.DisplayTime == 0) {
		for _, sc := range s.Scores {
			log.Info().
				Int("round", s.RoundIndex).
				Str("player_id", sc.PlayerID).
				Int("placement", sc.Placement).
				Int("points", sc.RoundPoints).
				Float64("distance_km", sc.DistanceKm).
				Msg("round score")
		}
	}
	if s.GameOver && !prev.GameOver {
		log.Info().Str("winner", s.Winner).Msg("game over")
	}
	if verbose {
		log.Debug().
			Int("round", s.RoundIndex).
			Float64("display_time", s.DisplayTime).
			Bool("low_time", s.LowTime).
			Bool("critical_time", s.CriticalTime).
			Msg("snapshot")
	}
}

// roundToGuess reports a round that is open and not yet guessed. Rounds are
// numbered from 0, so guessedUpTo holds the next unguessed index.
func (r *snapshotReporter) roundToGuess(s client.Snapshot) (int, bool) {
	if s.GameOver || s.DisplayTime <= 0 || s.RoundIndex < r.guessedUpTo {
		return 0, false
	}
	r.guessedUpTo = s.RoundIndex + 1
	return s.RoundIndex, true
}

func guessLoop(ctx context.Context, session *client.Session, rounds <-chan int, delay time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-session.Done():
			return
		case round := <-rounds:
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			lat := rand.Float64()*180 - 90
			lon := rand.Float64()*360 - 180
			if err := session.SendGuess(ctx, lat, lon); err != nil {
				log.Warn().Err(err).Int("round", round).Msg("failed to submit guess")
				continue
			}
			log.Info().Int("round", round).Float64("lat", lat).Float64("lon", lon).Msg("guess submitted")
		}
	}
}
