package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/geoduel/go/internal/game/authority"
	"github.com/mcdev12/geoduel/go/internal/platform/config"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	gameFile, err := loadGameFile(cfg.GameFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load game file")
	}
	locations, err := authority.NewStaticLocations(gameFile.Locations)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid location pool")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher, err := setupPublisher(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	serviceConfig := authority.DefaultConfig()
	serviceConfig.Game = gameFile.Game
	service, err := authority.NewService(serviceConfig, clockwork.NewRealClock(), locations, publisher)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create session authority")
	}

	server := setupServer(cfg, service)

	log.Info().
		Str("addr", server.Addr).
		Int("rounds", gameFile.Game.Rounds).
		Int("locations", len(gameFile.Locations)).
		Bool("nats", cfg.NATSURL != "").
		Msg("starting session authority")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return service.Start(gctx)
	})
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("session authority failed")
	}
	log.Info().Msg("session authority shutdown complete")
}

func setupPublisher(ctx context.Context, cfg Config) (authority.EventPublisher, error) {
	if cfg.NATSURL == "" {
		log.Info().Msg("NATS_URL not set, game events will not be published")
		return authority.NoopPublisher{}, nil
	}
	jsConfig := authority.DefaultJetStreamPublisherConfig()
	jsConfig.URL = cfg.NATSURL
	jsConfig.StreamName = cfg.NATSStream
	jsConfig.SubjectPrefix = cfg.NATSSubjectPrefix

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return authority.NewJetStreamPublisher(connectCtx, jsConfig)
}

func setupServer(cfg Config, service *authority.Service) *http.Server {
	mux := http.NewServeMux()
	service.RegisterRoutes(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
