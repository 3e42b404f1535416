package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mcdev12/geoduel/go/internal/game/client"
	"github.com/mcdev12/geoduel/go/internal/platform/config"
)

type Config struct {
	server      string
	session     string
	player      string
	configFile  string
	autoGuess   bool
	guessDelay  time.Duration
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	heartbeat   time.Duration
	verbose     bool
}

func (c *Config) validate() error {
	if c.session == "" {
		return errors.New("--session is required")
	}
	if _, err := uuid.Parse(c.session); err != nil {
		return fmt.Errorf("invalid --session: %w", err)
	}
	u, err := url.Parse(c.server)
	if err != nil {
		return fmt.Errorf("invalid --server: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("--server must be a ws:// or wss:// url, got %q", c.server)
	}
	if c.maxAttempts < 0 {
		return fmt.Errorf("--max-attempts must not be negative, got %d", c.maxAttempts)
	}
	return nil
}

// sessionURL appends the session and player to the server's websocket path.
func (c *Config) sessionURL() string {
	u, _ := url.Parse(c.server)
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws/session"
	}
	q := u.Query()
	q.Set("session_id", c.session)
	if c.player != "" {
		q.Set("player_id", c.player)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// sessionConfig starts from the optional yaml file and applies flags that
// were set explicitly.
func (c *Config) sessionConfig(flags *pflag.FlagSet) (client.Config, error) {
	cfg := client.DefaultConfig()
	if c.configFile != "" {
		if err := config.LoadYAML(c.configFile, &cfg); err != nil {
			return client.Config{}, err
		}
	}
	policy := &cfg.Machine.Policy
	if flags.Changed("max-attempts") {
		policy.MaxAttempts = c.maxAttempts
	}
	if flags.Changed("base-delay") {
		policy.BaseDelay = c.baseDelay
	}
	if flags.Changed("max-delay") {
		policy.MaxDelay = c.maxDelay
	}
	if flags.Changed("heartbeat-interval") {
		cfg.Machine.Heartbeat.Interval = c.heartbeat
	}
	if err := policy.Validate(); err != nil {
		return client.Config{}, fmt.Errorf("invalid reconnect policy: %w", err)
	}
	return cfg, nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("GEODUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "geoduel-client",
		Short:   "Headless game client for diagnostics and load testing.",
		Args:    cobra.ExactArgs(0),
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			sessionCfg, err := cfg.sessionConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, sessionCfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.server, "server", "s", "ws://localhost:8082/ws/session", "authority websocket url (env: GEODUEL_SERVER)")
	fs.StringVar(&cfg.session, "session", "", "session id to join (env: GEODUEL_SESSION)")
	fs.StringVarP(&cfg.player, "player", "p", "", "player id, assigned by the authority when empty (env: GEODUEL_PLAYER)")
	fs.StringVarP(&cfg.configFile, "config", "c", "", "yaml file with session tuning (env: GEODUEL_CONFIG)")
	fs.BoolVar(&cfg.autoGuess, "auto-guess", false, "submit a random guess every round (env: GEODUEL_AUTO_GUESS)")
	fs.DurationVar(&cfg.guessDelay, "guess-delay", 2*time.Second, "wait before an automatic guess (env: GEODUEL_GUESS_DELAY)")
	fs.IntVar(&cfg.maxAttempts, "max-attempts", 10, "reconnection attempts before giving up, 0 for unlimited (env: GEODUEL_MAX_ATTEMPTS)")
	fs.DurationVar(&cfg.baseDelay, "base-delay", 500*time.Millisecond, "initial reconnection backoff (env: GEODUEL_BASE_DELAY)")
	fs.DurationVar(&cfg.maxDelay, "max-delay", 30*time.Second, "reconnection backoff cap (env: GEODUEL_MAX_DELAY)")
	fs.DurationVar(&cfg.heartbeat, "heartbeat-interval", 15*time.Second, "expected authority ping interval (env: GEODUEL_HEARTBEAT_INTERVAL)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "log every snapshot field and debug traffic (env: GEODUEL_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("geoduel-client v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
