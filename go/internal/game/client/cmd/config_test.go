package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcdev12/geoduel/go/internal/game/client"
)

const testSession = "6f1c1e1a-7d0b-4f5e-9a57-2f1d3c4b5a69"

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{server: "ws://localhost:8082", session: testSession}, false},
		{"missing session", Config{server: "ws://localhost:8082"}, true},
		{"bad session", Config{server: "ws://localhost:8082", session: "nope"}, true},
		{"http scheme", Config{server: "http://localhost:8082", session: testSession}, true},
		{"negative attempts", Config{server: "ws://localhost:8082", session: testSession, maxAttempts: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.validate(); (err != nil) != tt.wantErr {
				t.Fatalf("validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSessionURL(t *testing.T) {
	cfg := Config{server: "ws://localhost:8082", session: testSession, player: "alice"}
	want := "ws://localhost:8082/ws/session?player_id=alice&session_id=" + testSession
	if got := cfg.sessionURL(); got != want {
		t.Fatalf("sessionURL = %q, want %q", got, want)
	}

	cfg = Config{server: "wss://games.example.com/custom", session: testSession}
	want = "wss://games.example.com/custom?session_id=" + testSession
	if got := cfg.sessionURL(); got != want {
		t.Fatalf("sessionURL = %q, want %q", got, want)
	}
}

func TestSessionConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	body := "machine:\n  policy:\n    max_attempts: 4\n    base_delay: 1s\n  heartbeat:\n    interval: 20s\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := &Config{}
	cmd := newCmd(cfg)
	if err := cmd.ParseFlags([]string{"--config", path, "--max-delay", "10s"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	got, err := cfg.sessionConfig(cmd.Flags())
	if err != nil {
		t.Fatalf("sessionConfig: %v", err)
	}
	policy := got.Machine.Policy
	if policy.MaxAttempts != 4 || policy.BaseDelay != time.Second || policy.MaxDelay != 10*time.Second {
		t.Fatalf("unexpected policy: %+v", policy)
	}
	if got.Machine.Heartbeat.Interval != 20*time.Second || got.Machine.Heartbeat.TimeoutMultiplier != 3 {
		t.Fatalf("unexpected heartbeat: %+v", got.Machine.Heartbeat)
	}
}

func TestSessionConfigRejectsUncappedBackoff(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)
	if err := cmd.ParseFlags([]string{"--max-attempts", "0", "--max-delay", "0"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if _, err := cfg.sessionConfig(cmd.Flags()); err == nil {
		t.Fatal("expected an error for a zero backoff cap")
	}
}

func TestSessionConfigEnvBinding(t *testing.T) {
	t.Setenv("GEODUEL_MAX_ATTEMPTS", "7")

	cfg := &Config{}
	cmd := newCmd(cfg)
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	got, err := cfg.sessionConfig(cmd.Flags())
	if err != nil {
		t.Fatalf("sessionConfig: %v", err)
	}
	if got.Machine.Policy.MaxAttempts != 7 {
		t.Fatalf("max attempts = %d, want 7", got.Machine.Policy.MaxAttempts)
	}
}

func TestRoundToGuessOncePerRound(t *testing.T) {
	var r snapshotReporter
	open := func(round int) client.Snapshot {
		return client.Snapshot{RoundIndex: round, RoundTimerState: client.NewRoundTimerState(20)}
	}

	if _, ok := r.roundToGuess(client.Snapshot{}); ok {
		t.Fatal("guessed before any round opened")
	}
	if round, ok := r.roundToGuess(open(0)); !ok || round != 0 {
		t.Fatalf("round 0: got %d %v", round, ok)
	}
	if _, ok := r.roundToGuess(open(0)); ok {
		t.Fatal("guessed round 0 twice")
	}
	if round, ok := r.roundToGuess(open(1)); !ok || round != 1 {
		t.Fatalf("round 1: got %d %v", round, ok)
	}
	over := open(2)
	over.GameOver = true
	if _, ok := r.roundToGuess(over); ok {
		t.Fatal("guessed after game over")
	}
}
