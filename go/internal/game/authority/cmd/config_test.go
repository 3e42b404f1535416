package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcdev12/geoduel/go/internal/game/authority"
)

func TestLoadExampleGameFile(t *testing.T) {
	file, err := loadGameFile("game.example.yaml")
	if err != nil {
		t.Fatalf("loadGameFile: %v", err)
	}
	if file.Game.Rounds != 5 || file.Game.RoundDuration != 30*time.Second {
		t.Fatalf("unexpected settings: %+v", file.Game)
	}
	if len(file.Locations) != 5 || file.Locations[0].Label != "Paris" || file.Locations[0].Point.Lat != 48.8566 {
		t.Fatalf("unexpected locations: %+v", file.Locations)
	}
	if _, err := authority.NewStaticLocations(file.Locations); err != nil {
		t.Fatalf("example locations invalid: %v", err)
	}
}

func TestLoadGameFileDefaultsAndValidation(t *testing.T) {
	dir := t.TempDir()

	partial := filepath.Join(dir, "partial.yaml")
	if err := os.WriteFile(partial, []byte("game:\n  rounds: 3\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	file, err := loadGameFile(partial)
	if err != nil {
		t.Fatalf("loadGameFile: %v", err)
	}
	if file.Game.Rounds != 3 || file.Game.MinPlayers != authority.DefaultGameSettings().MinPlayers {
		t.Fatalf("defaults not kept: %+v", file.Game)
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("game:\n  rounds: 0\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadGameFile(invalid); err == nil {
		t.Fatal("expected validation error")
	}
}
