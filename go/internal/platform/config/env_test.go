package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Port    int           `env:"GEODUEL_TEST_PORT" envDefault:"123"`
	Timeout time.Duration `env:"GEODUEL_TEST_TIMEOUT" envDefault:"5s"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 || cfg.Timeout != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("GEODUEL_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("GEODUEL_TEST_PORT=456\nGEODUEL_TEST_TIMEOUT=9s\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	// Already-set variables are not overridden.
	t.Setenv("GEODUEL_TEST_TIMEOUT", "1s")
	t.Setenv("GEODUEL_TEST_PORT", "")
	os.Unsetenv("GEODUEL_TEST_PORT")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 456 || cfg.Timeout != time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
