package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Port     int           `env:"TEST_PORT" envDefault:"123"`
	CacheTTL time.Duration `env:"TEST_CACHE_TTL" envDefault:"5m"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 || cfg.CacheTTL != 5*time.Minute {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestParseEnvUsesForgePrefix(t *testing.T) {
	t.Setenv("ESPRIT_FORGE_TEST_PORT", "9100")
	t.Setenv("TEST_PORT", "1")

	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 9100 {
		t.Fatalf("port = %d, want the prefixed value 9100", cfg.Port)
	}
}

func TestParseEnvWithPrefix(t *testing.T) {
	t.Setenv("OTHER_TEST_CACHE_TTL", "90s")

	var cfg envTestConfig
	if err := ParseEnvWithPrefix(&cfg, "OTHER_"); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Fatalf("cache ttl = %v, want 90s", cfg.CacheTTL)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("ESPRIT_FORGE_TEST_PORT", "not-an-int")

	var cfg envTestConfig
	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env ESPRIT_FORGE_*") {
		t.Fatalf("error = %v", err)
	}
}
