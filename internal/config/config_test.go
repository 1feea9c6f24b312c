package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ALLOWED_ORIGIN", "")
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("MEMORY_STORE", "")
	t.Setenv("STATS_CACHE_TTL_SECONDS", "")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "")
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("TIMEZONE", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DatabasePath != "data/pos.db" {
		t.Fatalf("DatabasePath = %q, want data/pos.db", cfg.DatabasePath)
	}
	if cfg.UseMemoryStore {
		t.Fatal("UseMemoryStore should default to false")
	}
	if cfg.StatsCacheTTLSeconds != 15 {
		t.Fatalf("StatsCacheTTLSeconds = %d, want 15", cfg.StatsCacheTTLSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("AccessTokenTTLMinutes = %d, want 480", cfg.AccessTokenTTLMinutes)
	}
	if cfg.AuthSecret != "" {
		t.Fatalf("AuthSecret = %q, want empty (never defaulted)", cfg.AuthSecret)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("Address() = %q, want :8080", cfg.Address())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MEMORY_STORE", "TRUE")
	t.Setenv("STATS_CACHE_TTL_SECONDS", "60")
	t.Setenv("AUTH_SECRET", "  secret-with-spaces  ")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("Port = %q, want 9090", cfg.Port)
	}
	if !cfg.UseMemoryStore {
		t.Fatal("UseMemoryStore should parse TRUE")
	}
	if cfg.StatsCacheTTLSeconds != 60 {
		t.Fatalf("StatsCacheTTLSeconds = %d, want 60", cfg.StatsCacheTTLSeconds)
	}
	if cfg.AuthSecret != "secret-with-spaces" {
		t.Fatalf("AuthSecret = %q, want trimmed", cfg.AuthSecret)
	}
}

func TestLoadRejectsBadTTL(t *testing.T) {
	t.Setenv("STATS_CACHE_TTL_SECONDS", "not-a-number")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")

	cfg := Load()
	if cfg.StatsCacheTTLSeconds != 15 {
		t.Fatalf("StatsCacheTTLSeconds = %d, want fallback 15", cfg.StatsCacheTTLSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("AccessTokenTTLMinutes = %d, want fallback 480", cfg.AccessTokenTTLMinutes)
	}
}

func TestLocation(t *testing.T) {
	cfg := Config{Timezone: "Asia/Kolkata"}
	loc := cfg.Location()
	if loc.String() != "Asia/Kolkata" {
		t.Fatalf("Location = %v, want Asia/Kolkata", loc)
	}

	cfg = Config{Timezone: "Not/AZone"}
	if cfg.Location() != time.Local {
		t.Fatal("invalid timezone should fall back to local")
	}

	cfg = Config{}
	if cfg.Location() != time.Local {
		t.Fatal("empty timezone should fall back to local")
	}
}
