package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "LISTEN_ADDR", "API_ADDR", "REDIS_URL", "DATABASE_URL", "MESSAGES_DIR",
		"GRACE_WINDOW", "INACTIVITY_TTL", "SWEEP_INTERVAL", "PING_INTERVAL",
		"ROOM_CODE_LENGTH", "SEND_QUEUE_SIZE", "LEADERBOARD_SIZE", "ALLOW_ORIGINS", "SPECTATE_WHEN_FULL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.GraceWindow != 30*time.Second || cfg.RoomCodeLength != 6 {
		t.Fatalf("defaults: %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "othello.yaml")
	body := "listen_addr: \":9000\"\ngrace_window: 45s\nredis_url: redis://file:6379/0\nallow_origins: [\"a.example\"]\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("REDIS_URL", "redis://env:6379/1")
	t.Setenv("INACTIVITY_TTL", "7200")
	t.Setenv("ALLOW_ORIGINS", "x.example, y.example")
	t.Setenv("SPECTATE_WHEN_FULL", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9000" || cfg.GraceWindow != 45*time.Second {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.RedisURL != "redis://env:6379/1" {
		t.Fatalf("env should win over file: %s", cfg.RedisURL)
	}
	if cfg.InactivityTTL != 2*time.Hour {
		t.Fatalf("bare seconds: %v", cfg.InactivityTTL)
	}
	if !cfg.SpectateWhenFull {
		t.Fatalf("SPECTATE_WHEN_FULL not applied")
	}
	if len(cfg.AllowOrigins) != 2 || cfg.AllowOrigins[1] != "y.example" {
		t.Fatalf("origins: %v", cfg.AllowOrigins)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"GRACE_WINDOW":       "soon",
		"ROOM_CODE_LENGTH":   "2",
		"INACTIVITY_TTL":     "1s",
		"SEND_QUEUE_SIZE":    "x",
		"SPECTATE_WHEN_FULL": "maybe",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(k, v)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", k, v)
			}
		})
	}
}
