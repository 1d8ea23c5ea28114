package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// AppConfig is the process configuration. Values come from defaults, then an optional
// YAML file named by CONFIG_FILE, then environment variables.
type AppConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	APIAddr    string `yaml:"api_addr"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	GraceWindow    time.Duration `yaml:"grace_window"`
	InactivityTTL  time.Duration `yaml:"inactivity_ttl"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	RoomCodeLength int           `yaml:"room_code_length"`

	SendQueueSize int           `yaml:"send_queue_size"`
	PingInterval  time.Duration `yaml:"ping_interval"`
	AllowOrigins  []string      `yaml:"allow_origins"`

	// SpectateWhenFull seats late joiners as spectators instead of rejecting them.
	SpectateWhenFull bool `yaml:"spectate_when_full"`

	MessagesDir     string `yaml:"messages_dir"`
	LeaderboardSize int    `yaml:"leaderboard_size"`
}

func defaults() *AppConfig {
	return &AppConfig{
		ListenAddr:      ":8080",
		APIAddr:         ":8081",
		GraceWindow:     30 * time.Second,
		InactivityTTL:   2 * time.Hour,
		SweepInterval:   5 * time.Minute,
		RoomCodeLength:  6,
		SendQueueSize:   64,
		PingInterval:    25 * time.Second,
		LeaderboardSize: 10,
	}
}

// Load builds the configuration from CONFIG_FILE (optional) and the environment.
func Load() (*AppConfig, error) {
	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}
	num := func(key string, dst *int) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("LISTEN_ADDR", &c.ListenAddr)
	str("API_ADDR", &c.APIAddr)
	str("REDIS_URL", &c.RedisURL)
	str("DATABASE_URL", &c.DatabaseURL)
	str("MESSAGES_DIR", &c.MessagesDir)
	if v := strings.TrimSpace(getenv("SPECTATE_WHEN_FULL")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SPECTATE_WHEN_FULL: %w", err)
		}
		c.SpectateWhenFull = b
	}
	if v := strings.TrimSpace(getenv("ALLOW_ORIGINS")); v != "" {
		c.AllowOrigins = nil
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				c.AllowOrigins = append(c.AllowOrigins, s)
			}
		}
	}
	for key, dst := range map[string]*time.Duration{
		"GRACE_WINDOW":   &c.GraceWindow,
		"INACTIVITY_TTL": &c.InactivityTTL,
		"SWEEP_INTERVAL": &c.SweepInterval,
		"PING_INTERVAL":  &c.PingInterval,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}
	for key, dst := range map[string]*int{
		"ROOM_CODE_LENGTH": &c.RoomCodeLength,
		"SEND_QUEUE_SIZE":  &c.SendQueueSize,
		"LEADERBOARD_SIZE": &c.LeaderboardSize,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// parseDuration accepts Go durations ("45s") or bare seconds ("45").
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("LISTEN_ADDR is required")
	}
	if c.GraceWindow <= 0 {
		return errors.New("GRACE_WINDOW must be positive")
	}
	if c.InactivityTTL <= c.GraceWindow {
		return errors.New("INACTIVITY_TTL must exceed GRACE_WINDOW")
	}
	if c.SweepInterval <= 0 {
		return errors.New("SWEEP_INTERVAL must be positive")
	}
	if c.RoomCodeLength < 4 || c.RoomCodeLength > 12 {
		return errors.New("ROOM_CODE_LENGTH must be between 4 and 12")
	}
	if c.SendQueueSize <= 0 {
		return errors.New("SEND_QUEUE_SIZE must be positive")
	}
	if c.LeaderboardSize <= 0 {
		c.LeaderboardSize = 10
	}
	return nil
}
