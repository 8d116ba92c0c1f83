// Package config defines the service configuration. Values come from
// built-in defaults, an optional TOML file and LIVEBID_* environment
// variables, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration
type Config struct {
	Server   ServerConfig  `toml:"server"`
	Auction  AuctionConfig `toml:"auction"`
	Storage  StorageConfig `toml:"storage"`
	Redis    RedisConfig   `toml:"redis"`
	LogLevel string        `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters
type ServerConfig struct {
	Port            int      `toml:"port"`
	ReadTimeout     duration `toml:"read_timeout"`
	WriteTimeout    duration `toml:"write_timeout"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
	// AllowedOrigins lists browser origins allowed to open /ws besides the
	// server's own host
	AllowedOrigins []string `toml:"allowed_origins"`
}

// AuctionConfig holds marketplace rules and background loop periods
type AuctionConfig struct {
	// StartingBalance is credited to new users, in minor units
	StartingBalance int64    `toml:"starting_balance"`
	CloseInterval   duration `toml:"close_interval"`
	OutboxRetry     duration `toml:"outbox_retry"`
	// OutboxHighWater is the per-sink backlog that raises a warning
	OutboxHighWater int `toml:"outbox_high_water"`
}

// StorageConfig selects and configures the repository
type StorageConfig struct {
	Driver        string `toml:"driver"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"sslmode"`
	MaxConns      int    `toml:"max_conns"`
	MinConns      int    `toml:"min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds the optional Redis event publisher settings
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	PoolSize int    `toml:"pool_size"`
}

// Storage drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// duration wraps time.Duration so TOML strings like "10s" decode into it.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a configuration that runs fully in memory on :8080
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     duration{15 * time.Second},
			WriteTimeout:    duration{15 * time.Second},
			ShutdownTimeout: duration{10 * time.Second},
		},
		Auction: AuctionConfig{
			StartingBalance: 100000,
			CloseInterval:   duration{10 * time.Second},
			OutboxRetry:     duration{2 * time.Second},
			OutboxHighWater: 10000,
		},
		Storage: StorageConfig{
			Driver:        DriverMemory,
			Host:          "localhost",
			Port:          5432,
			Database:      "livebid",
			User:          "postgres",
			SSLMode:       "disable",
			MaxConns:      10,
			MinConns:      2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 20,
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

// Validate checks the configuration and reports every problem at once
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if c.Auction.StartingBalance < 0 {
		errs = append(errs, "auction: starting_balance must not be negative")
	}
	if c.Auction.CloseInterval.Duration <= 0 {
		errs = append(errs, "auction: close_interval must be positive")
	}
	if c.Auction.OutboxRetry.Duration <= 0 {
		errs = append(errs, "auction: outbox_retry must be positive")
	}
	if c.Auction.OutboxHighWater <= 0 {
		errs = append(errs, "auction: outbox_high_water must be positive")
	}

	switch strings.ToLower(c.Storage.Driver) {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.DSN == "" && c.Storage.Host == "" {
			errs = append(errs, "storage: dsn or host is required for postgres")
		}
		if c.Storage.MinConns > c.Storage.MaxConns {
			errs = append(errs, "storage: min_conns must not exceed max_conns")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage: unknown driver %q (valid: memory, postgres)", c.Storage.Driver))
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr is required when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
