package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path over Defaults and applies environment
// overrides. A missing file is not an error. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// .env is optional
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// PORT is honoured for platforms that inject it
	setInt(&cfg.Server.Port, "PORT")
	setInt(&cfg.Server.Port, "LIVEBID_SERVER_PORT")
	setDuration(&cfg.Server.ReadTimeout, "LIVEBID_SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "LIVEBID_SERVER_WRITE_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "LIVEBID_SERVER_SHUTDOWN_TIMEOUT")
	setList(&cfg.Server.AllowedOrigins, "LIVEBID_SERVER_ALLOWED_ORIGINS")

	setInt64(&cfg.Auction.StartingBalance, "LIVEBID_AUCTION_STARTING_BALANCE")
	setDuration(&cfg.Auction.CloseInterval, "LIVEBID_AUCTION_CLOSE_INTERVAL")
	setDuration(&cfg.Auction.OutboxRetry, "LIVEBID_AUCTION_OUTBOX_RETRY")
	setInt(&cfg.Auction.OutboxHighWater, "LIVEBID_AUCTION_OUTBOX_HIGH_WATER")

	setStr(&cfg.Storage.Driver, "LIVEBID_STORAGE_DRIVER")
	setStr(&cfg.Storage.DSN, "LIVEBID_STORAGE_DSN")
	setStr(&cfg.Storage.Host, "LIVEBID_STORAGE_HOST")
	setInt(&cfg.Storage.Port, "LIVEBID_STORAGE_PORT")
	setStr(&cfg.Storage.Database, "LIVEBID_STORAGE_DATABASE")
	setStr(&cfg.Storage.User, "LIVEBID_STORAGE_USER")
	setStr(&cfg.Storage.Password, "LIVEBID_STORAGE_PASSWORD")
	setStr(&cfg.Storage.SSLMode, "LIVEBID_STORAGE_SSLMODE")
	setInt(&cfg.Storage.MaxConns, "LIVEBID_STORAGE_MAX_CONNS")
	setInt(&cfg.Storage.MinConns, "LIVEBID_STORAGE_MIN_CONNS")
	setBool(&cfg.Storage.RunMigrations, "LIVEBID_STORAGE_RUN_MIGRATIONS")

	setBool(&cfg.Redis.Enabled, "LIVEBID_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "LIVEBID_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LIVEBID_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LIVEBID_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "LIVEBID_REDIS_POOL_SIZE")

	setStr(&cfg.LogLevel, "LIVEBID_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setList splits a comma separated value, dropping blanks
func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
