package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Test Defaults pass validation
func TestDefaults_Valid(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	require.Equal(t, DriverMemory, cfg.Storage.Driver)
	require.Equal(t, int64(100000), cfg.Auction.StartingBalance)
	require.Equal(t, 10*time.Second, cfg.Auction.CloseInterval.Duration)
}

// Test Load with a missing file falls back to defaults
func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	require.Equal(t, Defaults().Server.Port, cfg.Server.Port)
}

// Test Load decodes TOML over defaults
func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livebid.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[server]
port = 9090

[auction]
starting_balance = 5000
close_interval = "250ms"

[storage]
driver = "postgres"
dsn = "postgres://u:p@db:5432/livebid"

[redis]
enabled = true
addr = "cache:6379"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, int64(5000), cfg.Auction.StartingBalance)
	require.Equal(t, 250*time.Millisecond, cfg.Auction.CloseInterval.Duration)
	// untouched keys keep their defaults
	require.Equal(t, 2*time.Second, cfg.Auction.OutboxRetry.Duration)
	require.Equal(t, DriverPostgres, cfg.Storage.Driver)
	require.True(t, cfg.Redis.Enabled)
	require.Equal(t, "cache:6379", cfg.Redis.Addr)
}

// Test Load rejects malformed TOML
func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("port = ["), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

// Test environment overrides win over the file
func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LIVEBID_SERVER_PORT", "7000")
	t.Setenv("LIVEBID_AUCTION_CLOSE_INTERVAL", "1m")
	t.Setenv("LIVEBID_AUCTION_STARTING_BALANCE", "42")
	t.Setenv("LIVEBID_STORAGE_DRIVER", "postgres")
	t.Setenv("LIVEBID_REDIS_ENABLED", "true")
	t.Setenv("LIVEBID_LOG_LEVEL", "warn")
	t.Setenv("LIVEBID_SERVER_ALLOWED_ORIGINS", " https://app.example, ,https://admin.example")
	t.Setenv("LIVEBID_AUCTION_OUTBOX_HIGH_WATER", "500")
	// unparsable values are ignored
	t.Setenv("LIVEBID_STORAGE_MAX_CONNS", "many")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Server.Port)
	require.Equal(t, time.Minute, cfg.Auction.CloseInterval.Duration)
	require.Equal(t, int64(42), cfg.Auction.StartingBalance)
	require.Equal(t, DriverPostgres, cfg.Storage.Driver)
	require.True(t, cfg.Redis.Enabled)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, 10, cfg.Storage.MaxConns)
	require.Equal(t, []string{"https://app.example", "https://admin.example"}, cfg.Server.AllowedOrigins)
	require.Equal(t, 500, cfg.Auction.OutboxHighWater)
}

// Test Validate
func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad_log_level",
			mutate:  func(c *Config) { c.LogLevel = "loud" },
			wantErr: "log_level",
		},
		{
			name:    "bad_port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "port",
		},
		{
			name:    "negative_balance",
			mutate:  func(c *Config) { c.Auction.StartingBalance = -1 },
			wantErr: "starting_balance",
		},
		{
			name:    "zero_close_interval",
			mutate:  func(c *Config) { c.Auction.CloseInterval.Duration = 0 },
			wantErr: "close_interval",
		},
		{
			name:    "unknown_driver",
			mutate:  func(c *Config) { c.Storage.Driver = "sqlite" },
			wantErr: "unknown driver",
		},
		{
			name: "postgres_pool_sizes",
			mutate: func(c *Config) {
				c.Storage.Driver = DriverPostgres
				c.Storage.MinConns = 20
			},
			wantErr: "min_conns",
		},
		{
			name: "redis_without_addr",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Addr = ""
			},
			wantErr: "redis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
