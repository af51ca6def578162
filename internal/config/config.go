// Package config defines the top-level configuration for the SkinTrend engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SKINTREND_* environment variables.
type Config struct {
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Reference ReferenceConfig `toml:"reference"`
	Market    MarketConfig    `toml:"market"`
	Snapshot  SnapshotConfig  `toml:"snapshot"`
	Archive   ArchiveConfig   `toml:"archive"`
	Trading   TradingConfig   `toml:"trading"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"pool_size"`
	MaxRetries   int    `toml:"max_retries"`
	TLSEnabled   bool   `toml:"tls_enabled"`
	StreamMaxLen int    `toml:"stream_max_len"`
	KeyPrefix    string `toml:"key_prefix"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ReferenceConfig points at the external reference price source.
type ReferenceConfig struct {
	BaseURL      string   `toml:"base_url"`
	AppID        int      `toml:"app_id"`
	Currency     string   `toml:"currency"`
	UserAgent    string   `toml:"user_agent"`
	SyncInterval duration `toml:"sync_interval"`
	FetchTimeout duration `toml:"fetch_timeout"`
}

// MarketConfig controls the live price model.
type MarketConfig struct {
	TickInterval  duration `toml:"tick_interval"`
	SpreadFactor  float64  `toml:"spread_factor"`
	VolatilityPct float64  `toml:"volatility_pct"`
	MoversLimit   int      `toml:"movers_limit"`
	CatalogLimit  int      `toml:"catalog_limit"`
	// MirrorQuotes saves the live market to Redis after each sync and
	// restores it on start-up.
	MirrorQuotes bool `toml:"mirror_quotes"`
}

// SnapshotConfig controls the periodic price history writer.
type SnapshotConfig struct {
	Interval     duration `toml:"interval"`
	MinPrice     float64  `toml:"min_price"`
	BatchSize    int      `toml:"batch_size"`
	ClearOnStart bool     `toml:"clear_on_start"`
}

// ArchiveConfig controls copying old snapshots to object storage.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	Cron          string `toml:"cron"`
	RetentionDays int    `toml:"retention_days"`
}

// TradingConfig holds the venue economics.
type TradingConfig struct {
	FeeRate         float64 `toml:"fee_rate"`
	MinWithdrawal   float64 `toml:"min_withdrawal"`
	StartingBalance float64 `toml:"starting_balance"`
	HistoryLimit    int     `toml:"history_limit"`
	RecentLimit     int     `toml:"recent_limit"`
}

// NotifyConfig holds operator alert channels for the withdrawal review queue.
// A channel is active when its credentials are set.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`

	// AdminAPIKey guards the admin routes. Empty disables them.
	AdminAPIKey string `toml:"admin_api_key"`

	// UserHeader carries the verified user id set by the identity gateway.
	UserHeader string `toml:"user_header"`

	// VerifiedHeader carries the gateway's email verification flag
	// ("true"/"false"). It is synced onto the user row on register and
	// withdraw. Empty leaves the stored flag untouched.
	VerifiedHeader string `toml:"verified_header"`

	// RateLimit is requests per RateLimitWindow per user. 0 disables it.
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "skintrend",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			StreamMaxLen: 10000,
			KeyPrefix:    "skintrend",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "skintrend-history",
			ForcePathStyle: true,
		},
		Reference: ReferenceConfig{
			BaseURL:      "https://api.skinport.com",
			AppID:        730,
			Currency:     "USD",
			UserAgent:    "SkinTrend/1.0",
			SyncInterval: duration{10 * time.Minute},
			FetchTimeout: duration{30 * time.Second},
		},
		Market: MarketConfig{
			TickInterval:  duration{5 * time.Second},
			SpreadFactor:  0.02,
			VolatilityPct: 0.2,
			MoversLimit:   50,
			CatalogLimit:  100,
			MirrorQuotes:  true,
		},
		Snapshot: SnapshotConfig{
			Interval:     duration{time.Hour},
			MinPrice:     10,
			BatchSize:    1000,
			ClearOnStart: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Cron:          "0 4 * * *",
			RetentionDays: 30,
		},
		Trading: TradingConfig{
			FeeRate:         0.025,
			MinWithdrawal:   10,
			StartingBalance: 10000,
			HistoryLimit:    20,
			RecentLimit:     50,
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            3000,
			CORSOrigins:     []string{"http://localhost:5173"},
			UserHeader:      "X-User-ID",
			VerifiedHeader:  "X-Email-Verified",
			RateLimit:       60,
			RateLimitWindow: duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"withdrawal_requested"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":   true,
	"market": true,
	"server": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, market, server)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 is only needed by the archiver.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if len(strings.Fields(c.Archive.Cron)) != 5 {
			errs = append(errs, fmt.Sprintf("archive: cron must have 5 fields, got %q", c.Archive.Cron))
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Reference source
	if c.Reference.BaseURL == "" {
		errs = append(errs, "reference: base_url must not be empty")
	}
	if c.Reference.SyncInterval.Duration <= 0 {
		errs = append(errs, "reference: sync_interval must be > 0")
	}
	if c.Reference.FetchTimeout.Duration <= 0 {
		errs = append(errs, "reference: fetch_timeout must be > 0")
	}

	// Market
	if c.Market.TickInterval.Duration <= 0 {
		errs = append(errs, "market: tick_interval must be > 0")
	}
	if c.Market.SpreadFactor < 0 || c.Market.SpreadFactor >= 1 {
		errs = append(errs, fmt.Sprintf("market: spread_factor must be in [0, 1), got %g", c.Market.SpreadFactor))
	}
	if c.Market.VolatilityPct < 0 || c.Market.VolatilityPct >= 50 {
		errs = append(errs, fmt.Sprintf("market: volatility_pct must be in [0, 50), got %g", c.Market.VolatilityPct))
	}

	// Snapshot
	if c.Snapshot.Interval.Duration <= 0 {
		errs = append(errs, "snapshot: interval must be > 0")
	}
	if c.Snapshot.BatchSize < 1 {
		errs = append(errs, "snapshot: batch_size must be >= 1")
	}

	// Trading
	if c.Trading.FeeRate < 0 || c.Trading.FeeRate >= 1 {
		errs = append(errs, fmt.Sprintf("trading: fee_rate must be in [0, 1), got %g", c.Trading.FeeRate))
	}
	if c.Trading.MinWithdrawal < 0 {
		errs = append(errs, "trading: min_withdrawal must be >= 0")
	}
	if c.Trading.StartingBalance < 0 {
		errs = append(errs, "trading: starting_balance must be >= 0")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.UserHeader == "" {
			errs = append(errs, "server: user_header must not be empty")
		}
		if c.Server.RateLimit > 0 && c.Server.RateLimitWindow.Duration <= 0 {
			errs = append(errs, "server: rate_limit_window must be > 0 when rate_limit is set")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
