package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SKINTREND_* environment variable overrides, and
// returns the final Config. A missing file is not an error; the defaults and
// environment are used. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SKINTREND_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SKINTREND_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "SKINTREND_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SKINTREND_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SKINTREND_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SKINTREND_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SKINTREND_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SKINTREND_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SKINTREND_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SKINTREND_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SKINTREND_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SKINTREND_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SKINTREND_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SKINTREND_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SKINTREND_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SKINTREND_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SKINTREND_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.StreamMaxLen, "SKINTREND_REDIS_STREAM_MAX_LEN")
	setStr(&cfg.Redis.KeyPrefix, "SKINTREND_REDIS_KEY_PREFIX")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SKINTREND_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SKINTREND_S3_REGION")
	setStr(&cfg.S3.Bucket, "SKINTREND_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SKINTREND_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SKINTREND_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SKINTREND_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SKINTREND_S3_FORCE_PATH_STYLE")

	// ── Reference ──
	setStr(&cfg.Reference.BaseURL, "SKINTREND_REFERENCE_BASE_URL")
	setInt(&cfg.Reference.AppID, "SKINTREND_REFERENCE_APP_ID")
	setStr(&cfg.Reference.Currency, "SKINTREND_REFERENCE_CURRENCY")
	setStr(&cfg.Reference.UserAgent, "SKINTREND_REFERENCE_USER_AGENT")
	setDuration(&cfg.Reference.SyncInterval, "SKINTREND_REFERENCE_SYNC_INTERVAL")
	setDuration(&cfg.Reference.FetchTimeout, "SKINTREND_REFERENCE_FETCH_TIMEOUT")

	// ── Market ──
	setDuration(&cfg.Market.TickInterval, "SKINTREND_MARKET_TICK_INTERVAL")
	setFloat64(&cfg.Market.SpreadFactor, "SKINTREND_MARKET_SPREAD_FACTOR")
	setFloat64(&cfg.Market.VolatilityPct, "SKINTREND_MARKET_VOLATILITY_PCT")
	setInt(&cfg.Market.MoversLimit, "SKINTREND_MARKET_MOVERS_LIMIT")
	setInt(&cfg.Market.CatalogLimit, "SKINTREND_MARKET_CATALOG_LIMIT")
	setBool(&cfg.Market.MirrorQuotes, "SKINTREND_MARKET_MIRROR_QUOTES")

	// ── Snapshot ──
	setDuration(&cfg.Snapshot.Interval, "SKINTREND_SNAPSHOT_INTERVAL")
	setFloat64(&cfg.Snapshot.MinPrice, "SKINTREND_SNAPSHOT_MIN_PRICE")
	setInt(&cfg.Snapshot.BatchSize, "SKINTREND_SNAPSHOT_BATCH_SIZE")
	setBool(&cfg.Snapshot.ClearOnStart, "SKINTREND_SNAPSHOT_CLEAR_ON_START")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "SKINTREND_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Cron, "SKINTREND_ARCHIVE_CRON")
	setInt(&cfg.Archive.RetentionDays, "SKINTREND_ARCHIVE_RETENTION_DAYS")

	// ── Trading ──
	setFloat64(&cfg.Trading.FeeRate, "SKINTREND_TRADING_FEE_RATE")
	setFloat64(&cfg.Trading.MinWithdrawal, "SKINTREND_TRADING_MIN_WITHDRAWAL")
	setFloat64(&cfg.Trading.StartingBalance, "SKINTREND_TRADING_STARTING_BALANCE")
	setInt(&cfg.Trading.HistoryLimit, "SKINTREND_TRADING_HISTORY_LIMIT")
	setInt(&cfg.Trading.RecentLimit, "SKINTREND_TRADING_RECENT_LIMIT")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SKINTREND_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SKINTREND_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SKINTREND_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.AdminAPIKey, "SKINTREND_SERVER_ADMIN_API_KEY")
	setStr(&cfg.Server.UserHeader, "SKINTREND_SERVER_USER_HEADER")
	setStr(&cfg.Server.VerifiedHeader, "SKINTREND_SERVER_VERIFIED_HEADER")
	setInt(&cfg.Server.RateLimit, "SKINTREND_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "SKINTREND_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SKINTREND_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SKINTREND_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SKINTREND_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SKINTREND_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SKINTREND_MODE")
	setStr(&cfg.LogLevel, "SKINTREND_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
