package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"

	s3blob "github.com/alanyoungcy/skintrend/internal/blob/s3"
	"github.com/alanyoungcy/skintrend/internal/cache/redis"
	"github.com/alanyoungcy/skintrend/internal/config"
	"github.com/alanyoungcy/skintrend/internal/domain"
	"github.com/alanyoungcy/skintrend/internal/market"
	"github.com/alanyoungcy/skintrend/internal/metrics"
	"github.com/alanyoungcy/skintrend/internal/platform/skinport"
	"github.com/alanyoungcy/skintrend/internal/store/postgres"
)

// Dependencies bundles every concrete dependency the application modes need.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Postgres *postgres.Client
	Redis    *redis.Client

	// Stores
	Users        *postgres.UserStore
	Positions    *postgres.PositionStore
	Transactions *postgres.TransactionStore
	Ledger       *postgres.Ledger
	Snapshots    *postgres.SnapshotStore
	AuditStore   *postgres.AuditStore

	// Caches and coordination
	QuoteMirror domain.QuoteMirror
	SignalBus   domain.SignalBus
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter

	// Blob and Archiver are nil unless archiving is enabled for the mode.
	Blob     *s3blob.Client
	Archiver domain.Archiver

	Market    *market.Store
	Reference domain.ReferenceSource

	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
}

// needsArchiver reports whether mode runs the cold-storage archiver.
func needsArchiver(cfg *config.Config) bool {
	mode := strings.ToLower(cfg.Mode)
	return cfg.Archive.Enabled && (mode == "full" || mode == "market")
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Postgres = pgClient
	deps.Users = postgres.NewUserStore(pool)
	deps.Positions = postgres.NewPositionStore(pool)
	deps.Transactions = postgres.NewTransactionStore(pool)
	deps.Ledger = postgres.NewLedger(pool)
	deps.Snapshots = postgres.NewSnapshotStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
		KeyPrefix:  cfg.Redis.KeyPrefix,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Redis = redisClient
	deps.SignalBus = redis.NewSignalBus(redisClient, int64(cfg.Redis.StreamMaxLen))
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	if cfg.Market.MirrorQuotes {
		deps.QuoteMirror = redis.NewQuoteMirror(redisClient, quoteMirrorTTL)
	}

	// --- S3 (only when the archiver runs) ---
	if needsArchiver(cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Blob = s3Client
		deps.Archiver = s3blob.NewSnapshotArchiver(s3blob.NewWriter(s3Client), deps.Snapshots, deps.AuditStore)
	}

	// --- Market ---
	deps.Market = market.NewStore(market.Config{
		SpreadFactor: decimal.NewFromFloat(cfg.Market.SpreadFactor),
		Volatility:   market.UniformVolatility(cfg.Market.VolatilityPct),
	})
	deps.Reference = skinport.NewClient(skinport.Config{
		BaseURL:   cfg.Reference.BaseURL,
		AppID:     cfg.Reference.AppID,
		Currency:  cfg.Reference.Currency,
		UserAgent: cfg.Reference.UserAgent,
		Timeout:   cfg.Reference.FetchTimeout.Duration,
	})

	deps.Registry = prometheus.NewRegistry()
	deps.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps.Metrics = metrics.New(deps.Registry)

	logger.InfoContext(ctx, "wire: dependencies ready",
		slog.Bool("quote_mirror", deps.QuoteMirror != nil),
		slog.Bool("archiver", deps.Archiver != nil),
	)
	return deps, cleanup, nil
}
