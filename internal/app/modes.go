package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/skintrend/internal/metrics"
	"github.com/alanyoungcy/skintrend/internal/notify"
	"github.com/alanyoungcy/skintrend/internal/pipeline"
	"github.com/alanyoungcy/skintrend/internal/server"
	"github.com/alanyoungcy/skintrend/internal/server/handler"
	"github.com/alanyoungcy/skintrend/internal/server/ws"
	"github.com/alanyoungcy/skintrend/internal/service"
)

// quoteMirrorTTL expires the Redis copy of the market if no sync refreshes it.
const quoteMirrorTTL = 24 * time.Hour

// FullMode runs the market pipelines, the archiver when enabled, operator
// alerts and the complete HTTP API.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	return a.run(ctx, deps, true, true)
}

// MarketMode runs the market pipelines, archiver and operator alerts with a
// read-only HTTP surface: health, prices, the WebSocket feed and metrics.
func (a *App) MarketMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting market mode")
	return a.run(ctx, deps, false, true)
}

// ServerMode runs the API with its own market pipelines but never archives or
// sends operator alerts. Pair it with a market-mode replica that owns both.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	deps.Blob, deps.Archiver = nil, nil
	return a.run(ctx, deps, true, false)
}

// run starts the shared goroutines. trading mounts the user and admin routes;
// alerts starts the operator alert relay.
func (a *App) run(ctx context.Context, deps *Dependencies, trading, alerts bool) error {
	g, ctx := errgroup.WithContext(ctx)

	orch := a.buildPipelines(ctx, deps)
	g.Go(func() error {
		return orch.Run(ctx)
	})

	if alerts {
		if relay := a.buildAlertRelay(deps); relay != nil {
			g.Go(func() error {
				return relay.Run(ctx)
			})
		}
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, trading)
	}

	return g.Wait()
}

// buildPipelines constructs the orchestrator and, when configured, clears
// the previous run's price history.
func (a *App) buildPipelines(ctx context.Context, deps *Dependencies) *pipeline.Orchestrator {
	cfg := a.cfg

	refSync := pipeline.NewReferenceSync(
		deps.Reference, deps.Market, deps.QuoteMirror, deps.SignalBus, deps.Metrics,
		cfg.Reference.FetchTimeout.Duration, a.logger,
	)
	ticker := pipeline.NewTickGenerator(deps.Market, nil, deps.SignalBus, deps.Metrics, cfg.Market.MoversLimit, a.logger)
	persister := pipeline.NewSnapshotPersister(deps.Market, deps.Snapshots, deps.LockManager, deps.Metrics,
		pipeline.SnapshotConfig{
			MinPrice:  decimal.NewFromFloat(cfg.Snapshot.MinPrice),
			BatchSize: cfg.Snapshot.BatchSize,
			LockTTL:   cfg.Snapshot.Interval.Duration,
		}, a.logger)

	if cfg.Snapshot.ClearOnStart {
		if err := persister.ClearHistory(ctx); err != nil {
			a.logger.WarnContext(ctx, "app: clearing price history failed",
				slog.String("error", err.Error()),
			)
		}
	}

	var archiver *pipeline.Archiver
	if deps.Archiver != nil {
		archiver = pipeline.NewArchiver(deps.Archiver, cfg.Archive.RetentionDays, deps.Metrics, a.logger)
	}

	return pipeline.NewOrchestrator(refSync, ticker, persister, archiver, pipeline.Intervals{
		Sync:        cfg.Reference.SyncInterval.Duration,
		Tick:        cfg.Market.TickInterval.Duration,
		Snapshot:    cfg.Snapshot.Interval.Duration,
		ArchiveCron: cfg.Archive.Cron,
	}, a.logger)
}

// buildAlertRelay returns nil when no alert channel is configured.
func (a *App) buildAlertRelay(deps *Dependencies) *notify.Relay {
	cfg := a.cfg.Notify

	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender("", cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	if len(senders) == 0 {
		return nil
	}
	return notify.NewRelay(deps.SignalBus, notify.NewNotifier(senders, cfg.Events, a.logger), a.logger)
}

// startHTTPServer adds the HTTP server and WebSocket hub to g. trading
// mounts the per-user and admin routes.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, trading bool) {
	cfg := a.cfg

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:           cfg.Mode,
		StartedAt:      time.Now().UTC(),
		Stats:          deps.Market.Stats,
		AllowedOrigins: cfg.Server.CORSOrigins,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	prices := service.NewPriceService(deps.Market, deps.Snapshots, cfg.Market.MoversLimit, cfg.Market.CatalogLimit)
	checks := map[string]handler.Pinger{
		"postgres": deps.Postgres,
		"redis":    deps.Redis,
	}
	if deps.Blob != nil {
		checks["s3"] = deps.Blob
	}

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(checks, a.logger),
		Prices:  handler.NewPriceHandler(prices, a.logger),
		Hub:     hub,
		Metrics: metrics.Handler(deps.Registry),
	}

	if trading {
		tradingSvc := service.NewTradingService(
			deps.Market, deps.Users, deps.Positions, deps.Ledger,
			deps.SignalBus, deps.AuditStore, deps.Metrics,
			service.TradingConfig{
				FeeRate:      decimal.NewFromFloat(cfg.Trading.FeeRate),
				HistoryLimit: cfg.Trading.HistoryLimit,
			}, a.logger)
		walletSvc := service.NewWalletService(
			deps.Users, deps.Transactions, deps.Ledger,
			deps.SignalBus, deps.AuditStore, deps.Metrics,
			service.WalletConfig{
				MinWithdrawal:   decimal.NewFromFloat(cfg.Trading.MinWithdrawal),
				StartingBalance: decimal.NewFromFloat(cfg.Trading.StartingBalance),
				HistoryLimit:    cfg.Trading.HistoryLimit,
			}, a.logger)
		adminSvc := service.NewAdminService(
			deps.Users, deps.Transactions, deps.Ledger,
			deps.SignalBus, deps.AuditStore, deps.Metrics,
			cfg.Trading.RecentLimit, a.logger)

		handlers.Trading = handler.NewTradingHandler(tradingSvc, walletSvc, a.logger)
		handlers.Admin = handler.NewAdminHandler(adminSvc, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:            cfg.Server.Port,
		CORSOrigins:     cfg.Server.CORSOrigins,
		AdminAPIKey:     cfg.Server.AdminAPIKey,
		UserHeader:      cfg.Server.UserHeader,
		VerifiedHeader:  cfg.Server.VerifiedHeader,
		RateLimit:       cfg.Server.RateLimit,
		RateLimitWindow: cfg.Server.RateLimitWindow.Duration,
	}, handlers, deps.RateLimiter, deps.Metrics, a.logger)

	g.Go(func() error {
		return srv.Run(ctx)
	})
}
