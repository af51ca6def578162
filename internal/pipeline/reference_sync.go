package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/skintrend/internal/domain"
	"github.com/alanyoungcy/skintrend/internal/market"
	"github.com/alanyoungcy/skintrend/internal/metrics"
)

// SyncResult summarises one reference sync.
type SyncResult struct {
	Loaded          int             `json:"loaded"`
	Skipped         int             `json:"skipped"`
	LiquidMarketCap decimal.Decimal `json:"liquid_market_cap"`
}

// ReferenceSync refreshes base prices in the market store from the external
// reference catalog.
type ReferenceSync struct {
	source  domain.ReferenceSource
	store   *market.Store
	mirror  domain.QuoteMirror
	bus     domain.SignalBus
	metrics *metrics.Metrics
	timeout time.Duration
	logger  *slog.Logger
}

// NewReferenceSync creates a ReferenceSync. mirror, bus and m may be nil.
// timeout bounds each fetch; zero means no extra bound beyond the client's.
func NewReferenceSync(
	source domain.ReferenceSource,
	store *market.Store,
	mirror domain.QuoteMirror,
	bus domain.SignalBus,
	m *metrics.Metrics,
	timeout time.Duration,
	logger *slog.Logger,
) *ReferenceSync {
	return &ReferenceSync{
		source:  source,
		store:   store,
		mirror:  mirror,
		bus:     bus,
		metrics: m,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "reference_sync")),
	}
}

// WarmStart loads mirrored quotes into the store for assets it does not know
// yet. It returns how many were restored.
func (s *ReferenceSync) WarmStart(ctx context.Context) int {
	if s.mirror == nil {
		return 0
	}
	quotes, err := s.mirror.LoadAll(ctx)
	if err != nil {
		s.logger.Warn("reference sync: load quote mirror", slog.String("error", err.Error()))
		return 0
	}
	n := s.store.Restore(quotes)
	if n > 0 {
		s.logger.Info("reference sync: restored quotes from mirror", slog.Int("count", n))
	}
	return n
}

// Run performs one sync. Items without a positive min price and quantity are
// skipped. On a fetch error the store is left untouched.
func (s *ReferenceSync) Run(ctx context.Context) (SyncResult, error) {
	start := time.Now()
	fetchCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	items, err := s.source.GetItems(fetchCtx)
	if err != nil {
		s.metrics.ObserveSync("error", time.Since(start), 0, 0)
		return SyncResult{}, fmt.Errorf("fetching reference catalog: %w", err)
	}

	res := SyncResult{LiquidMarketCap: decimal.Zero}
	for _, item := range items {
		if item.MinPrice == nil || !item.MinPrice.IsPositive() || item.Quantity <= 0 {
			res.Skipped++
			continue
		}
		if !s.store.UpsertBase(item.AssetID, *item.MinPrice, item.Quantity) {
			res.Skipped++
			continue
		}
		res.LiquidMarketCap = res.LiquidMarketCap.Add(item.MinPrice.Mul(decimal.NewFromInt(item.Quantity)))
		res.Loaded++
	}
	res.LiquidMarketCap = domain.RoundMoney(res.LiquidMarketCap)
	s.store.SetLiquidity(res.LiquidMarketCap)

	cap64, _ := res.LiquidMarketCap.Float64()
	s.metrics.ObserveSync("ok", time.Since(start), s.store.Len(), cap64)

	if s.mirror != nil {
		if err := s.mirror.SaveAll(ctx, s.store.All()); err != nil {
			s.logger.Warn("reference sync: save quote mirror", slog.String("error", err.Error()))
		}
	}
	publishEvent(ctx, s.bus, domain.ChannelPrices, domain.EventMarketSync, res, s.logger)

	s.logger.Info("reference sync complete",
		slog.Int("loaded", res.Loaded),
		slog.Int("skipped", res.Skipped),
		slog.String("liquid_market_cap", res.LiquidMarketCap.StringFixed(domain.MoneyPlaces)),
		slog.Duration("took", time.Since(start)),
	)
	return res, nil
}

// RunLoop syncs immediately and then on every interval until ctx is
// cancelled. Sync errors are logged, never returned.
func (s *ReferenceSync) RunLoop(ctx context.Context, interval time.Duration) error {
	if _, err := s.Run(ctx); err != nil {
		s.logger.Error("reference sync failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reference sync loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				s.logger.Error("reference sync failed", slog.String("error", err.Error()))
			}
		}
	}
}
