package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/skintrend/internal/domain"
	"github.com/alanyoungcy/skintrend/internal/market"
	"github.com/alanyoungcy/skintrend/internal/metrics"
)

// TickPayload is published on the prices channel after every tick pass.
type TickPayload struct {
	Assets int                `json:"assets"`
	Movers []domain.LiveQuote `json:"movers"`
}

// TickGenerator drives the synthetic price process.
type TickGenerator struct {
	store       *market.Store
	volatility  market.VolatilityFunc
	bus         domain.SignalBus
	metrics     *metrics.Metrics
	moversLimit int
	logger      *slog.Logger
}

// NewTickGenerator creates a TickGenerator. A nil volatility uses the store's
// default; bus and m may be nil. moversLimit caps the movers attached to each
// published tick.
func NewTickGenerator(
	store *market.Store,
	volatility market.VolatilityFunc,
	bus domain.SignalBus,
	m *metrics.Metrics,
	moversLimit int,
	logger *slog.Logger,
) *TickGenerator {
	return &TickGenerator{
		store:       store,
		volatility:  volatility,
		bus:         bus,
		metrics:     m,
		moversLimit: moversLimit,
		logger:      logger.With(slog.String("component", "tick_generator")),
	}
}

// Tick runs one pass over every asset. A panic in the pass is recovered and
// returned as an error.
func (g *TickGenerator) Tick(ctx context.Context) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			g.metrics.IncTickPanic()
			err = fmt.Errorf("tick pass panicked: %v", r)
		}
	}()

	n = g.store.TickAll(g.volatility)
	g.metrics.ObserveTick(n)
	if n > 0 {
		publishEvent(ctx, g.bus, domain.ChannelPrices, domain.EventMarketTick, TickPayload{
			Assets: n,
			Movers: g.store.Movers(g.moversLimit),
		}, g.logger)
	}
	return n, nil
}

// RunLoop ticks on every interval until ctx is cancelled.
func (g *TickGenerator) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("tick generator loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := g.Tick(ctx); err != nil {
				g.logger.Error("tick failed", slog.String("error", err.Error()))
			}
		}
	}
}
