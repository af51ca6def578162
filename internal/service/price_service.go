package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

// MarketReader is the part of the live market the price API reads.
type MarketReader interface {
	QuoteReader
	Movers(n int) []domain.LiveQuote
	Catalog(n int) []string
	Stats() domain.MarketStats
}

// PriceService serves live prices from memory and chart history from the
// snapshot store.
type PriceService struct {
	market       MarketReader
	snapshots    domain.SnapshotStore
	moversLimit  int
	catalogLimit int
	now          func() time.Time
}

// NewPriceService creates a PriceService. Non-positive limits default to 50
// movers and 100 catalog entries.
func NewPriceService(market MarketReader, snapshots domain.SnapshotStore, moversLimit, catalogLimit int) *PriceService {
	if moversLimit <= 0 {
		moversLimit = 50
	}
	if catalogLimit <= 0 {
		catalogLimit = 100
	}
	return &PriceService{
		market:       market,
		snapshots:    snapshots,
		moversLimit:  moversLimit,
		catalogLimit: catalogLimit,
		now:          time.Now,
	}
}

// Live returns the current quote for one asset.
func (s *PriceService) Live(assetID string) (domain.LiveQuote, error) {
	q, ok := s.market.Quote(assetID)
	if !ok {
		return domain.LiveQuote{}, fmt.Errorf("price: live %q: %w", assetID, domain.ErrNotFound)
	}
	return q, nil
}

// Movers returns the most expensive assets, highest first.
func (s *PriceService) Movers() []domain.LiveQuote {
	return s.market.Movers(s.moversLimit)
}

// Catalog returns asset ids in the order they were first tracked.
func (s *PriceService) Catalog() []string {
	return s.market.Catalog(s.catalogLimit)
}

// Stats returns the catalog size and liquid market cap.
func (s *PriceService) Stats() domain.MarketStats {
	return s.market.Stats()
}

// History returns chart points for assetID within timeframe, oldest first.
// An empty or unknown timeframe returns the full history.
func (s *PriceService) History(ctx context.Context, assetID string, tf domain.Timeframe) ([]domain.HistoryPoint, error) {
	snaps, err := s.snapshots.ListByAsset(ctx, assetID, tf.Since(s.now().UTC()))
	if err != nil {
		return nil, fmt.Errorf("price: history %q: %w", assetID, err)
	}
	points := make([]domain.HistoryPoint, len(snaps))
	for i, sn := range snaps {
		points[i] = domain.HistoryPoint{Time: sn.CreatedAt.Unix(), Value: sn.Price}
	}
	return points, nil
}
