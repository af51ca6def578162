package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LiveQuote is the in-memory market state for one tracked asset. BidPrice,
// CurrentPrice and AskPrice always satisfy bid <= current <= ask and are
// replaced together.
type LiveQuote struct {
	AssetID      string          `json:"asset_id"`
	BasePrice    decimal.Decimal `json:"base_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	BidPrice     decimal.Decimal `json:"bid_price"`
	AskPrice     decimal.Decimal `json:"ask_price"`
	Quantity     int64           `json:"quantity"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// SnapshotSourceHourly labels rows written by the periodic persister.
const SnapshotSourceHourly = "Hourly Snapshot"

// PriceSnapshot is one historical price row.
type PriceSnapshot struct {
	ID        int64
	AssetID   string
	Price     decimal.Decimal
	BidPrice  decimal.Decimal
	AskPrice  decimal.Decimal
	Source    string
	CreatedAt time.Time
}

// MarketStats summarises the tracked catalog.
type MarketStats struct {
	TotalAssetsTracked int             `json:"totalAssetsTracked"`
	LiquidMarketCap    decimal.Decimal `json:"liquidMarketCap"`
}

// HistoryPoint is a chart point: unix seconds and price.
type HistoryPoint struct {
	Time  int64           `json:"time"`
	Value decimal.Decimal `json:"value"`
}

// Timeframe selects the look-back window for price history.
type Timeframe string

const (
	Timeframe1H  Timeframe = "1H"
	Timeframe1D  Timeframe = "1D"
	Timeframe1W  Timeframe = "1W"
	Timeframe1M  Timeframe = "1M"
	TimeframeAll Timeframe = "ALL"
)

// Since returns the start of the window ending at now. The zero time means
// no lower bound.
func (tf Timeframe) Since(now time.Time) time.Time {
	switch tf {
	case Timeframe1H:
		return now.Add(-time.Hour)
	case Timeframe1D:
		return now.AddDate(0, 0, -1)
	case Timeframe1W:
		return now.AddDate(0, 0, -7)
	case Timeframe1M:
		return now.AddDate(0, -1, 0)
	default:
		return time.Time{}
	}
}

// ReferenceItem is one catalog entry from the external reference source.
// MinPrice is nil when nobody currently lists the item.
type ReferenceItem struct {
	AssetID  string
	MinPrice *decimal.Decimal
	Quantity int64
}

// ReferenceSource fetches the full reference catalog.
type ReferenceSource interface {
	GetItems(ctx context.Context) ([]ReferenceItem, error)
}
