package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a leveraged position.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// PositionStatus tracks whether a position is open or closed. CLOSED is
// terminal.
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "OPEN"
	PositionStatusClosed PositionStatus = "CLOSED"
)

// Position is a user's directional bet on one asset.
type Position struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	AssetID    string           `json:"asset_id"`
	Direction  Direction        `json:"direction"`
	EntryPrice decimal.Decimal  `json:"entry_price"`
	Margin     decimal.Decimal  `json:"margin"`
	Status     PositionStatus   `json:"status"`
	ClosePrice *decimal.Decimal `json:"close_price,omitempty"`
	Profit     *decimal.Decimal `json:"profit,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	ClosedAt   *time.Time       `json:"closed_at,omitempty"`
}

// PositionView is an open position valued at the live closing price.
type PositionView struct {
	Position
	CurrentPrice decimal.Decimal `json:"current_price"`
	Quantity     decimal.Decimal `json:"quantity"`
	GrossProfit  decimal.Decimal `json:"gross_profit"`
	Fee          decimal.Decimal `json:"fee"`
	NetProfit    decimal.Decimal `json:"net_profit"`
}

// Analytics aggregates a user's closed trades.
type Analytics struct {
	TotalProfit decimal.Decimal `json:"totalProfit"`
	TotalTrades int             `json:"totalTrades"`
	WinRate     decimal.Decimal `json:"winRate"`
	BestTrade   *Position       `json:"bestTrade"`
	NetWorth    decimal.Decimal `json:"netWorth"`
}
