package domain

import "time"

// Bus channels and stream names.
const (
	ChannelPrices    = "prices"
	ChannelPositions = "positions"
	ChannelLedger    = "ledger"

	StreamSettlements = "stream:settlements"
)

// Event types carried in Event.Type.
const (
	EventMarketTick     = "market_tick"
	EventMarketSync     = "market_sync"
	EventPositionOpened = "position_opened"
	EventPositionClosed = "position_closed"
	EventDeposit        = "deposit"
	EventWithdrawal     = "withdrawal_requested"
	EventWithdrawalDone = "withdrawal_processed"
)

// Event is the JSON envelope published on the signal bus and relayed to
// WebSocket clients.
type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}
