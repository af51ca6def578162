package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/skintrend/internal/domain"
	"github.com/alanyoungcy/skintrend/internal/metrics"
)

// QuoteReader is the read side of the live market.
type QuoteReader interface {
	Quote(assetID string) (domain.LiveQuote, bool)
}

// TradingConfig holds the settlement economics. FeeRate is taken as given;
// zero means no fee.
type TradingConfig struct {
	FeeRate      decimal.Decimal
	HistoryLimit int
}

// TradingService opens, values and settles positions against the live
// market. Every balance change runs inside one ledger transaction with the
// user row locked.
type TradingService struct {
	quotes    QuoteReader
	users     domain.UserStore
	positions domain.PositionStore
	ledger    domain.Ledger
	notify    notifier
	metrics   *metrics.Metrics
	cfg       TradingConfig
	now       func() time.Time
	logger    *slog.Logger
}

// NewTradingService creates a TradingService. bus, audit and m may be nil.
func NewTradingService(
	quotes QuoteReader,
	users domain.UserStore,
	positions domain.PositionStore,
	ledger domain.Ledger,
	bus domain.SignalBus,
	audit domain.AuditStore,
	m *metrics.Metrics,
	cfg TradingConfig,
	logger *slog.Logger,
) *TradingService {
	if cfg.FeeRate.IsNegative() {
		cfg.FeeRate = decimal.Zero
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	logger = logger.With(slog.String("component", "trading"))
	return &TradingService{
		quotes:    quotes,
		users:     users,
		positions: positions,
		ledger:    ledger,
		notify:    notifier{bus: bus, audit: audit, logger: logger},
		metrics:   m,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}

// OpenPosition debits margin from the user and opens a position at the
// current ask (LONG) or bid (SHORT). Checks run in order: the user exists,
// the margin fits the balance, the asset has a live quote.
func (s *TradingService) OpenPosition(ctx context.Context, userID string, dir domain.Direction, margin decimal.Decimal, assetID string) (domain.Position, error) {
	if !dir.Valid() {
		return domain.Position{}, s.reject("open", domain.ErrInvalidDirection)
	}
	margin = domain.RoundMoney(margin)
	if !margin.IsPositive() {
		return domain.Position{}, s.reject("open", domain.ErrInvalidAmount)
	}

	pos := domain.Position{
		ID:        uuid.NewString(),
		UserID:    userID,
		AssetID:   assetID,
		Direction: dir,
		Margin:    margin,
		Status:    domain.PositionStatusOpen,
		CreatedAt: s.now().UTC(),
	}

	var balance decimal.Decimal
	err := s.ledger.InTx(ctx, func(tx domain.LedgerTx) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		if margin.GreaterThan(user.Balance) {
			return domain.ErrInsufficientFunds
		}
		q, ok := s.quotes.Quote(assetID)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrAssetNotTradable, assetID)
		}
		pos.EntryPrice = EntryPrice(dir, q)
		balance = domain.RoundMoney(user.Balance.Sub(margin))
		if err := tx.SetBalance(ctx, userID, balance); err != nil {
			return err
		}
		return tx.CreatePosition(ctx, pos)
	})
	if err != nil {
		return domain.Position{}, s.reject("open", fmt.Errorf("trading: open position: %w", err))
	}

	s.metrics.IncPositionOpened(string(dir))
	s.notify.publish(ctx, domain.ChannelPositions, domain.EventPositionOpened, pos)
	s.notify.record(ctx, "position.open", map[string]any{
		"position_id": pos.ID,
		"user_id":     userID,
		"asset_id":    assetID,
		"direction":   string(dir),
		"entry_price": pos.EntryPrice.String(),
		"margin":      margin.String(),
		"balance":     balance.String(),
	})
	s.logger.InfoContext(ctx, "position opened",
		slog.String("position_id", pos.ID),
		slog.String("user_id", userID),
		slog.String("asset_id", assetID),
		slog.String("direction", string(dir)),
		slog.String("entry_price", pos.EntryPrice.String()),
	)
	return pos, nil
}

// OpenPositions returns the user's open positions valued at the live closing
// price. An asset without a quote is valued at its entry price.
func (s *TradingService) OpenPositions(ctx context.Context, userID string) ([]domain.PositionView, error) {
	open, err := s.positions.ListOpen(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("trading: list open positions: %w", err)
	}

	views := make([]domain.PositionView, 0, len(open))
	for _, pos := range open {
		closePrice := pos.EntryPrice
		if q, ok := s.quotes.Quote(pos.AssetID); ok {
			closePrice = ClosingPrice(pos.Direction, q)
		}
		st := Settle(pos.Direction, pos.EntryPrice, pos.Margin, closePrice, s.cfg.FeeRate)
		views = append(views, domain.PositionView{
			Position:     pos,
			CurrentPrice: closePrice,
			Quantity:     st.Quantity,
			GrossProfit:  st.Gross,
			Fee:          st.Fee,
			NetProfit:    st.Net,
		})
	}
	return views, nil
}

// ClosePosition settles an open position at the live closing price and
// credits margin plus net profit. Without a live quote it fails with
// domain.ErrQuoteUnavailable and changes nothing.
func (s *TradingService) ClosePosition(ctx context.Context, userID, positionID string) (domain.Position, error) {
	var (
		closed  domain.Position
		settled Settlement
		balance decimal.Decimal
	)
	err := s.ledger.InTx(ctx, func(tx domain.LedgerTx) error {
		pos, err := tx.LockPosition(ctx, positionID, userID)
		if err != nil {
			return err
		}
		if pos.Status != domain.PositionStatusOpen {
			return domain.ErrPositionClosed
		}
		q, ok := s.quotes.Quote(pos.AssetID)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrQuoteUnavailable, pos.AssetID)
		}
		settled = Settle(pos.Direction, pos.EntryPrice, pos.Margin, ClosingPrice(pos.Direction, q), s.cfg.FeeRate)

		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		closedAt := s.now().UTC()
		if err := tx.SettlePosition(ctx, pos.ID, settled.ClosePrice, settled.Net, closedAt); err != nil {
			return err
		}
		balance = domain.RoundMoney(user.Balance.Add(settled.Credit(pos.Margin)))
		if err := tx.SetBalance(ctx, userID, balance); err != nil {
			return err
		}

		closePrice, profit := settled.ClosePrice, settled.Net
		pos.Status = domain.PositionStatusClosed
		pos.ClosePrice = &closePrice
		pos.Profit = &profit
		pos.ClosedAt = &closedAt
		closed = pos
		return nil
	})
	if err != nil {
		return domain.Position{}, s.reject("close", fmt.Errorf("trading: close position %s: %w", positionID, err))
	}

	outcome := "loss"
	if settled.Net.IsPositive() {
		outcome = "win"
	}
	s.metrics.IncPositionClosed(outcome)
	data := s.notify.publish(ctx, domain.ChannelPositions, domain.EventPositionClosed, closed)
	s.notify.appendStream(ctx, domain.StreamSettlements, data)
	s.notify.record(ctx, "position.close", map[string]any{
		"position_id": closed.ID,
		"user_id":     userID,
		"close_price": settled.ClosePrice.String(),
		"gross":       settled.Gross.String(),
		"fee":         settled.Fee.String(),
		"net":         settled.Net.String(),
		"capped":      settled.Capped,
		"balance":     balance.String(),
	})
	s.logger.InfoContext(ctx, "position closed",
		slog.String("position_id", closed.ID),
		slog.String("user_id", userID),
		slog.String("close_price", settled.ClosePrice.String()),
		slog.String("net_profit", settled.Net.String()),
	)
	return closed, nil
}

// History returns the user's most recent closed positions, newest first.
func (s *TradingService) History(ctx context.Context, userID string) ([]domain.Position, error) {
	closed, err := s.positions.ListClosed(ctx, userID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("trading: history: %w", err)
	}
	return closed, nil
}

// Analytics aggregates every closed position of the user. NetWorth is the
// current balance, 0 for an unknown user.
func (s *TradingService) Analytics(ctx context.Context, userID string) (domain.Analytics, error) {
	closed, err := s.positions.ListClosed(ctx, userID, 0)
	if err != nil {
		return domain.Analytics{}, fmt.Errorf("trading: analytics: %w", err)
	}

	out := domain.Analytics{
		TotalProfit: decimal.Zero,
		TotalTrades: len(closed),
		WinRate:     decimal.Zero,
		NetWorth:    decimal.Zero,
	}
	wins := 0
	var best *domain.Position
	var bestProfit decimal.Decimal
	for i := range closed {
		profit := decimal.Zero
		if closed[i].Profit != nil {
			profit = *closed[i].Profit
		}
		out.TotalProfit = out.TotalProfit.Add(profit)
		if profit.IsPositive() {
			wins++
		}
		if best == nil || profit.GreaterThan(bestProfit) {
			best = &closed[i]
			bestProfit = profit
		}
	}
	out.TotalProfit = domain.RoundMoney(out.TotalProfit)
	out.BestTrade = best
	if len(closed) > 0 {
		out.WinRate = decimal.NewFromInt(int64(wins)).
			Mul(decimal.NewFromInt(100)).
			DivRound(decimal.NewFromInt(int64(len(closed))), domain.MoneyPlaces)
	}

	user, err := s.users.GetByID(ctx, userID)
	switch {
	case err == nil:
		out.NetWorth = user.Balance
	case !errors.Is(err, domain.ErrUserNotFound):
		return domain.Analytics{}, fmt.Errorf("trading: analytics balance: %w", err)
	}
	return out, nil
}

// reject counts a failed operation by reason and returns err unchanged.
func (s *TradingService) reject(op string, err error) error {
	s.metrics.IncSettlementError(op, reasonOf(err))
	return err
}

func reasonOf(err error) string {
	for _, c := range []struct {
		target error
		reason string
	}{
		{domain.ErrInvalidDirection, "invalid_direction"},
		{domain.ErrInvalidAmount, "invalid_amount"},
		{domain.ErrBelowMinimum, "below_minimum"},
		{domain.ErrAssetNotTradable, "asset_not_tradable"},
		{domain.ErrUserNotFound, "user_not_found"},
		{domain.ErrPositionNotFound, "position_not_found"},
		{domain.ErrTransactionNotFound, "transaction_not_found"},
		{domain.ErrInsufficientFunds, "insufficient_funds"},
		{domain.ErrEmailNotVerified, "email_not_verified"},
		{domain.ErrPositionClosed, "position_closed"},
		{domain.ErrAlreadyProcessed, "already_processed"},
		{domain.ErrQuoteUnavailable, "quote_unavailable"},
	} {
		if errors.Is(err, c.target) {
			return c.reason
		}
	}
	return "internal"
}
