package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/skintrend/internal/domain"
	"github.com/alanyoungcy/skintrend/internal/server/middleware"
	"github.com/alanyoungcy/skintrend/internal/service"
)

// TradingService defines the position operations the trading handler needs.
type TradingService interface {
	OpenPosition(ctx context.Context, userID string, dir domain.Direction, margin decimal.Decimal, assetID string) (domain.Position, error)
	OpenPositions(ctx context.Context, userID string) ([]domain.PositionView, error)
	ClosePosition(ctx context.Context, userID, positionID string) (domain.Position, error)
	History(ctx context.Context, userID string) ([]domain.Position, error)
	Analytics(ctx context.Context, userID string) (domain.Analytics, error)
}

// WalletService defines the balance operations the trading handler needs.
type WalletService interface {
	EnsureUser(ctx context.Context, userID, username string) (domain.User, error)
	SyncEmailVerified(ctx context.Context, userID string, verified bool) error
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	Deposit(ctx context.Context, userID string, amount decimal.Decimal) (service.WalletResult, error)
	Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (service.WalletResult, error)
	Transactions(ctx context.Context, userID string) ([]domain.Transaction, error)
}

// TradingHandler serves the per-user trading and wallet endpoints. Every
// route requires the caller's identity.
type TradingHandler struct {
	trading TradingService
	wallet  WalletService
	logger  *slog.Logger
}

// NewTradingHandler creates a TradingHandler.
func NewTradingHandler(trading TradingService, wallet WalletService, logger *slog.Logger) *TradingHandler {
	return &TradingHandler{trading: trading, wallet: wallet, logger: logger}
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type orderRequest struct {
	Type      domain.Direction `json:"type"`
	Amount    decimal.Decimal  `json:"amount"`
	AssetName string           `json:"assetName"`
}

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

// Balance returns the caller's balance.
// GET /api/trading/balance
func (h *TradingHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	bal, err := h.wallet.Balance(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.logger, "balance", err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Balance: bal})
}

// Deposit credits the caller's balance.
// POST /api/trading/deposit {"amount": 100}
func (h *TradingHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.wallet.Deposit(r.Context(), userID, req.Amount)
	if err != nil {
		writeServiceError(w, r, h.logger, "deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Withdraw requests a withdrawal for admin review.
// POST /api/trading/withdraw {"amount": 50}
func (h *TradingHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.syncVerification(r, userID); err != nil {
		writeServiceError(w, r, h.logger, "withdraw", err)
		return
	}
	res, err := h.wallet.Withdraw(r.Context(), userID, req.Amount)
	if err != nil {
		writeServiceError(w, r, h.logger, "withdraw", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Transactions lists the caller's deposits and withdrawals.
// GET /api/trading/transactions
func (h *TradingHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	txns, err := h.wallet.Transactions(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.logger, "list transactions", err)
		return
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

// Order opens a position.
// POST /api/trading/order {"type":"LONG","amount":100,"assetName":"..."}
func (h *TradingHandler) Order(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req orderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.AssetName == "" {
		writeError(w, http.StatusBadRequest, "assetName is required")
		return
	}
	pos, err := h.trading.OpenPosition(r.Context(), userID, req.Type, req.Amount, req.AssetName)
	if err != nil {
		writeServiceError(w, r, h.logger, "open position", err)
		return
	}
	writeJSON(w, http.StatusCreated, pos)
}

// Positions lists the caller's open positions at live value.
// GET /api/trading/positions
func (h *TradingHandler) Positions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	views, err := h.trading.OpenPositions(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.logger, "list positions", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// History lists the caller's most recent closed positions.
// GET /api/trading/history
func (h *TradingHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	closed, err := h.trading.History(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.logger, "trade history", err)
		return
	}
	if closed == nil {
		closed = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, closed)
}

// Close settles one of the caller's positions.
// POST /api/trading/close/{id}
func (h *TradingHandler) Close(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing position id")
		return
	}
	pos, err := h.trading.ClosePosition(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, r, h.logger, "close position", err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// Analytics summarises the caller's closed trades.
// GET /api/trading/analytics
func (h *TradingHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	a, err := h.trading.Analytics(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.logger, "analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Register creates the caller's account on first sight. Other routes assume
// the account exists; it is idempotent.
// POST /api/trading/register {"username":"..."}
func (h *TradingHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Username string `json:"username"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	u, err := h.wallet.EnsureUser(r.Context(), userID, req.Username)
	if err != nil {
		writeServiceError(w, r, h.logger, "register", err)
		return
	}
	if v, ok := middleware.EmailVerified(r.Context()); ok && v != u.EmailVerified {
		if err := h.wallet.SyncEmailVerified(r.Context(), userID, v); err != nil {
			writeServiceError(w, r, h.logger, "register", err)
			return
		}
		u.EmailVerified = v
	}
	writeJSON(w, http.StatusOK, u)
}

// syncVerification stores the gateway's verification flag, if it sent one.
// An account that does not exist yet is left for the service call to report.
func (h *TradingHandler) syncVerification(r *http.Request, userID string) error {
	v, ok := middleware.EmailVerified(r.Context())
	if !ok {
		return nil
	}
	err := h.wallet.SyncEmailVerified(r.Context(), userID, v)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	return err
}
