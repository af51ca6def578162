package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

// PriceService defines what the price handler needs from the service layer.
type PriceService interface {
	Live(assetID string) (domain.LiveQuote, error)
	Movers() []domain.LiveQuote
	Catalog() []string
	Stats() domain.MarketStats
	History(ctx context.Context, assetID string, tf domain.Timeframe) ([]domain.HistoryPoint, error)
}

// PriceHandler serves market data endpoints. None of them touch the ledger.
type PriceHandler struct {
	prices PriceService
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler.
func NewPriceHandler(prices PriceService, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{prices: prices, logger: logger}
}

// Stats returns the catalog size and liquid market cap.
// GET /api/prices/stats
func (h *PriceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.prices.Stats())
}

// Catalog returns tracked asset ids in first-tracked order.
// GET /api/prices/catalog
func (h *PriceHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	ids := h.prices.Catalog()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// Movers returns the most expensive assets.
// GET /api/prices/movers
func (h *PriceHandler) Movers(w http.ResponseWriter, r *http.Request) {
	quotes := h.prices.Movers()
	if quotes == nil {
		quotes = []domain.LiveQuote{}
	}
	writeJSON(w, http.StatusOK, quotes)
}

// Live returns the live quote for one asset.
// GET /api/prices/live?item=...
func (h *PriceHandler) Live(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")
	if item == "" {
		writeError(w, http.StatusBadRequest, "item query parameter required")
		return
	}
	q, err := h.prices.Live(item)
	if err != nil {
		writeServiceError(w, r, h.logger, "live price", err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// History returns chart points for an asset.
// GET /api/prices/history?item=...&timeframe=1H|1D|1W|1M|ALL
func (h *PriceHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	item := q.Get("item")
	if item == "" {
		writeError(w, http.StatusBadRequest, "item query parameter required")
		return
	}
	tf := domain.Timeframe(strings.ToUpper(q.Get("timeframe")))
	points, err := h.prices.History(r.Context(), item, tf)
	if err != nil {
		writeServiceError(w, r, h.logger, "price history", err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}
