package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/skintrend/internal/domain"
	"github.com/alanyoungcy/skintrend/internal/service"
)

// AdminService defines what the admin handler needs from the service layer.
type AdminService interface {
	Stats(ctx context.Context) (domain.AdminStats, error)
	ApproveWithdrawal(ctx context.Context, txnID string) (service.AdminResult, error)
	RejectWithdrawal(ctx context.Context, txnID string) (service.AdminResult, error)
	AuditLog(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error)
}

// AdminHandler serves the administrator endpoints.
type AdminHandler struct {
	admin  AdminService
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(admin AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

// Stats returns platform totals and recent transactions.
// GET /api/trading/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "admin stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Approve completes a pending withdrawal.
// POST /api/trading/admin/withdraw/{id}/approve
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "approve withdrawal", h.admin.ApproveWithdrawal)
}

// Reject refunds a pending withdrawal.
// POST /api/trading/admin/withdraw/{id}/reject
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "reject withdrawal", h.admin.RejectWithdrawal)
}

func (h *AdminHandler) review(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, string) (service.AdminResult, error)) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transaction id")
		return
	}
	res, err := fn(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Audit lists audit entries.
// GET /api/trading/admin/audit?event=wallet.&user=<id>&since=<RFC3339>&limit=50
func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.AuditFilter{
		EventPrefix: q.Get("event"),
		UserID:      q.Get("user"),
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = since
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	entries, err := h.admin.AuditLog(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.logger, "admin audit", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
