// Package server is the thin HTTP and WebSocket surface over the SkinTrend
// services.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/skintrend/internal/domain"
	"github.com/alanyoungcy/skintrend/internal/metrics"
	"github.com/alanyoungcy/skintrend/internal/server/handler"
	"github.com/alanyoungcy/skintrend/internal/server/middleware"
	"github.com/alanyoungcy/skintrend/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// AdminAPIKey guards the admin routes. Empty turns them into 403s.
	AdminAPIKey string
	// UserHeader carries the caller's identity from the gateway.
	UserHeader string
	// VerifiedHeader carries the gateway's email verification flag.
	VerifiedHeader string
	// RateLimit is requests per RateLimitWindow per caller on trading routes.
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers. Trading and
// Admin may be nil, in which case their routes are not mounted.
type Handlers struct {
	Health  *handler.HealthHandler
	Prices  *handler.PriceHandler
	Trading *handler.TradingHandler
	Admin   *handler.AdminHandler
	Hub     *ws.Hub
	Metrics http.Handler
}

// Server is the HTTP + WebSocket API server for the venue.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// limiter may be nil to disable rate limiting.
func NewServer(cfg Config, h Handlers, limiter domain.RateLimiter, m *metrics.Metrics, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           NewHandler(cfg, h, limiter, m, logger),
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed handler with its middleware chain.
func NewHandler(cfg Config, h Handlers, limiter domain.RateLimiter, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	if h.Health != nil {
		mux.HandleFunc("GET /api/health", h.Health.HealthCheck)
	}

	if h.Prices != nil {
		mux.HandleFunc("GET /api/prices/stats", h.Prices.Stats)
		mux.HandleFunc("GET /api/prices/catalog", h.Prices.Catalog)
		mux.HandleFunc("GET /api/prices/movers", h.Prices.Movers)
		mux.HandleFunc("GET /api/prices/live", h.Prices.Live)
		mux.HandleFunc("GET /api/prices/history", h.Prices.History)
	}

	if h.Trading != nil {
		limited := middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow, logger)
		route := func(pattern string, fn http.HandlerFunc) {
			mux.Handle(pattern, limited(fn))
		}
		route("POST /api/trading/register", h.Trading.Register)
		route("GET /api/trading/balance", h.Trading.Balance)
		route("POST /api/trading/deposit", h.Trading.Deposit)
		route("POST /api/trading/withdraw", h.Trading.Withdraw)
		route("GET /api/trading/transactions", h.Trading.Transactions)
		route("POST /api/trading/order", h.Trading.Order)
		route("GET /api/trading/positions", h.Trading.Positions)
		route("GET /api/trading/history", h.Trading.History)
		route("POST /api/trading/close/{id}", h.Trading.Close)
		route("GET /api/trading/analytics", h.Trading.Analytics)
	}

	if h.Admin != nil {
		admin := middleware.Auth(cfg.AdminAPIKey)
		mux.Handle("GET /api/trading/admin/stats", admin(http.HandlerFunc(h.Admin.Stats)))
		mux.Handle("GET /api/trading/admin/audit", admin(http.HandlerFunc(h.Admin.Audit)))
		mux.Handle("POST /api/trading/admin/withdraw/{id}/approve", admin(http.HandlerFunc(h.Admin.Approve)))
		mux.Handle("POST /api/trading/admin/withdraw/{id}/reject", admin(http.HandlerFunc(h.Admin.Reject)))
	}

	if h.Hub != nil {
		mux.HandleFunc("GET /ws", h.Hub.HandleWS)
	}
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	// Logging sits directly on the mux so it sees the matched pattern.
	var out http.Handler = mux
	out = middleware.Logging(logger, m)(out)
	out = middleware.Identity(cfg.UserHeader, cfg.VerifiedHeader)(out)
	out = middleware.CORS(cfg.CORSOrigins, cfg.UserHeader, cfg.VerifiedHeader)(out)
	return out
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Run starts the server and shuts it down gracefully when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutCtx); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
