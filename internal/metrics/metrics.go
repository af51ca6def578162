// Package metrics holds the Prometheus collectors shared by the pipelines,
// the trading services and the HTTP layer. Every method is safe on a nil
// *Metrics so components can run without a registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	AssetsTracked   prometheus.Gauge
	LiquidMarketCap prometheus.Gauge
	TicksTotal      prometheus.Counter
	TickPanics      prometheus.Counter
	SyncsTotal      *prometheus.CounterVec
	SyncDuration    prometheus.Histogram
	SnapshotRows    *prometheus.CounterVec
	ArchivedRows    prometheus.Counter

	PositionsOpened  *prometheus.CounterVec
	PositionsClosed  *prometheus.CounterVec
	SettlementErrors *prometheus.CounterVec
	WalletOps        *prometheus.CounterVec

	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		AssetsTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skintrend_market_assets_tracked",
			Help: "Assets currently quoted by the live market.",
		}),
		LiquidMarketCap: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skintrend_market_liquid_cap_usd",
			Help: "Sum of reference price times listed quantity at the last sync.",
		}),
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skintrend_market_ticks_total",
			Help: "Completed tick passes.",
		}),
		TickPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skintrend_market_tick_panics_total",
			Help: "Tick passes that panicked and were recovered.",
		}),
		SyncsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skintrend_reference_syncs_total",
			Help: "Reference price syncs by outcome.",
		}, []string{"status"}),
		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "skintrend_reference_sync_duration_seconds",
			Help:    "Reference sync duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		SnapshotRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skintrend_snapshot_rows_total",
			Help: "Snapshot rows by outcome.",
		}, []string{"status"}),
		ArchivedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skintrend_archive_rows_total",
			Help: "Snapshot rows copied to object storage.",
		}),
		PositionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skintrend_positions_opened_total",
			Help: "Positions opened by direction.",
		}, []string{"direction"}),
		PositionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skintrend_positions_closed_total",
			Help: "Positions closed by outcome.",
		}, []string{"outcome"}),
		SettlementErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skintrend_settlement_errors_total",
			Help: "Rejected trading operations by reason.",
		}, []string{"op", "reason"}),
		WalletOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skintrend_wallet_operations_total",
			Help: "Wallet and admin ledger operations.",
		}, []string{"op"}),
		RequestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	registry.MustRegister(
		m.AssetsTracked,
		m.LiquidMarketCap,
		m.TicksTotal,
		m.TickPanics,
		m.SyncsTotal,
		m.SyncDuration,
		m.SnapshotRows,
		m.ArchivedRows,
		m.PositionsOpened,
		m.PositionsClosed,
		m.SettlementErrors,
		m.WalletOps,
		m.RequestCount,
		m.RequestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveSync(status string, duration time.Duration, assets int, liquidity float64) {
	if m == nil {
		return
	}
	m.SyncsTotal.WithLabelValues(status).Inc()
	m.SyncDuration.Observe(duration.Seconds())
	if status == "ok" {
		m.AssetsTracked.Set(float64(assets))
		m.LiquidMarketCap.Set(liquidity)
	}
}

func (m *Metrics) ObserveTick(assets int) {
	if m == nil {
		return
	}
	m.TicksTotal.Inc()
	m.AssetsTracked.Set(float64(assets))
}

func (m *Metrics) IncTickPanic() {
	if m == nil {
		return
	}
	m.TickPanics.Inc()
}

func (m *Metrics) AddSnapshotRows(status string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SnapshotRows.WithLabelValues(status).Add(float64(n))
}

func (m *Metrics) AddArchivedRows(n int64) {
	if m == nil || n == 0 {
		return
	}
	m.ArchivedRows.Add(float64(n))
}

func (m *Metrics) IncPositionOpened(direction string) {
	if m == nil {
		return
	}
	m.PositionsOpened.WithLabelValues(direction).Inc()
}

func (m *Metrics) IncPositionClosed(outcome string) {
	if m == nil {
		return
	}
	m.PositionsClosed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncSettlementError(op, reason string) {
	if m == nil {
		return
	}
	m.SettlementErrors.WithLabelValues(op, reason).Inc()
}

func (m *Metrics) IncWalletOp(op string) {
	if m == nil {
		return
	}
	m.WalletOps.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestCount.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
