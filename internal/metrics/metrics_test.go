package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSync("ok", time.Second, 1, 1)
		m.ObserveTick(3)
		m.IncTickPanic()
		m.AddSnapshotRows("ok", 2)
		m.AddArchivedRows(5)
		m.IncPositionOpened("LONG")
		m.IncPositionClosed("loss")
		m.IncSettlementError("open", "insufficient_funds")
		m.IncWalletOp("deposit")
		m.ObserveRequest("GET", "/api/health", "200", time.Millisecond)
	})
}

func TestCountersAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSync("ok", 2*time.Second, 42, 1234.5)
	m.ObserveSync("error", time.Second, 0, 0)
	m.ObserveTick(42)
	m.IncPositionOpened("SHORT")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, want := range []string{
		"skintrend_market_ticks_total 1",
		"skintrend_market_assets_tracked 42",
		"skintrend_market_liquid_cap_usd 1234.5",
		`skintrend_reference_syncs_total{status="error"} 1`,
		`skintrend_positions_opened_total{direction="SHORT"} 1`,
	} {
		assert.True(t, strings.Contains(body, want), "missing %q", want)
	}
}
