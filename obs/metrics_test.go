package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetrics_ObserveOp(t *testing.T) {
	m := NewMetrics()
	m.ObserveOp("issue", "ok", 5*time.Millisecond)
	m.ObserveOp("issue", "ok", 5*time.Millisecond)
	m.ObserveOp("issue", "invariant", time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `ledger_operations_total{op="issue",outcome="ok"} 2`)
	assert.Contains(t, body, `ledger_operations_total{op="issue",outcome="invariant"} 1`)
}

func TestMetrics_HandlerExposesStock(t *testing.T) {
	m := NewMetrics()
	m.SetStock(1000, 900, 100, 0, 0, 0)

	body := scrape(t, m)
	assert.Contains(t, body, `ledger_stock_bottles{counter="available"} 900`)
	assert.Contains(t, body, "ledger_available_drift 0")
}

func TestMetrics_HTTP(t *testing.T) {
	m := NewMetrics()
	m.HTTPStarted()
	m.HTTPFinished(http.MethodGet, "/api/stock", http.StatusOK, 10*time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `http_requests_total{method="GET",route="/api/stock",status="200"} 1`)
	assert.Contains(t, body, "http_in_flight_requests 0")
}

func TestNewLogger_RejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger("production", "loud")
	assert.Error(t, err)

	log, err := NewLogger("development", "debug")
	require.NoError(t, err)
	assert.NotNil(t, log)
}
