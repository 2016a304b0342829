package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	reg *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	opsTotal    *prometheus.CounterVec
	opsDuration *prometheus.HistogramVec
	stock       *prometheus.GaugeVec
	drift       prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by name and outcome.",
		}, []string{"op", "outcome"}),
		opsDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Ledger operation latencies in seconds, including retries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		stock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledger_stock_bottles",
			Help: "Current total_bottles counters.",
		}, []string{"counter"}),
		drift: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_available_drift",
			Help: "Stored available_bottles minus total - used - damaged - deposit.",
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration,
		m.opsTotal, m.opsDuration, m.stock, m.drift,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry exposes the registry for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) HTTPStarted() { m.httpInFlight.Inc() }

func (m *Metrics) HTTPFinished(method, route string, status int, d time.Duration) {
	code := strconv.Itoa(status)
	m.httpInFlight.Dec()
	m.httpRequestsTotal.WithLabelValues(method, route, code).Inc()
	m.httpRequestDuration.WithLabelValues(method, route, code).Observe(d.Seconds())
}

// ObserveOp records one ledger operation. outcome is "ok" or an error class.
func (m *Metrics) ObserveOp(op, outcome string, d time.Duration) {
	m.opsTotal.WithLabelValues(op, outcome).Inc()
	m.opsDuration.WithLabelValues(op).Observe(d.Seconds())
}

// SetStock publishes the committed stock counters and the available drift.
func (m *Metrics) SetStock(total, available, used, damaged, deposit, drift int) {
	m.stock.WithLabelValues("total").Set(float64(total))
	m.stock.WithLabelValues("available").Set(float64(available))
	m.stock.WithLabelValues("used").Set(float64(used))
	m.stock.WithLabelValues("damaged").Set(float64(damaged))
	m.stock.WithLabelValues("deposit").Set(float64(deposit))
	m.drift.Set(float64(drift))
}
