package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP API metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Script runtime metrics
	ScriptLoads  *prometheus.CounterVec
	GuestCalls   *prometheus.CounterVec
	GuestLatency *prometheus.HistogramVec
	GuestFetches *prometheus.CounterVec

	// Registry metrics
	RegistryModules    prometheus.Gauge
	RegistryOperations *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
}

// NewMetrics creates a new metrics collector with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modhost_http_requests_total",
				Help: "Total number of HTTP API requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modhost_http_request_duration_seconds",
				Help:    "HTTP API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modhost_http_response_size_bytes",
				Help:    "HTTP API response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		ScriptLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modhost_script_loads_total",
				Help: "Script loads into a fresh execution environment",
			},
			[]string{"result"},
		),
		GuestCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modhost_guest_calls_total",
				Help: "Guest function invocations through the runner",
			},
			[]string{"function", "result"},
		),
		GuestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modhost_guest_call_duration_seconds",
				Help:    "Time from invocation to bridged result",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"function"},
		),
		GuestFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modhost_guest_fetches_total",
				Help: "HTTP requests issued by guest scripts",
			},
			[]string{"method", "status"},
		),

		RegistryModules: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "modhost_registry_modules",
				Help: "Number of module records in the catalog",
			},
		),
		RegistryOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modhost_registry_operations_total",
				Help: "Registry mutations and validations",
			},
			[]string{"operation", "result"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "modhost_ws_connections",
				Help: "Active catalog stream connections",
			},
		),
	}
}

// Registry exposes the underlying registry (useful in tests)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus exposition handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP API request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

// RecordScriptLoad records the outcome of a script load
func (m *Metrics) RecordScriptLoad(ok bool) {
	m.ScriptLoads.WithLabelValues(result(ok)).Inc()
}

// RecordGuestCall records a guest function invocation
func (m *Metrics) RecordGuestCall(function, outcome string, duration time.Duration) {
	m.GuestCalls.WithLabelValues(function, outcome).Inc()
	m.GuestLatency.WithLabelValues(function).Observe(duration.Seconds())
}

// RecordGuestFetch records a guest fetch; status 0 means transport failure
func (m *Metrics) RecordGuestFetch(method string, status int) {
	class := "error"
	if status > 0 {
		class = strconv.Itoa(status/100) + "xx"
	}
	m.GuestFetches.WithLabelValues(method, class).Inc()
}

// RecordRegistryOp records a registry operation outcome
func (m *Metrics) RecordRegistryOp(operation string, ok bool) {
	m.RegistryOperations.WithLabelValues(operation, result(ok)).Inc()
}

// SetRegistryModules sets the catalog size
func (m *Metrics) SetRegistryModules(count int) {
	m.RegistryModules.Set(float64(count))
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
