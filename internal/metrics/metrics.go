package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "penguinwatch"

// Metrics owns a private registry so tests can create as many as they like.
// All recording methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	backendRequests  *prometheus.CounterVec
	streamEvents     prometheus.Counter
	streamReconnects prometheus.Counter
	streamConnected  prometheus.Gauge
	cacheOps         *prometheus.CounterVec
	exports          *prometheus.CounterVec
}

// New registers the dashboard collectors together with the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Backend API calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		streamEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_events_total",
			Help:      "Live update events received.",
		}),
		streamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_reconnects_total",
			Help:      "Reconnect attempts of the live update stream.",
		}),
		streamConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_connected",
			Help:      "1 while the live update stream is open.",
		}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_reads_total",
			Help:      "Snapshot cache reads by key and result.",
		}, []string{"key", "result"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_exports_total",
			Help:      "Report exports by format and outcome.",
		}, []string{"format", "outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.backendRequests,
		m.streamEvents,
		m.streamReconnects,
		m.streamConnected,
		m.cacheOps,
		m.exports,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) BackendRequest(op, outcome string) {
	if m == nil {
		return
	}
	m.backendRequests.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) StreamEvent() {
	if m == nil {
		return
	}
	m.streamEvents.Inc()
}

func (m *Metrics) StreamReconnect() {
	if m == nil {
		return
	}
	m.streamReconnects.Inc()
}

func (m *Metrics) StreamConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.streamConnected.Set(1)
		return
	}
	m.streamConnected.Set(0)
}

// CacheRead records a snapshot read; result is hit, miss or corrupt.
func (m *Metrics) CacheRead(key, result string) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues(key, result).Inc()
}

func (m *Metrics) Export(format, outcome string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format, outcome).Inc()
}
