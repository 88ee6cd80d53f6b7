package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Each collector owns its registry so
// multiple coordinators (and tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter
	SessionsBroken prometheus.Counter

	// Mutation pipeline metrics
	MutationsApplied  *prometheus.CounterVec
	MutationsDeferred prometheus.Counter
	MutationsDropped  *prometheus.CounterVec
	QueueDepth        prometheus.Gauge
	DrainDuration     prometheus.Histogram

	// Policy metrics
	AdmissionRejections prometheus.Counter
	SanitizerRejections prometheus.Counter

	// Event metrics
	EventsForwarded *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry:  registry,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coordinator_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coordinator_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "coordinator_sessions_active",
			Help: "Worker sessions currently running",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "coordinator_sessions_total",
			Help: "Worker sessions started since boot",
		}),
		SessionsBroken: factory.NewCounter(prometheus.CounterOpts{
			Name: "coordinator_sessions_broken_total",
			Help: "Sessions terminated by admission rejection",
		}),

		MutationsApplied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coordinator_mutations_applied_total",
				Help: "Mutations committed to the live document",
			},
			[]string{"variant"},
		),
		MutationsDeferred: factory.NewCounter(prometheus.CounterOpts{
			Name: "coordinator_mutations_deferred_total",
			Help: "Mutations left queued by gesture or visibility policy",
		}),
		MutationsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coordinator_mutations_dropped_total",
				Help: "Mutations discarded without applying",
			},
			[]string{"reason"},
		),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "coordinator_mutation_queue_depth",
			Help: "Pending mutation records",
		}),
		DrainDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "coordinator_drain_duration_seconds",
			Help:    "Duration of one queue drain pass",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),

		AdmissionRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "coordinator_admission_rejections_total",
			Help: "Mutation batches rejected by the admission controller",
		}),
		SanitizerRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "coordinator_sanitizer_rejections_total",
			Help: "Changes rejected by the sanitizer gate",
		}),

		EventsForwarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coordinator_events_forwarded_total",
				Help: "Local interaction events forwarded to workers",
			},
			[]string{"type"},
		),

		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "coordinator_ws_connections",
			Help: "Active WebSocket connections",
		}),

		Uptime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "coordinator_uptime_seconds",
			Help: "Process uptime in seconds",
		}),
	}

	return m
}

// Handler returns the exposition endpoint for this collector's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
