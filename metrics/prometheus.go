package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hotboard/core"
)

// Manager owns a registry and every metric the service exports.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry
	collectSystem    bool

	// Backend operations
	backendOps     *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec

	// Domain events by type
	events *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a metrics manager. Without WithPrometheusRegistry it
// uses a fresh registry, so managers never collide.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "hotboard",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	if m.collectSystem {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m.backendOps = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "backend",
			Name:      "operations_total",
			Help:      "Backend operations by backend, operation and outcome",
		},
		[]string{"backend", "op", "outcome"},
	)

	m.backendLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: "backend",
			Name:      "operation_duration_seconds",
			Help:      "Backend operation latency in seconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"backend", "op"},
	)

	m.events = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      "events_total",
			Help:      "Domain events published, by type",
		},
		[]string{"type"},
	)

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route, method and status code",
		},
		[]string{"route", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"route", "method"},
	)
}

// Registry returns the registry the metrics live in.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveEvent counts a domain event. Its signature matches event bus handlers.
func (m *Manager) ObserveEvent(_ context.Context, ev core.Event) {
	m.events.WithLabelValues(string(ev.Type)).Inc()
}

// ObserveHTTP records one served request.
func (m *Manager) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Manager) observeBackend(backend, op string, start time.Time, err error) {
	m.backendOps.WithLabelValues(backend, op, outcome(err)).Inc()
	m.backendLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

// outcome buckets an error into a low-cardinality label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrDegradedCapability):
		return "degraded"
	case errors.Is(err, core.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, core.ErrBackendUnavailable):
		return "unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
