// Package metrics provides Prometheus metrics for classification and the HTTP API.
//
// Every method is safe to call on a nil [*Metrics], which records nothing.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/desertthunder/visionary/internal/shared"
)

const resultOK = "ok"

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ClassificationTotal    *prometheus.CounterVec
	ClassificationDuration *prometheus.HistogramVec
	LowConfidenceTotal     prometheus.Counter

	HTTPRequestTotal    *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates Metrics on a fresh registry that also carries the Go runtime and process collectors.
func New() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.initMetrics()

	if err := m.registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	if err := m.registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register go collector: %w", err)
	}
	if err := m.registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	return m, nil
}

func (m *Metrics) initMetrics() {
	m.ClassificationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visionary_classifications_total",
			Help: "Classification attempts partitioned by oracle backend and result kind.",
		},
		[]string{"backend", "result"},
	)
	m.ClassificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "visionary_classification_duration_seconds",
			Help:    "Time from receiving image bytes to a persisted classification.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"backend"},
	)
	m.LowConfidenceTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "visionary_low_confidence_total",
			Help: "Persisted classifications below the low confidence threshold.",
		},
	)
	m.HTTPRequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visionary_http_requests_total",
			Help: "HTTP API requests partitioned by method, route pattern and status code.",
		},
		[]string{"method", "route", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "visionary_http_request_duration_seconds",
			Help:    "HTTP API request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
}

// Describe implements [prometheus.Collector].
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.ClassificationTotal.Describe(ch)
	m.ClassificationDuration.Describe(ch)
	m.LowConfidenceTotal.Describe(ch)
	m.HTTPRequestTotal.Describe(ch)
	m.HTTPRequestDuration.Describe(ch)
}

// Collect implements [prometheus.Collector].
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.ClassificationTotal.Collect(ch)
	m.ClassificationDuration.Collect(ch)
	m.LowConfidenceTotal.Collect(ch)
	m.HTTPRequestTotal.Collect(ch)
	m.HTTPRequestDuration.Collect(ch)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{ErrorHandling: promhttp.HTTPErrorOnError})
}

// ObserveClassification records one pipeline run. The result label is "ok" or the error's kind.
func (m *Metrics) ObserveClassification(backend string, err error, elapsed time.Duration, lowConfidence bool) {
	if m == nil {
		return
	}

	result := resultOK
	if err != nil {
		result = shared.ErrorKind(err)
	}

	m.ClassificationTotal.WithLabelValues(backend, result).Inc()
	m.ClassificationDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
	if err == nil && lowConfidence {
		m.LowConfidenceTotal.Inc()
	}
}

// ObserveRequest records one HTTP API request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
