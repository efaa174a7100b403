// Package metrics exposes Prometheus metrics for the analysis pipeline and its front-ends.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector. Use NewManager in tests with a fresh registry.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	analyses      *prometheus.CounterVec
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	cacheEntries  prometheus.Gauge
	modelLatency  prometheus.Histogram
	journalErrors prometheus.Counter

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	botUpdates *prometheus.CounterVec
}

type Option func(*Manager)

func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

var (
	registry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry served on /metrics
	global   *Manager                   //nolint:gochecknoglobals
)

func init() { //nolint:gochecknoinits
	global = NewManager(WithPrometheusRegistry(registry))
}

// model latency spans seconds, not milliseconds
var latencyBuckets = []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60, 120}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "facematch",
		subsystem:        "analysis",
		histogramBuckets: latencyBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.analyses = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "attempts_total",
		Help:      "Analysis attempts by outcome (ok, cache_hit or failure kind)",
	}, []string{"outcome"})

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_hits_total",
		Help:      "Analyses served from the fingerprint cache",
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_misses_total",
		Help:      "Analyses that required a model call",
	})

	m.cacheEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_entries",
		Help:      "Entries currently held by the fingerprint cache",
	})

	m.modelLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "model_latency_seconds",
		Help:      "Duration of the remote generate call",
		Buckets:   m.histogramBuckets,
	})

	m.journalErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "journal_errors_total",
		Help:      "Attempt journal writes that failed",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method", "status_code"})

	m.botUpdates = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "bot",
		Name:      "updates_total",
		Help:      "Telegram updates by type",
	}, []string{"type"})
}

func (m *Manager) RecordAttempt(outcome string)       { m.analyses.WithLabelValues(outcome).Inc() }
func (m *Manager) RecordCacheHit()                    { m.cacheHits.Inc() }
func (m *Manager) RecordCacheMiss()                   { m.cacheMisses.Inc() }
func (m *Manager) UpdateCacheEntries(n int)           { m.cacheEntries.Set(float64(n)) }
func (m *Manager) RecordModelLatency(seconds float64) { m.modelLatency.Observe(seconds) }
func (m *Manager) RecordJournalError()                { m.journalErrors.Inc() }
func (m *Manager) RecordBotUpdate(kind string)        { m.botUpdates.WithLabelValues(kind).Inc() }
func (m *Manager) RecordHTTPRequest(route, method, code string, seconds float64) {
	m.httpRequests.WithLabelValues(route, method, code).Inc()
	m.httpRequestDuration.WithLabelValues(route, method, code).Observe(seconds)
}

// Package-level helpers record on the global manager.

func RecordAttempt(outcome string)       { global.RecordAttempt(outcome) }
func RecordCacheHit()                    { global.RecordCacheHit() }
func RecordCacheMiss()                   { global.RecordCacheMiss() }
func UpdateCacheEntries(n int)           { global.UpdateCacheEntries(n) }
func RecordModelLatency(seconds float64) { global.RecordModelLatency(seconds) }
func RecordJournalError()                { global.RecordJournalError() }
func RecordBotUpdate(kind string)        { global.RecordBotUpdate(kind) }
func RecordHTTPRequest(route, method, code string, seconds float64) {
	global.RecordHTTPRequest(route, method, code, seconds)
}

// GetRegistry returns the registry served on /metrics.
func GetRegistry() *prometheus.Registry { return registry }
