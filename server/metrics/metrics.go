// Package metrics implements the metrics recorder for the webhook
// service. It exposes two views of the same counters: a Prometheus
// registry served on /metrics, and an atomic snapshot served on /status
// for quick inspection without a scraper.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/existlabs/gptbridge/errors"
)

// Metrics encapsulates the service's counters. Snapshot counters use
// atomic increments only; there is no read-modify-write anywhere.
type Metrics struct {
	registry *prometheus.Registry

	// RequestsTotal counts HTTP requests by handler and status.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration measures HTTP request latency by handler.
	RequestDuration *prometheus.HistogramVec

	// ActiveRequests tracks in-flight HTTP requests.
	ActiveRequests prometheus.Gauge

	// ErrorsTotal counts terminal failures by category.
	ErrorsTotal *prometheus.CounterVec

	// CompletionLatency measures individual model call attempts.
	CompletionLatency prometheus.Histogram

	// CompletionAttempts counts model call attempts, retries included.
	CompletionAttempts *prometheus.CounterVec

	// PromptTokens measures prompt sizes when token tracking is enabled.
	PromptTokens prometheus.Histogram

	// Snapshot state. requests and latency cover messages relayed to the
	// model; errCounts covers terminal failures by category.
	startTime    time.Time
	requests     atomic.Int64
	latencyNanos atomic.Int64
	errCounts    map[errors.ErrorType]*atomic.Int64
}

// Snapshot is the structured read returned by the /status endpoint.
type Snapshot struct {
	UptimeSeconds     float64          `json:"uptime_seconds"`
	TotalRequests     int64            `json:"total_requests"`
	TotalErrors       int64            `json:"total_errors"`
	ErrorRate         float64          `json:"error_rate"`
	ErrorsByCategory  map[string]int64 `json:"errors_by_category"`
	AvgLatencyMillis  float64          `json:"avg_latency_ms"`
	RequestsPerMinute float64          `json:"requests_per_minute"`
}

// New creates a Metrics instance with a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry:  registry,
		startTime: time.Now(),
		errCounts: make(map[errors.ErrorType]*atomic.Int64),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gptbridge_http_requests_total",
				Help: "Total number of HTTP requests by handler and status",
			},
			[]string{"handler", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gptbridge_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"handler"},
		),
		ActiveRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gptbridge_http_active_requests",
				Help: "Number of currently active HTTP requests",
			},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gptbridge_errors_total",
				Help: "Total number of terminal failures by category",
			},
			[]string{"category"},
		),
		CompletionLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gptbridge_completion_latency_seconds",
				Help:    "Latency of individual model call attempts",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		CompletionAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gptbridge_completion_attempts_total",
				Help: "Model call attempts by outcome, retries included",
			},
			[]string{"outcome"},
		),
		PromptTokens: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gptbridge_prompt_tokens",
				Help:    "Prompt sizes in tokens, when token tracking is enabled",
				Buckets: []float64{16, 64, 256, 1024, 4096},
			},
		),
	}

	// Register default Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Pre-register every category so snapshots always report the full
	// partition and increments never allocate.
	for _, t := range errors.Types() {
		m.errCounts[t] = &atomic.Int64{}
		m.ErrorsTotal.WithLabelValues(string(t)).Add(0)
	}

	return m
}

// RecordRequest records one message relayed to the model and its total
// processing time, successful or not.
func (m *Metrics) RecordRequest(elapsed time.Duration) {
	m.requests.Add(1)
	m.latencyNanos.Add(int64(elapsed))
}

// RecordError records one terminal failure of the given category.
// Unrecognized categories are folded into Unknown.
func (m *Metrics) RecordError(category errors.ErrorType) {
	c, ok := m.errCounts[category]
	if !ok {
		category = errors.Unknown
		c = m.errCounts[category]
	}
	c.Add(1)
	m.ErrorsTotal.WithLabelValues(string(category)).Inc()
}

// ObserveAttempt records one model call attempt.
func (m *Metrics) ObserveAttempt(elapsed time.Duration, outcome string) {
	m.CompletionLatency.Observe(elapsed.Seconds())
	m.CompletionAttempts.WithLabelValues(outcome).Inc()
}

// Snapshot returns the current counters. Individual loads are atomic;
// the snapshot as a whole is not a consistent cut, which is fine for a
// status page.
func (m *Metrics) Snapshot() Snapshot {
	uptime := time.Since(m.startTime).Seconds()
	total := m.requests.Load()

	byCategory := make(map[string]int64, len(m.errCounts))
	var totalErrors int64
	for t, c := range m.errCounts {
		n := c.Load()
		byCategory[string(t)] = n
		totalErrors += n
	}

	s := Snapshot{
		UptimeSeconds:    uptime,
		TotalRequests:    total,
		TotalErrors:      totalErrors,
		ErrorsByCategory: byCategory,
	}
	if total > 0 {
		s.ErrorRate = float64(totalErrors) / float64(total)
		s.AvgLatencyMillis = float64(m.latencyNanos.Load()) / float64(total) / float64(time.Millisecond)
	}
	if uptime > 0 {
		s.RequestsPerMinute = float64(total) / uptime * 60
	}
	return s
}

// Handler returns a handler for the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
