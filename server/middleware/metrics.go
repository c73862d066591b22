package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/existlabs/gptbridge/server/metrics"
)

// PrometheusMetrics middleware records HTTP metrics using Prometheus.
func PrometheusMetrics(m *metrics.Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			handler := SanitizePath(r.URL.Path)

			m.ActiveRequests.Inc()
			defer m.ActiveRequests.Dec()

			rw := NewResponseWriter(w)
			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.Status())

			m.RequestsTotal.WithLabelValues(handler, status).Inc()
			m.RequestDuration.WithLabelValues(handler).Observe(duration)
		})
	}
}
