package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/existlabs/gptbridge/server/metrics"
)

// StatusHandler serves the structured metrics snapshot: request totals,
// error counts partitioned by category, latency, and throughput.
type StatusHandler struct {
	metrics *metrics.Metrics
}

// NewStatusHandler creates a status handler backed by the given recorder.
func NewStatusHandler(m *metrics.Metrics) *StatusHandler {
	return &StatusHandler{metrics: m}
}

// ServeHTTP implements http.Handler.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.metrics.Snapshot())
}
