package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthHandler serves the liveness endpoint. A successful response
// means the process is up; the keep-alive pinger targets this route.
type HealthHandler struct {
	model string
	start time.Time
}

// NewHealthHandler creates a health handler reporting the configured model.
func NewHealthHandler(model string) *HealthHandler {
	return &HealthHandler{
		model: model,
		start: time.Now(),
	}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":         "ok",
		"model":          h.model,
		"uptime_seconds": time.Since(h.start).Seconds(),
	})
}
