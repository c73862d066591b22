package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/existlabs/gptbridge/errors"
)

// SanitizePath redacts the bot token segment of webhook paths so it
// never reaches logs or metric labels.
func SanitizePath(path string) string {
	if strings.HasPrefix(path, "/webhook/") {
		return "/webhook/{token}"
	}
	return path
}

// RequestTimer measures request processing time
func RequestTimer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := NewResponseWriter(w)
		next.ServeHTTP(rw, r)
		duration := time.Since(start)
		w.Header().Set("X-Response-Time", duration.String())
	})
}

// PanicRecovery recovers from panics and returns a 500 error
func PanicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				errors.ErrorWithType(w, "Internal server error", errors.Unknown, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
