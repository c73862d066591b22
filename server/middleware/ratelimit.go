package middleware

import (
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/existlabs/gptbridge/errors"
)

// RateLimiter implements per-client rate limiting for the webhook
// endpoint. Telegram delivers all updates from its own infrastructure,
// so this mainly protects against misdirected or abusive traffic from
// elsewhere.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
}

// NewRateLimiter creates a limiter allowing `limit` events per second
// with the given burst per client IP.
func NewRateLimiter(limit rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		burst:    burst,
		visitors: make(map[string]*rate.Limiter),
	}
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.visitors[ip]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.visitors[ip] = limiter
	}
	return limiter
}

// Handler wraps next with the rate limit check.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if idx := strings.LastIndex(ip, ":"); idx != -1 {
			ip = ip[:idx]
		}

		if !rl.limiterFor(ip).Allow() {
			errors.WriteError(w, errors.NewError(
				errors.RateLimited,
				"Rate limit exceeded",
				http.StatusTooManyRequests,
				GetRequestID(r.Context()),
				nil,
				nil,
			))
			return
		}

		next.ServeHTTP(w, r)
	})
}
