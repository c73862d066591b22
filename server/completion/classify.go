package completion

import (
	"context"
	stderrors "errors"
	"net"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/existlabs/gptbridge/errors"
)

// Classify maps a completion call failure to its category. Provider
// SDK errors come through as opaque wrapped errors, so after the
// well-typed cases the classification falls back to message inspection,
// checking rate-limit markers first (a 429 body often also contains the
// word "request").
func Classify(err error) errors.ErrorType {
	if err == nil {
		return ""
	}

	var be *errors.BridgeError
	if errors.As(err, &be) {
		return be.Type
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.TransientNetwork
	}
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.TransientNetwork
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.TransientNetwork
	}

	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "rate limit", "rate_limit", "too many requests", "quota", "429"):
		return errors.RateLimited
	case containsAny(msg, "timeout", "timed out", "connection refused", "connection reset",
		"no such host", "broken pipe", "unexpected eof", "server error",
		"service unavailable", "bad gateway", "500", "502", "503", "504"):
		return errors.TransientNetwork
	case containsAny(msg, "invalid request", "invalid_request", "bad request", "400",
		"context length", "maximum context", "model not found", "unsupported"):
		return errors.InvalidRequest
	default:
		return errors.Unknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
