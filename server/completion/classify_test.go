package completion

import (
	"context"
	"fmt"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"

	"github.com/existlabs/gptbridge/errors"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o operation" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.ErrorType
	}{
		{"nil", nil, ""},
		{"deadline exceeded", context.DeadlineExceeded, errors.TransientNetwork},
		{"wrapped deadline", fmt.Errorf("generate: %w", context.DeadlineExceeded), errors.TransientNetwork},
		{"breaker open", gobreaker.ErrOpenState, errors.TransientNetwork},
		{"breaker half-open full", gobreaker.ErrTooManyRequests, errors.TransientNetwork},
		{"net timeout", timeoutError{}, errors.TransientNetwork},
		{"http 429", fmt.Errorf("unexpected status 429"), errors.RateLimited},
		{"rate limit text", fmt.Errorf("openai: rate limit exceeded, slow down"), errors.RateLimited},
		{"quota", fmt.Errorf("you have exceeded your quota"), errors.RateLimited},
		{"too many requests", fmt.Errorf("Too Many Requests"), errors.RateLimited},
		{"connection refused", fmt.Errorf("dial tcp: connection refused"), errors.TransientNetwork},
		{"connection reset", fmt.Errorf("read: connection reset by peer"), errors.TransientNetwork},
		{"bad gateway", fmt.Errorf("502 bad gateway"), errors.TransientNetwork},
		{"service unavailable", fmt.Errorf("503 service unavailable"), errors.TransientNetwork},
		{"no such host", fmt.Errorf("lookup api.example.com: no such host"), errors.TransientNetwork},
		{"bad request", fmt.Errorf("400 bad request"), errors.InvalidRequest},
		{"invalid request", fmt.Errorf("invalid request: messages must not be empty"), errors.InvalidRequest},
		{"context length", fmt.Errorf("this model's maximum context length is 8192 tokens"), errors.InvalidRequest},
		{"model not found", fmt.Errorf("model not found: gpt-typo"), errors.InvalidRequest},
		{"unclassifiable", fmt.Errorf("weird one-off failure"), errors.Unknown},
		{"bridge error passthrough", errors.NewInvalidRequest("", "nope", nil), errors.InvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
