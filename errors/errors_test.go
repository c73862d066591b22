package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeErrorFormatting(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")

	withCause := NewTransient("req_1", "provider unreachable", cause)
	assert.Equal(t, "transient_network: provider unreachable: dial tcp: connection refused", withCause.Error())

	withoutCause := NewMalformedInput("req_2", "text is required", nil)
	assert.Equal(t, "malformed_input: text is required", withoutCause.Error())
}

func TestBridgeErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := NewUnknown("req_1", cause)

	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.True(t, stderrors.Is(err, cause))
}

func TestBridgeErrorIsMatchesByType(t *testing.T) {
	a := NewRateLimited("req_1", 30, nil)
	b := NewRateLimited("req_2", 0, fmt.Errorf("other cause"))

	assert.True(t, stderrors.Is(a, b), "same category matches regardless of other fields")
	assert.False(t, stderrors.Is(a, NewTransient("req_1", "x", nil)))
	assert.False(t, stderrors.Is(a, fmt.Errorf("rate_limited")))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, InvalidRequest, TypeOf(NewInvalidRequest("", "bad model", nil)))
	assert.Equal(t, InvalidRequest, TypeOf(fmt.Errorf("wrapped: %w", NewInvalidRequest("", "bad model", nil))))
	assert.Equal(t, Unknown, TypeOf(fmt.Errorf("plain error")))
}

func TestRetryable(t *testing.T) {
	assert.True(t, RateLimited.Retryable())
	assert.True(t, TransientNetwork.Retryable())

	assert.False(t, MalformedInput.Retryable())
	assert.False(t, InvalidRequest.Retryable())
	assert.False(t, SendFailure.Retryable())
	assert.False(t, Unknown.Retryable())
}

func TestTypesCoversEveryCategory(t *testing.T) {
	types := Types()
	require.Len(t, types, 6)

	seen := make(map[ErrorType]bool, len(types))
	for _, typ := range types {
		assert.False(t, seen[typ], "duplicate category %s", typ)
		seen[typ] = true
	}
	assert.True(t, seen[Unknown])
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, NewMalformedInput("req_123", "text is required", map[string]interface{}{
		"field": "message.text",
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"type": "malformed_input",
		"message": "text is required",
		"request_id": "req_123",
		"details": {"field": "message.text"}
	}`, w.Body.String())
}

func TestErrorUsesRequestIDHeader(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set("X-Request-ID", "req_456")

	Error(w, "something broke", http.StatusInternalServerError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{
		"type": "unknown",
		"message": "something broke",
		"request_id": "req_456"
	}`, w.Body.String())
}

func TestErrorWithType(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorWithType(w, "slow down", RateLimited, http.StatusTooManyRequests)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{
		"type": "rate_limited",
		"message": "slow down",
		"request_id": ""
	}`, w.Body.String())
}
