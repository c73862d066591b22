// Package errors provides the error handling system for the gptbridge
// webhook service. It defines the failure taxonomy used across the
// pipeline (inbound validation, completion calls, outbound sends),
// JSON response formatting, request ID tracking, and integrated
// logging with Uber's zap logger.
//
// Basic usage:
//
//	// Simple error response
//	errors.Error(w, "Something went wrong", http.StatusInternalServerError)
//
//	// Category-specific error with context
//	errors.ErrorWithType(w, "text is required", errors.MalformedInput, http.StatusBadRequest)
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the default zap logger instance used throughout the package.
// It is initialized to a production configuration but can be overridden using SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger allows setting a custom zap logger instance.
// If nil is provided, the function will do nothing to prevent
// accidentally disabling logging.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType categorizes every failure the service can produce. The set is
// closed: each inbound message resolves to success or exactly one of these.
type ErrorType string

const (
	// MalformedInput marks webhook payloads that cannot be processed as
	// given: missing message, empty text, oversized text. Never retried.
	MalformedInput ErrorType = "malformed_input"

	// RateLimited marks provider quota or throughput rejections. Retried
	// with backoff.
	RateLimited ErrorType = "rate_limited"

	// TransientNetwork marks timeouts, connection failures, and provider
	// 5xx responses. Retried with backoff.
	TransientNetwork ErrorType = "transient_network"

	// InvalidRequest marks provider rejections of the request itself
	// (bad model, oversized prompt). Never retried.
	InvalidRequest ErrorType = "invalid_request"

	// SendFailure marks failed outbound sends to the chat platform.
	// Logged and counted only, never retried and never fatal.
	SendFailure ErrorType = "send_failure"

	// Unknown covers everything else. Not retried.
	Unknown ErrorType = "unknown"
)

// Types lists every error category, in a stable order. The metrics
// recorder uses it to pre-register per-category counters.
func Types() []ErrorType {
	return []ErrorType{
		MalformedInput,
		RateLimited,
		TransientNetwork,
		InvalidRequest,
		SendFailure,
		Unknown,
	}
}

// Retryable reports whether a failure of this category may succeed on a
// later attempt. Only rate limits and transient network failures qualify.
func (t ErrorType) Retryable() bool {
	return t == RateLimited || t == TransientNetwork
}

// BridgeError is the service's error type. It implements the error
// interface and carries the failure category, an HTTP status code for
// webhook responses, and the request ID for correlation. It serializes
// to JSON for API responses while keeping the underlying cause for logs.
type BridgeError struct {
	// Type categorizes the error
	Type ErrorType `json:"type"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Code is the HTTP status code (not exposed in JSON)
	Code int `json:"-"`

	// RequestID links the error to a specific request
	RequestID string `json:"request_id"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`

	// err is the underlying error (not exposed in JSON)
	err error
}

// Error implements the error interface. It returns a string that
// combines the error type, message, and underlying error (if any).
func (e *BridgeError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, implementing the unwrap
// interface for error chains.
func (e *BridgeError) Unwrap() error {
	return e.err
}

// Is implements error matching for errors.Is, allowing type-based
// error matching while ignoring other fields.
func (e *BridgeError) Is(target error) bool {
	t, ok := target.(*BridgeError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// TypeOf extracts the failure category from an error. Errors that are
// not BridgeErrors report Unknown.
func TypeOf(err error) ErrorType {
	var be *BridgeError
	if As(err, &be) {
		return be.Type
	}
	return Unknown
}

// WriteError formats and writes a BridgeError to an http.ResponseWriter.
// It sets the appropriate content type and status code, then writes
// the error as a JSON response.
func WriteError(w http.ResponseWriter, err *BridgeError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
}

// Error is a drop-in replacement for http.Error that creates and writes
// a BridgeError with the Unknown type. It automatically includes
// the request ID from the response headers if available.
func Error(w http.ResponseWriter, message string, code int) {
	requestID := w.Header().Get("X-Request-ID")
	err := &BridgeError{
		Type:      Unknown,
		Message:   message,
		Code:      code,
		RequestID: requestID,
	}
	WriteError(w, err)
}

// ErrorWithType is like Error but allows specifying the error category.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	requestID := w.Header().Get("X-Request-ID")
	err := &BridgeError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
	}
	WriteError(w, err)
}
