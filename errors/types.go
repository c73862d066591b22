package errors

import (
	"net/http"
)

// NewError creates a new BridgeError with the given parameters.
// It is a general-purpose constructor that allows full control over
// the error's fields. For most cases, you should use one of the
// specialized constructors below.
func NewError(errType ErrorType, message string, code int, requestID string, details map[string]interface{}, err error) *BridgeError {
	return &BridgeError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewMalformedInput creates an error for webhook payloads that cannot be
// processed as given: missing message, empty text, oversized text.
//
// Example:
//
//	err := NewMalformedInput("req_123", "text is required", map[string]interface{}{
//	    "field": "message.text",
//	})
func NewMalformedInput(requestID, message string, details map[string]interface{}) *BridgeError {
	return &BridgeError{
		Type:      MalformedInput,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		Details:   details,
	}
}

// NewRateLimited creates an error for provider quota rejections.
// retryAfter carries the suggested delay in seconds when the provider
// supplied one, zero otherwise.
func NewRateLimited(requestID string, retryAfter int, err error) *BridgeError {
	details := map[string]interface{}{}
	if retryAfter > 0 {
		details["retry_after"] = retryAfter
	}
	return &BridgeError{
		Type:      RateLimited,
		Message:   "Rate limit exceeded",
		Code:      http.StatusTooManyRequests,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewTransient creates an error for timeouts and connection failures
// talking to the model provider.
func NewTransient(requestID, message string, err error) *BridgeError {
	return &BridgeError{
		Type:      TransientNetwork,
		Message:   message,
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewInvalidRequest creates an error for provider rejections of the
// request itself. These indicate the call can never succeed as given.
func NewInvalidRequest(requestID, message string, err error) *BridgeError {
	return &BridgeError{
		Type:      InvalidRequest,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		err:       err,
	}
}

// NewSendFailure creates an error for failed outbound sends to the chat
// platform. Callers log and count these; they are never surfaced to users.
func NewSendFailure(requestID string, err error) *BridgeError {
	return &BridgeError{
		Type:      SendFailure,
		Message:   "Failed to deliver reply",
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewUnknown creates an error for unexpected failures that are not
// covered by other categories, including recovered panics.
func NewUnknown(requestID string, err error) *BridgeError {
	return &BridgeError{
		Type:      Unknown,
		Message:   "An internal error occurred",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}
