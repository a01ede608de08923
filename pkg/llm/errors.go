package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoAPIKey is returned when the client was built without a credential.
var ErrNoAPIKey = errors.New("LLM API key is not configured")

// ErrorType classifies gateway failures.
type ErrorType string

const (
	ErrorTypeRateLimited    ErrorType = "rate_limited"
	ErrorTypeQuotaExhausted ErrorType = "quota_exhausted"
	ErrorTypeAuth           ErrorType = "auth"
	ErrorTypeUpstream       ErrorType = "upstream"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeNetwork        ErrorType = "network"
)

// Error represents a structured gateway error.
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Cause      error
	Model      string
}

// Error implements the error interface.
func (e *Error) Error() string {
	parts := []string{string(e.Type)}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether backing off and retrying can help.
// Only rate limiting qualifies; quota and auth failures need operator action.
func (e *Error) IsRetryable() bool {
	return e.Type == ErrorTypeRateLimited
}

// FromStatus builds an *Error from an upstream HTTP status code.
func FromStatus(status int, message string, cause error, model string) *Error {
	e := &Error{StatusCode: status, Message: message, Cause: cause, Model: model}
	switch {
	case status == http.StatusTooManyRequests:
		e.Type = ErrorTypeRateLimited
	case status == http.StatusPaymentRequired:
		e.Type = ErrorTypeQuotaExhausted
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Type = ErrorTypeAuth
	default:
		e.Type = ErrorTypeUpstream
	}
	return e
}

// StatusOf returns the upstream HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
