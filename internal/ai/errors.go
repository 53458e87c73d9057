package ai

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	KindUnauthenticated    ErrorKind = "unauthenticated"
	KindRateLimited        ErrorKind = "rate_limited"
	KindServiceUnavailable ErrorKind = "service_unavailable"
	KindTimeout            ErrorKind = "timeout"
	KindNetwork            ErrorKind = "network_error"
	KindProvider           ErrorKind = "provider_error"
)

// ProviderError is returned by every failed completion.
type ProviderError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("ai provider %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ai provider %s: %s", e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether the same request may succeed later.
func (e *ProviderError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindServiceUnavailable, KindTimeout, KindNetwork:
		return true
	}
	return false
}

// ErrNotConfigured is wrapped by NotConfigured; match it with errors.Is.
var ErrNotConfigured = errors.New("ai: provider api key not configured")

// NotConfigured returns a new service_unavailable ProviderError for a
// missing or placeholder API key.
func NotConfigured() *ProviderError {
	return &ProviderError{
		Kind:       KindServiceUnavailable,
		StatusCode: http.StatusServiceUnavailable,
		Message:    "AI provider API key is not configured",
		Err:        ErrNotConfigured,
	}
}

// KindOf extracts the ErrorKind of err, or "" when err is not a ProviderError.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// HTTPStatus maps a failure kind to the status reported to API callers.
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func errorForStatus(status int, message string) *ProviderError {
	switch status {
	case http.StatusUnauthorized:
		return &ProviderError{Kind: KindUnauthenticated, StatusCode: status, Message: "invalid AI provider API key"}
	case http.StatusTooManyRequests:
		return &ProviderError{Kind: KindRateLimited, StatusCode: status, Message: "rate limit exceeded, try again later"}
	case http.StatusServiceUnavailable:
		return &ProviderError{Kind: KindServiceUnavailable, StatusCode: status, Message: "model is currently unavailable"}
	}
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", status)
	}
	return &ProviderError{Kind: KindProvider, StatusCode: status, Message: message}
}
