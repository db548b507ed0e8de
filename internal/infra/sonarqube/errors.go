// Package sonarqube implements the resilient client for the upstream
// code-analysis REST API: response caching, rate limiting, retries,
// pagination, version-aware filters and the typed collectors built on top.
package sonarqube

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is an unrecoverable upstream failure. Status is 0 for pure network
// errors. Body carries the upstream response body when available.
type APIError struct {
	Status   int
	Method   string
	Endpoint string
	Body     string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("sonarqube: %s %s: network error", e.Method, e.Endpoint)
	}
	return fmt.Sprintf("sonarqube: %s %s: status %d", e.Method, e.Endpoint, e.Status)
}

// TransientError is an APIError surfaced only after retry exhaustion, or a
// fatal per-request timeout. Both are terminal for the current run.
type TransientError struct {
	APIError
	Attempts int
	Cause    error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return fmt.Sprintf("%s (transient, %d attempts)", e.APIError.Error(), e.Attempts)
}

// Unwrap returns the underlying cause.
func (e *TransientError) Unwrap() error {
	return e.Cause
}

// AuthError is a credential rejection (401/403), distinct from a generic API
// error so callers can prompt for re-authentication.
type AuthError struct {
	APIError
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return e.APIError.Error() + " (authentication rejected)"
}

// ValidationError is raised before any network call when required client
// configuration is missing.
type ValidationError struct {
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "sonarqube: " + e.Reason
}

// PartialError marks a non-critical collector failure. Callers log it and
// continue with an empty result set.
type PartialError struct {
	Collector string
	Err       error
}

// Error implements the error interface.
func (e *PartialError) Error() string {
	return fmt.Sprintf("sonarqube: collector %s failed: %v", e.Collector, e.Err)
}

// Unwrap returns the collector's underlying error.
func (e *PartialError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsAuth reports whether err is an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsPartial reports whether err is a PartialError.
func IsPartial(err error) bool {
	var pe *PartialError
	return errors.As(err, &pe)
}

// retryableStatus reports whether an HTTP status is worth retrying.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, // 408
		http.StatusTooManyRequests,     // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	}
	return false
}
