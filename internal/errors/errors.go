// Package errors provides error types and handling for the field analyzer.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorType categorizes errors for handling decisions.
type ErrorType int

const (
	// Unknown is an uncategorized error.
	Unknown ErrorType = iota
	// Navigation represents a page that could not be loaded.
	Navigation
	// Timeout represents timeout errors.
	Timeout
	// Browser represents browser/CDP errors.
	Browser
	// Query represents a failed page query the pipeline cannot continue without.
	Query
	// Config represents invalid configuration or input.
	Config
	// Cancelled represents context cancellation.
	Cancelled
)

// String returns the string representation of ErrorType.
func (t ErrorType) String() string {
	switch t {
	case Navigation:
		return "navigation"
	case Timeout:
		return "timeout"
	case Browser:
		return "browser"
	case Query:
		return "query"
	case Config:
		return "config"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsRetryable returns whether errors of this type should be retried.
func (t ErrorType) IsRetryable() bool {
	switch t {
	case Navigation, Timeout, Browser:
		return true
	default:
		return false
	}
}

// AnalysisError represents a categorized analysis failure.
type AnalysisError struct {
	Type      ErrorType
	URL       string
	Operation string
	Message   string
	Cause     error
	Retryable bool
}

// Error implements the error interface.
func (e *AnalysisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error during %s on %s: %s (caused by: %v)",
			e.Type.String(), e.Operation, e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error during %s on %s: %s",
		e.Type.String(), e.Operation, e.URL, e.Message)
}

// Unwrap returns the underlying error.
func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target of the same type.
func (e *AnalysisError) Is(target error) bool {
	t, ok := target.(*AnalysisError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// New creates a new AnalysisError.
func New(errType ErrorType, url, operation, message string, cause error) *AnalysisError {
	return &AnalysisError{
		Type:      errType,
		URL:       url,
		Operation: operation,
		Message:   message,
		Cause:     cause,
		Retryable: errType.IsRetryable(),
	}
}

// NewNavigationError creates a navigation error.
func NewNavigationError(url string, cause error) *AnalysisError {
	return New(Navigation, url, "navigate", "page could not be loaded", cause)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(url, operation string, cause error) *AnalysisError {
	return New(Timeout, url, operation, "operation timed out", cause)
}

// NewBrowserError creates a browser error.
func NewBrowserError(url, operation string, cause error) *AnalysisError {
	return New(Browser, url, operation, "browser operation failed", cause)
}

// NewQueryError creates a query error. Query failures are not retried: the
// page loaded but could not be read.
func NewQueryError(url, operation string, cause error) *AnalysisError {
	err := New(Query, url, operation, "page query failed", cause)
	err.Retryable = false
	return err
}

// NewConfigError creates a configuration error.
func NewConfigError(url, message string) *AnalysisError {
	return New(Config, url, "validate", message, nil)
}

// NewCancelledError creates a cancelled error.
func NewCancelledError(url, operation string) *AnalysisError {
	return New(Cancelled, url, operation, "operation cancelled", nil)
}

// Categorize determines the error type from a generic error.
func Categorize(err error, url, operation string) *AnalysisError {
	if err == nil {
		return nil
	}

	var analysisErr *AnalysisError
	if errors.As(err, &analysisErr) {
		return analysisErr
	}

	if errors.Is(err, context.Canceled) {
		return NewCancelledError(url, operation)
	}

	if isTimeout(err) {
		return NewTimeoutError(url, operation, err)
	}

	if isNetworkError(err) {
		return NewNavigationError(url, err)
	}

	return New(Unknown, url, operation, err.Error(), err)
}

// Classify returns the ErrorType err would be categorized as.
func Classify(err error) ErrorType {
	if err == nil {
		return Unknown
	}
	return Categorize(err, "", "").Type
}

// isTimeout checks if an error is a timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// isNetworkError checks if an error is network-related. Chrome reports
// navigation failures as net::ERR_* strings.
func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "net::ERR_") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host")
}

// IsRetryable checks if an error should be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var analysisErr *AnalysisError
	if errors.As(err, &analysisErr) {
		return analysisErr.Retryable
	}

	return isTimeout(err) || isNetworkError(err)
}

// GetErrorType extracts the error type from an error.
func GetErrorType(err error) ErrorType {
	var analysisErr *AnalysisError
	if errors.As(err, &analysisErr) {
		return analysisErr.Type
	}
	return Unknown
}
