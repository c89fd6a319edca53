// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Data errors
	ErrNoData         = &Error{Code: "NO_DATA", Message: "no price data available"}
	ErrSeriesMismatch = &Error{Code: "SERIES_MISMATCH", Message: "price channels are not aligned"}

	// Provider errors
	ErrProviderFailed   = &Error{Code: "PROVIDER_FAILED", Message: "price provider failed"}
	ErrProviderNotFound = &Error{Code: "PROVIDER_NOT_FOUND", Message: "price provider not registered"}

	// Strategy errors
	ErrUnknownStrategy = &Error{Code: "UNKNOWN_STRATEGY", Message: "unknown strategy"}
	ErrInvalidParams   = &Error{Code: "INVALID_PARAMS", Message: "invalid strategy parameters"}
	ErrBacktestFailed  = &Error{Code: "BACKTEST_FAILED", Message: "backtest failed"}
	ErrIDIssuer        = &Error{Code: "ID_ISSUER_FAILED", Message: "could not issue run identifier"}

	// Storage errors
	ErrResultNotFound = &Error{Code: "RESULT_NOT_FOUND", Message: "result not found"}
	ErrJobNotFound    = &Error{Code: "JOB_NOT_FOUND", Message: "job not found"}
	ErrStorageFailed  = &Error{Code: "STORAGE_FAILED", Message: "storage operation failed"}

	// Notifier errors
	ErrNotifierFailed = &Error{Code: "NOTIFIER_FAILED", Message: "notifier failed"}

	// API errors
	ErrUnauthorized = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid API key"}
	ErrBadRequest   = &Error{Code: "BAD_REQUEST", Message: "malformed request"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
