package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory classifies scanner errors for propagation policy decisions.
type ErrorCategory string

const (
	// Fatal at startup
	ErrorCategoryConnect ErrorCategory = "CONNECT"
	ErrorCategoryConfig  ErrorCategory = "CONFIG"

	// Recoverable inside a scan tick
	ErrorCategoryTimeout             ErrorCategory = "TIMEOUT"
	ErrorCategoryRateLimit           ErrorCategory = "RATE_LIMIT"
	ErrorCategoryUnavailable         ErrorCategory = "UNAVAILABLE"
	ErrorCategoryAuth                ErrorCategory = "AUTH"
	ErrorCategoryInvalidData         ErrorCategory = "INVALID_DATA"
	ErrorCategoryInsufficientHistory ErrorCategory = "INSUFFICIENT_HISTORY"
	ErrorCategoryStrategy            ErrorCategory = "STRATEGY"
	ErrorCategoryDispatch            ErrorCategory = "DISPATCH"
	ErrorCategoryTransient           ErrorCategory = "TRANSIENT"
	ErrorCategoryUnknown             ErrorCategory = "UNKNOWN"
)

// ScanError is a categorized error with component and operation context.
type ScanError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ScanError) Unwrap() error {
	return e.Underlying
}

// Fatal reports whether the error should stop the scanner at startup.
func (e *ScanError) Fatal() bool {
	return e.Category == ErrorCategoryConnect || e.Category == ErrorCategoryConfig
}

// New creates a categorized scan error.
func New(category ErrorCategory, component, operation, message string) *ScanError {
	return &ScanError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
	}
}

// Wrap wraps an existing error with scanner error context.
func Wrap(err error, category ErrorCategory, component, operation string) *ScanError {
	if err == nil {
		return nil
	}
	return &ScanError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
	}
}

// CategoryOf extracts the category of err, or ErrorCategoryUnknown.
func CategoryOf(err error) ErrorCategory {
	var se *ScanError
	if stderrors.As(err, &se) {
		return se.Category
	}
	return ErrorCategoryUnknown
}

func is(err error, cat ErrorCategory) bool {
	return CategoryOf(err) == cat
}

// IsTimeout reports whether err is a provider deadline expiry.
func IsTimeout(err error) bool { return is(err, ErrorCategoryTimeout) }

// IsRateLimited reports whether err is an upstream rate-limit rejection.
func IsRateLimited(err error) bool { return is(err, ErrorCategoryRateLimit) }

// IsUnavailable reports whether err indicates the provider cannot serve now.
func IsUnavailable(err error) bool { return is(err, ErrorCategoryUnavailable) }

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool { return is(err, ErrorCategoryAuth) }

// IsInvalidData reports whether err is an indicator-engine data rejection.
func IsInvalidData(err error) bool { return is(err, ErrorCategoryInvalidData) }

// IsInsufficientHistory reports whether err is a too-short-buffer rejection.
func IsInsufficientHistory(err error) bool { return is(err, ErrorCategoryInsufficientHistory) }

// Constructors for the common cases.

// NewConnectError marks a terminal upstream session failure.
func NewConnectError(component, operation string, err error) *ScanError {
	return Wrap(err, ErrorCategoryConnect, component, operation)
}

// NewTimeoutError marks a per-call deadline expiry.
func NewTimeoutError(component, operation string, err error) *ScanError {
	return Wrap(err, ErrorCategoryTimeout, component, operation)
}

// NewRateLimitError marks an upstream rate-limit signal.
func NewRateLimitError(component, operation string, err error) *ScanError {
	return Wrap(err, ErrorCategoryRateLimit, component, operation)
}

// NewInvalidDataError marks a data-quality violation with its reason.
func NewInvalidDataError(component, reason string) *ScanError {
	return New(ErrorCategoryInvalidData, component, "validate", reason)
}

// NewInsufficientHistoryError marks a buffer that is too short to enrich.
func NewInsufficientHistoryError(component string, have, want int) *ScanError {
	return New(ErrorCategoryInsufficientHistory, component, "enrich",
		fmt.Sprintf("have %d rows, need %d", have, want))
}

// NewStrategyError marks an infrastructure failure inside a detector.
// Detectors that simply find no setup return nil signals, never errors.
func NewStrategyError(strategy string, err error) *ScanError {
	return Wrap(err, ErrorCategoryStrategy, strategy, "detect")
}

// NewConfigError marks an invalid configuration value; always fatal.
func NewConfigError(operation, message string) *ScanError {
	return New(ErrorCategoryConfig, "config", operation, message)
}

// NewDispatchError marks a sink delivery failure.
func NewDispatchError(sink string, err error) *ScanError {
	return Wrap(err, ErrorCategoryDispatch, sink, "accept")
}
