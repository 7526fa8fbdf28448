package errors

import (
	"errors"
	"fmt"
)

// SupaError is the structured error type for SupaQuery.
// It provides rich context for error handling, logging, and user presentation.
type SupaError struct {
	// Code is the unique error code (e.g., "ERR_304_GRAPH_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Dependency, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SupaError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SupaError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SupaError.
func (e *SupaError) Is(target error) bool {
	if t, ok := target.(*SupaError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SupaError) WithDetail(key, value string) *SupaError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *SupaError) WithSuggestion(suggestion string) *SupaError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SupaError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SupaError {
	return &SupaError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SupaError from an existing error.
// The error's message becomes the SupaError message.
func Wrap(code string, err error) *SupaError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SupaError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// InputError creates a validation-related error for malformed requests.
func InputError(message string, cause error) *SupaError {
	return New(ErrCodeInvalidInput, message, cause)
}

// UnavailableError creates a dependency-unreachable error for the given
// dependency ("llm" or "graph"). These errors are retryable.
func UnavailableError(dependency, message string, cause error) *SupaError {
	code := ErrCodeLLMUnavailable
	if dependency == "graph" {
		code = ErrCodeGraphUnavailable
	}
	return New(code, message, cause).WithDetail("dependency", dependency)
}

// TimeoutError creates an operation-timeout error for the given dependency.
func TimeoutError(dependency, message string, cause error) *SupaError {
	code := ErrCodeLLMTimeout
	if dependency == "graph" {
		code = ErrCodeGraphTimeout
	}
	return New(code, message, cause).WithDetail("dependency", dependency)
}

// InconsistencyError creates an index-inconsistency error. These are logged
// and flagged for the maintenance pass, never surfaced to callers.
func InconsistencyError(message string, cause error) *SupaError {
	return New(ErrCodeIndexInconsistent, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SupaError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if a SupaError in the chain carries the Retryable flag.
func IsRetryable(err error) bool {
	var se *SupaError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	var se *SupaError
	if errors.As(err, &se) {
		return se.Severity == SeverityFatal
	}
	return false
}

// IsInput reports whether the error is a malformed-request error.
func IsInput(err error) bool {
	return GetCategory(err) == CategoryValidation || GetCategory(err) == CategoryConfig
}

// IsTimeout reports whether the error is an operation-specific timeout.
func IsTimeout(err error) bool {
	switch GetCode(err) {
	case ErrCodeLLMTimeout, ErrCodeGraphTimeout:
		return true
	}
	return false
}

// IsUnavailable reports whether a dependency is unreachable.
func IsUnavailable(err error) bool {
	switch GetCode(err) {
	case ErrCodeLLMUnavailable, ErrCodeGraphUnavailable:
		return true
	}
	return false
}

// IsInconsistency reports whether the vector index and graph store disagree.
func IsInconsistency(err error) bool {
	return GetCode(err) == ErrCodeIndexInconsistent
}

// GetCode extracts the error code from a SupaError anywhere in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var se *SupaError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a SupaError anywhere in the chain.
// Returns empty string if there is none.
func GetCategory(err error) Category {
	var se *SupaError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

// ExitCode maps an error to the process exit code contract:
// 0 success, 2 configuration/input error, 3 dependency unavailable.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch GetCategory(err) {
	case CategoryConfig, CategoryValidation:
		return 2
	case CategoryDependency:
		return 3
	}
	return 1
}
