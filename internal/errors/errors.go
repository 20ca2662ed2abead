package errors

import (
	"fmt"
)

// SentinelError is the structured error type for Sentinel.
// It provides rich context for error handling, logging, and user presentation.
type SentinelError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Embedding, etc.).
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
func (e *SentinelError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SentinelError) Unwrap() error {
	return e.Cause
}

// Is matches the target error by code, enabling errors.Is().
func (e *SentinelError) Is(target error) bool {
	if t, ok := target.(*SentinelError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SentinelError) WithDetail(key, value string) *SentinelError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *SentinelError) WithSuggestion(suggestion string) *SentinelError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SentinelError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SentinelError {
	return &SentinelError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SentinelError from an existing error.
// The error's message becomes the SentinelError message.
func Wrap(code string, err error) *SentinelError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// InputError creates a validation error for bad caller input.
func InputError(message string, cause error) *SentinelError {
	return New(ErrCodeInvalidInput, message, cause)
}

// CorruptionError creates an index corruption error for the given path.
// The affected file must be reindexed from source.
func CorruptionError(path string, cause error) *SentinelError {
	return New(ErrCodeIndexCorrupt, fmt.Sprintf("index corrupt for %s", path), cause).
		WithDetail("path", path).
		WithSuggestion("reindex the file to rebuild its entries")
}

// EmbeddingUnavailable creates an error for an unreachable embedding provider.
// Search falls back to lexical-only when it sees this.
func EmbeddingUnavailable(provider string, cause error) *SentinelError {
	return New(ErrCodeEmbeddingUnavailable, fmt.Sprintf("embedding provider %s unavailable", provider), cause).
		WithDetail("provider", provider)
}

// QueryError creates an error for a lexical query that cannot be executed.
func QueryError(message string, cause error) *SentinelError {
	return New(ErrCodeInvalidQuery, message, cause)
}

// ConflictError creates a concurrency conflict error.
func ConflictError(message string, cause error) *SentinelError {
	return New(ErrCodeConcurrencyConflict, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SentinelError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*SentinelError); ok {
		return se.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*SentinelError); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a SentinelError.
// Returns empty string if not a SentinelError.
func GetCode(err error) string {
	if se, ok := err.(*SentinelError); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a SentinelError.
func GetCategory(err error) Category {
	if se, ok := err.(*SentinelError); ok {
		return se.Category
	}
	return ""
}
