package apierrors

import (
	"fmt"
)

// ProxyError is the structured error type used across every pipeline stage.
// It carries enough context for HTTP mapping, logging, and the §6 error
// response shape without requiring callers to do string matching.
type ProxyError struct {
	// Kind is the stable, user-facing classification (e.g. "BACKEND_TIMEOUT").
	Kind Kind

	// Message is the human-readable error message.
	Message string

	// Category groups Kind for metrics aggregation.
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs, surfaced as
	// the `details` field of the HTTP error response.
	Details map[string]any

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Variant names the query variant (see internal/query) that produced
	// this error, when applicable. Empty for request- or orchestrator-level
	// errors.
	Variant string
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	if e.Variant != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Variant, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ProxyError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by Kind, enabling
// errors.Is() to work with ProxyError.
func (e *ProxyError) Is(target error) bool {
	if t, ok := target.(*ProxyError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// WithDetail adds a key-value detail to the error. Returns the error for
// method chaining.
func (e *ProxyError) WithDetail(key string, value any) *ProxyError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithVariant annotates the error with the query variant that produced it.
func (e *ProxyError) WithVariant(variant string) *ProxyError {
	e.Variant = variant
	return e
}

// New creates a new ProxyError with the given kind and message. Category,
// severity, and retryable flag are derived from the kind.
func New(kind Kind, message string, cause error) *ProxyError {
	return &ProxyError{
		Kind:      kind,
		Message:   message,
		Category:  categoryFromKind(kind),
		Severity:  severityFromKind(kind),
		Cause:     cause,
		Retryable: isRetryableKind(kind),
	}
}

// Wrap creates a ProxyError from an existing error, preserving its message.
func Wrap(kind Kind, err error) *ProxyError {
	if err == nil {
		return nil
	}
	return New(kind, err.Error(), err)
}

// InvalidInput creates a validation error. Never retried.
func InvalidInput(message string, cause error) *ProxyError {
	return New(KindInvalidInput, message, cause)
}

// DictionaryLoadFailed creates an error for a malformed dictionary source.
func DictionaryLoadFailed(message string, cause error) *ProxyError {
	return New(KindDictionaryLoadFailed, message, cause)
}

// SegmenterFailed creates an error recording that every segmenter variant
// was exhausted down to CHAR_LEVEL.
func SegmenterFailed(message string, cause error) *ProxyError {
	return New(KindSegmenterFailed, message, cause)
}

// Internal creates an unexpected internal error.
func Internal(message string, cause error) *ProxyError {
	return New(KindInternal, message, cause)
}

// IsRetryable reports whether err is a ProxyError with Retryable set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if pe, ok := err.(*ProxyError); ok {
		return pe.Retryable
	}
	return false
}

// IsFatal reports whether err is a ProxyError with fatal severity.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if pe, ok := err.(*ProxyError); ok {
		return pe.Severity == SeverityFatal
	}
	return false
}

// GetKind extracts the Kind from a ProxyError, or "" if err is not one.
func GetKind(err error) Kind {
	if pe, ok := err.(*ProxyError); ok {
		return pe.Kind
	}
	return ""
}

// GetCategory extracts the Category from a ProxyError, or "" if err is not one.
func GetCategory(err error) Category {
	if pe, ok := err.(*ProxyError); ok {
		return pe.Category
	}
	return ""
}
