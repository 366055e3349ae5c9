package apierrors

import (
	"errors"
	"testing"
)

func TestProxyError_Unwrap_PreservesOriginalError(t *testing.T) {
	originalErr := errors.New("connection refused")

	wrapped := New(KindBackendUnavailable, "backend unreachable", originalErr)

	if !errors.Is(wrapped, originalErr) {
		t.Errorf("expected Is() to find wrapped cause")
	}
	if errors.Unwrap(wrapped) != originalErr {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(wrapped), originalErr)
	}
}

func TestProxyError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		kind    Kind
		message string
		want    string
	}{
		{KindInvalidInput, "query too long", "[INVALID_INPUT] query too long"},
		{KindBackendTimeout, "variant timed out", "[BACKEND_TIMEOUT] variant timed out"},
	}

	for _, tt := range tests {
		err := New(tt.kind, tt.message, nil)
		if got := err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestProxyError_Error_IncludesVariant(t *testing.T) {
	err := New(KindBackendTimeout, "timed out", nil).WithVariant("COMPOUND_SPLIT")
	want := "[BACKEND_TIMEOUT:COMPOUND_SPLIT] timed out"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestProxyError_Is_MatchesByKind(t *testing.T) {
	err1 := New(KindBackendTimeout, "variant A timed out", nil)
	err2 := New(KindBackendTimeout, "variant B timed out", nil)

	if !errors.Is(err1, err2) {
		t.Errorf("expected errors with same kind to match via errors.Is")
	}
}

func TestProxyError_Is_DoesNotMatchDifferentKinds(t *testing.T) {
	err1 := New(KindBackendTimeout, "timed out", nil)
	err2 := New(KindInvalidInput, "bad input", nil)

	if errors.Is(err1, err2) {
		t.Errorf("expected errors with different kinds not to match")
	}
}

func TestProxyError_WithDetail_AddsContext(t *testing.T) {
	err := New(KindInvalidInput, "limit out of range", nil).
		WithDetail("field", "limit").
		WithDetail("max", 100)

	if err.Details["field"] != "limit" {
		t.Errorf("Details[field] = %v, want limit", err.Details["field"])
	}
	if err.Details["max"] != 100 {
		t.Errorf("Details[max] = %v, want 100", err.Details["max"])
	}
}

func TestCategoryFromKind(t *testing.T) {
	tests := []struct {
		kind Kind
		want Category
	}{
		{KindInvalidInput, CategoryValidation},
		{KindDictionaryLoadFailed, CategoryDictionary},
		{KindSegmenterFailed, CategorySegmenter},
		{KindBackendTimeout, CategoryBackend},
		{KindBackendUnavailable, CategoryBackend},
		{KindBackpressure, CategoryCapacity},
		{KindRequestDeadlineExceeded, CategoryDeadline},
		{KindInternal, CategoryInternal},
	}

	for _, tt := range tests {
		if got := categoryFromKind(tt.kind); got != tt.want {
			t.Errorf("categoryFromKind(%s) = %s, want %s", tt.kind, got, tt.want)
		}
	}
}

func TestSeverityFromKind(t *testing.T) {
	if severityFromKind(KindInternal) != SeverityFatal {
		t.Errorf("expected INTERNAL to be fatal severity")
	}
	if severityFromKind(KindInvalidInput) != SeverityInfo {
		t.Errorf("expected INVALID_INPUT to be info severity")
	}
}

func TestIsRetryableKind(t *testing.T) {
	if !isRetryableKind(KindBackendTimeout) {
		t.Errorf("expected BACKEND_TIMEOUT to be retryable")
	}
	if isRetryableKind(KindInvalidInput) {
		t.Errorf("expected INVALID_INPUT not to be retryable")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindInvalidInput, 400},
		{KindUnauthorized, 401},
		{KindNotFound, 404},
		{KindConflict, 409},
		{KindBackpressure, 429},
		{KindBackendUnavailable, 502},
		{KindDegraded, 503},
		{KindRequestDeadlineExceeded, 504},
		{KindInternal, 500},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.kind); got != tt.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := New(KindBackendTimeout, "timeout", nil)
	notRetryable := New(KindInvalidInput, "bad", nil)

	if !IsRetryable(retryable) {
		t.Errorf("expected BACKEND_TIMEOUT error to be retryable")
	}
	if IsRetryable(notRetryable) {
		t.Errorf("expected INVALID_INPUT error not to be retryable")
	}
	if IsRetryable(nil) {
		t.Errorf("expected nil error not to be retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Errorf("expected plain error not to be retryable")
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(New(KindInternal, "boom", nil)) {
		t.Errorf("expected INTERNAL error to be fatal")
	}
	if IsFatal(New(KindInvalidInput, "bad", nil)) {
		t.Errorf("expected INVALID_INPUT error not to be fatal")
	}
}
