package apierrors

import (
	"encoding/json"
)

// Response is the §6 error response shape returned by every HTTP endpoint
// on failure: {error, message, details?, fallback_used?, partial_results?}.
type Response struct {
	Error          string         `json:"error"`
	Message        string         `json:"message"`
	Details        map[string]any `json:"details,omitempty"`
	FallbackUsed   bool           `json:"fallback_used,omitempty"`
	PartialResults []any          `json:"partial_results,omitempty"`
}

// ToResponse converts a ProxyError into the wire error response shape.
func ToResponse(err error) Response {
	if err == nil {
		return Response{Error: string(KindInternal), Message: "unknown error"}
	}

	pe, ok := err.(*ProxyError)
	if !ok {
		pe = Wrap(KindInternal, err)
	}

	return Response{
		Error:   string(pe.Kind),
		Message: pe.Message,
		Details: pe.Details,
	}
}

// FormatJSON returns a JSON representation of the error in the §6 shape.
// Suitable for writing directly as an HTTP response body.
func FormatJSON(err error) ([]byte, error) {
	resp := ToResponse(err)
	return json.Marshal(resp)
}

// FormatForLog formats an error for structured logging via slog.
// Returns key-value pairs suitable as slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	pe, ok := err.(*ProxyError)
	if !ok {
		return map[string]any{
			"error": err.Error(),
		}
	}

	result := map[string]any{
		"error_kind": string(pe.Kind),
		"message":    pe.Message,
		"category":   string(pe.Category),
		"severity":   string(pe.Severity),
		"retryable":  pe.Retryable,
	}

	if pe.Variant != "" {
		result["variant"] = pe.Variant
	}

	if pe.Cause != nil {
		result["cause"] = pe.Cause.Error()
	}

	for k, v := range pe.Details {
		result["detail_"+k] = v
	}

	return result
}
