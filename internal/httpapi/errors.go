package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/thaiproxy/searchproxy/internal/apierrors"
)

// errorResponse is the spec §6 error response shape, shared by every
// endpoint.
type errorResponse struct {
	Error          string         `json:"error"`
	Message        string         `json:"message"`
	Details        map[string]any `json:"details,omitempty"`
	FallbackUsed   bool           `json:"fallback_used,omitempty"`
	PartialResults any            `json:"partial_results,omitempty"`
}

// writeError maps err to the HTTP status table in spec §7/§6 and writes
// the standard error body. This is the single point that translates
// apierrors.Kind into an HTTP status.
func writeError(w http.ResponseWriter, err error) {
	pe, ok := err.(*apierrors.ProxyError)
	if !ok {
		pe = apierrors.Internal(err.Error(), err)
	}

	status := apierrors.HTTPStatus(pe.Kind)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   string(pe.Kind),
		Message: pe.Message,
		Details: pe.Details,
	})
}

func unauthorized(message string) *apierrors.ProxyError {
	return apierrors.New(apierrors.KindUnauthorized, message, nil)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
