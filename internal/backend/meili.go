package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/thaiproxy/searchproxy/internal/apierrors"
)

// MeiliBackend is an HTTP client for a Meilisearch deployment, guarded by
// a circuit breaker so a struggling instance fails fast instead of
// piling up latency on every dispatched variant.
type MeiliBackend struct {
	baseURL string
	apiKey  string
	index   string
	client  *http.Client
	breaker *apierrors.CircuitBreaker
}

// MeiliOption configures a MeiliBackend.
type MeiliOption func(*MeiliBackend)

// WithHTTPClient overrides the default http.Client (used by tests to
// inject a fake transport).
func WithHTTPClient(c *http.Client) MeiliOption {
	return func(m *MeiliBackend) { m.client = c }
}

// WithCircuitBreaker overrides the default circuit breaker.
func WithCircuitBreaker(cb *apierrors.CircuitBreaker) MeiliOption {
	return func(m *MeiliBackend) { m.breaker = cb }
}

// NewMeiliBackend constructs a client for the Meilisearch index at
// baseURL/indexes/index.
func NewMeiliBackend(baseURL, apiKey, index string, opts ...MeiliOption) *MeiliBackend {
	m := &MeiliBackend{
		baseURL: baseURL,
		apiKey:  apiKey,
		index:   index,
		client:  &http.Client{Timeout: 5 * time.Second},
		breaker: apierrors.NewCircuitBreaker("meilisearch"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MeiliBackend) Name() string { return "meilisearch" }

// Probe issues a lightweight HEAD request against the index endpoint to
// confirm Meilisearch is reachable, without running a real search (spec
// §4.J).
func (m *MeiliBackend) Probe(ctx context.Context) error {
	url := fmt.Sprintf("%s/indexes/%s", m.baseURL, m.index)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return apierrors.Internal("build meilisearch probe request", err)
	}
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return apierrors.New(apierrors.KindBackendUnavailable, "meilisearch probe failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return apierrors.New(apierrors.KindBackend5xx, fmt.Sprintf("meilisearch probe returned %d", resp.StatusCode), nil)
	}
	return nil
}

type meiliSearchRequest struct {
	Q      string `json:"q"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

type meiliSearchResponse struct {
	Hits []json.RawMessage `json:"hits"`
}

// Search posts query to Meilisearch's /indexes/{index}/search endpoint
// and maps its hits to SearchHit. Every failure is recorded against the
// circuit breaker and returned as an apierrors.ProxyError: BACKEND_5XX or
// BACKEND_4XX for a non-2xx response, BACKEND_TIMEOUT when ctx ends during
// the request, BACKEND_UNAVAILABLE for other transport errors and while
// the circuit is open, and INTERNAL for encoding or parsing failures.
func (m *MeiliBackend) Search(ctx context.Context, query string, opts Options) ([]SearchHit, error) {
	return apierrors.CircuitExecuteWithResult(m.breaker,
		func() ([]SearchHit, error) { return m.doSearch(ctx, query, opts) },
		func() ([]SearchHit, error) {
			return nil, apierrors.New(apierrors.KindBackendUnavailable,
				fmt.Sprintf("meilisearch circuit open for index %s", m.index), apierrors.ErrCircuitOpen)
		})
}

func (m *MeiliBackend) doSearch(ctx context.Context, query string, opts Options) ([]SearchHit, error) {
	body, err := json.Marshal(meiliSearchRequest{Q: query, Limit: opts.Limit, Offset: opts.Offset})
	if err != nil {
		return nil, apierrors.Internal("encode meilisearch request", err)
	}

	url := fmt.Sprintf("%s/indexes/%s/search", m.baseURL, m.index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apierrors.Internal("build meilisearch request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apierrors.New(apierrors.KindBackendTimeout, "meilisearch request timed out", err)
		}
		return nil, apierrors.New(apierrors.KindBackendUnavailable, "meilisearch request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierrors.Internal("read meilisearch response", err)
	}

	if resp.StatusCode >= 500 {
		return nil, apierrors.New(apierrors.KindBackend5xx, fmt.Sprintf("meilisearch returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return nil, apierrors.New(apierrors.KindBackend4xx, fmt.Sprintf("meilisearch returned %d", resp.StatusCode), nil)
	}

	var parsed meiliSearchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, apierrors.Internal("parse meilisearch response", err)
	}

	hits := make([]SearchHit, 0, len(parsed.Hits))
	for _, raw := range parsed.Hits {
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		id, _ := doc["id"].(string)
		score, _ := doc["_rankingScore"].(float64)
		hits = append(hits, SearchHit{
			DocID:      id,
			RawScore:   score,
			Highlights: extractHighlights(doc),
			Payload:    doc,
		})
	}
	return hits, nil
}

func extractHighlights(doc map[string]any) []string {
	formatted, ok := doc["_formatted"].(map[string]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range formatted {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
