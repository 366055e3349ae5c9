package httpapi

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/thaiproxy/searchproxy/internal/dictionary"
	"github.com/thaiproxy/searchproxy/internal/tokenizer"
)

// BackendProber is the minimal capability HealthChecker needs from a
// search backend: a cheap reachability probe, independent of running an
// actual search (spec §4.J "HEAD call succeeded").
type BackendProber interface {
	Probe(ctx context.Context) error
	Name() string
}

// HealthChecker implements the spec §4.J health contract: /health reports
// OK iff the dictionary has a snapshot (possibly empty), the PRIMARY
// segmenter passes a synthetic tokenization, and the backend answered a
// probe within the last backend_probe_interval_s. /health/detailed adds
// generation/entry-count/reload-time and request counters.
type HealthChecker struct {
	dict    *dictionary.Store
	tok     *tokenizer.Tokenizer
	backend BackendProber

	probeInterval time.Duration
	lastProbeOK   atomic.Bool
	lastProbeAt   atomic.Int64 // unix nanos

	requestsTotal   atomic.Int64
	requestsOK      atomic.Int64
	requestsFailed  atomic.Int64
	variantCounts   [4]atomic.Int64 // ORIGINAL, TOKENISED, COMPOUND_SPLIT, FALLBACK_CHAR
}

// NewHealthChecker constructs a HealthChecker. backend may be nil, in
// which case the backend leg of /health is reported healthy by
// omission (no backend configured, e.g. in tests).
func NewHealthChecker(dict *dictionary.Store, tok *tokenizer.Tokenizer, backend BackendProber, probeInterval time.Duration) *HealthChecker {
	if probeInterval <= 0 {
		probeInterval = 30 * time.Second
	}
	h := &HealthChecker{dict: dict, tok: tok, backend: backend, probeInterval: probeInterval}
	h.lastProbeOK.Store(true)
	return h
}

// RecordRequest updates the counters surfaced by /health/detailed's
// backend error rate and variant kind counts. kindIndex selects the
// variant kind counter in ORIGINAL, TOKENISED, COMPOUND_SPLIT,
// FALLBACK_CHAR order (out-of-range values count no kind); ok reports
// whether the request ultimately
// succeeded (spec §7 "whenever at least one variant yields results" is
// still a success here).
func (h *HealthChecker) RecordRequest(ok bool, kindIndex int) {
	h.requestsTotal.Add(1)
	if ok {
		h.requestsOK.Add(1)
	} else {
		h.requestsFailed.Add(1)
	}
	if kindIndex >= 0 && kindIndex < len(h.variantCounts) {
		h.variantCounts[kindIndex].Add(1)
	}
}

// probeBackend re-probes the backend if the configured interval has
// elapsed since the last probe, caching the result otherwise so /health
// never blocks a request on a slow backend round-trip.
func (h *HealthChecker) probeBackend(ctx context.Context) bool {
	if h.backend == nil {
		return true
	}
	last := h.lastProbeAt.Load()
	if time.Since(time.Unix(0, last)) < h.probeInterval {
		return h.lastProbeOK.Load()
	}

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	ok := h.backend.Probe(probeCtx) == nil

	h.lastProbeOK.Store(ok)
	h.lastProbeAt.Store(time.Now().UnixNano())
	return ok
}

// segmenterOK runs a cheap synthetic tokenization to confirm the
// tokenizer/segmenter chain is reachable (spec §4.J).
func (h *HealthChecker) segmenterOK(ctx context.Context) bool {
	_, err := h.tok.Tokenize(ctx, "สวัสดี")
	return err == nil
}

type healthResponse struct {
	Status   string `json:"status"`
	Degraded bool   `json:"degraded"`
}

// handleHealth implements GET /health (spec §4.J): OK iff a dictionary
// snapshot exists, the segmenter chain is reachable, and the backend
// probe succeeded within the configured interval.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dictOK := s.dict.Snapshot() != nil
	segOK := s.health.segmenterOK(r.Context())
	backendOK := s.health.probeBackend(r.Context())

	status := http.StatusOK
	state := "ok"
	if !dictOK || !segOK || !backendOK {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}

	writeJSON(w, status, healthResponse{Status: state, Degraded: s.dict.Degraded()})
}

type healthDetailedResponse struct {
	Status              string           `json:"status"`
	Degraded            bool             `json:"degraded"`
	DictionaryGeneration uint64          `json:"dictionary_generation"`
	DictionaryEntries   int              `json:"dictionary_entries"`
	LastReload          *time.Time       `json:"last_reload,omitempty"`
	RequestsTotal       int64            `json:"requests_total"`
	RequestsOK          int64            `json:"requests_ok"`
	RequestsFailed      int64            `json:"requests_failed"`
	BackendErrorRate    float64          `json:"backend_error_rate"`
	VariantKindCounts   map[string]int64 `json:"variant_kind_counts"`
	BackendName         string           `json:"backend_name,omitempty"`
}

var variantKindNames = [4]string{"ORIGINAL", "TOKENISED", "COMPOUND_SPLIT", "FALLBACK_CHAR"}

// handleHealthDetailed implements GET /health/detailed (spec §4.J).
func (s *Server) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	dictOK := s.dict.Snapshot() != nil
	segOK := s.health.segmenterOK(r.Context())
	backendOK := s.health.probeBackend(r.Context())

	state := "ok"
	if !dictOK || !segOK || !backendOK {
		state = "unhealthy"
	}

	var lastReload *time.Time
	if t := s.dict.LastReload(); !t.IsZero() {
		lastReload = &t
	}

	total := s.health.requestsTotal.Load()
	failed := s.health.requestsFailed.Load()
	var errRate float64
	if total > 0 {
		errRate = float64(failed) / float64(total)
	}

	counts := make(map[string]int64, len(variantKindNames))
	for i, name := range variantKindNames {
		counts[name] = s.health.variantCounts[i].Load()
	}

	backendName := ""
	if s.health.backend != nil {
		backendName = s.health.backend.Name()
	}

	writeJSON(w, http.StatusOK, healthDetailedResponse{
		Status:               state,
		Degraded:             s.dict.Degraded(),
		DictionaryGeneration: s.dict.Generation(),
		DictionaryEntries:    s.dict.Count(),
		LastReload:           lastReload,
		RequestsTotal:        total,
		RequestsOK:           s.health.requestsOK.Load(),
		RequestsFailed:       failed,
		BackendErrorRate:     errRate,
		VariantKindCounts:    counts,
		BackendName:          backendName,
	})
}
