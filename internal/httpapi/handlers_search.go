package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/thaiproxy/searchproxy/internal/apierrors"
	"github.com/thaiproxy/searchproxy/internal/proxy"
	"github.com/thaiproxy/searchproxy/internal/query"
	"github.com/thaiproxy/searchproxy/internal/ranker"
	"github.com/thaiproxy/searchproxy/internal/telemetry"
)

type searchRequest struct {
	Query                   string         `json:"query"`
	IndexName               string         `json:"index_name"`
	Limit                   int            `json:"limit,omitempty"`
	Offset                  int            `json:"offset,omitempty"`
	Filters                 map[string]any `json:"filters,omitempty"`
	Sort                    []string       `json:"sort,omitempty"`
	IncludeTokenizationInfo bool           `json:"include_tokenization_info,omitempty"`
}

type searchHitResponse struct {
	DocID             string         `json:"doc_id"`
	FinalScore        float64        `json:"final_score"`
	ProducingVariants []query.Kind   `json:"producing_variants"`
	Highlights        []string       `json:"highlights,omitempty"`
	Payload           map[string]any `json:"payload,omitempty"`
}

type searchResponse struct {
	RequestID        string              `json:"request_id"`
	Hits             []searchHitResponse `json:"hits"`
	TotalCount       int                 `json:"total_count"`
	FallbackUsed     bool                `json:"fallback_used"`
	FailedKinds      []query.Kind        `json:"failed_kinds,omitempty"`
	TokenizationInfo []tokenizationInfo  `json:"tokenization_info,omitempty"`
}

// tokenizationInfo reports one query variant the proxy generated and
// dispatched (spec §4.E), surfaced only when the caller sets
// include_tokenization_info on the request.
type tokenizationInfo struct {
	Text   string     `json:"text"`
	Kind   query.Kind `json:"kind"`
	Weight float64    `json:"weight"`
}

// handleSearch implements POST /api/v1/search (spec §6).
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierrors.InvalidInput("malformed JSON body", err))
		return
	}

	resp, err := s.runSearch(r, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type batchSearchRequest struct {
	Queries   []string       `json:"queries"`
	IndexName string         `json:"index_name"`
	Options   *searchRequest `json:"options,omitempty"`
}

// handleBatchSearch implements POST /api/v1/batch-search (spec §6): each
// query runs through the same single-request path, independently, and the
// response list is parallel to the input queries.
func (s *Server) handleBatchSearch(w http.ResponseWriter, r *http.Request) {
	var req batchSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierrors.InvalidInput("malformed JSON body", err))
		return
	}
	if len(req.Queries) == 0 {
		writeError(w, apierrors.InvalidInput("queries must not be empty", nil))
		return
	}

	results := make([]any, len(req.Queries))
	for i, q := range req.Queries {
		single := searchRequest{Query: q, IndexName: req.IndexName}
		if req.Options != nil {
			single.Limit = req.Options.Limit
			single.Offset = req.Options.Offset
			single.Filters = req.Options.Filters
			single.Sort = req.Options.Sort
			single.IncludeTokenizationInfo = req.Options.IncludeTokenizationInfo
		}

		resp, err := s.runSearch(r, single)
		if err != nil {
			pe, ok := err.(*apierrors.ProxyError)
			if !ok {
				pe = apierrors.Internal(err.Error(), err)
			}
			results[i] = errorResponse{Error: string(pe.Kind), Message: pe.Message, Details: pe.Details}
			continue
		}
		results[i] = resp
	}

	writeJSON(w, http.StatusOK, results)
}

func (s *Server) runSearch(r *http.Request, req searchRequest) (searchResponse, error) {
	if err := validateText("query", req.Query); err != nil {
		return searchResponse{}, err
	}
	limit, offset, err := validateLimitOffset(req.Limit, req.Offset)
	if err != nil {
		return searchResponse{}, err
	}

	started := time.Now()
	resp, err := s.proxy.Search(r.Context(), proxy.Request{Query: req.Query, Limit: limit, Offset: offset})
	if err != nil {
		s.health.RecordRequest(false, variantKindIndex(query.Original))
		s.mx.RequestsTotal.WithLabelValues("failed").Inc()
		s.mx.RequestDuration.WithLabelValues("failed").Observe(time.Since(started).Seconds())
		return searchResponse{}, err
	}
	topKind := topVariantKind(resp.Hits)
	s.health.RecordRequest(true, variantKindIndex(topKind))
	state := "ok"
	if resp.FallbackUsed {
		state = "partial"
	}
	s.mx.RequestsTotal.WithLabelValues(state).Inc()
	s.mx.RequestDuration.WithLabelValues(state).Observe(time.Since(started).Seconds())

	if s.qm != nil {
		s.qm.Record(telemetry.QueryEvent{
			Query:       req.Query,
			QueryType:   telemetry.QueryType(topKind),
			ResultCount: len(resp.Hits),
			Latency:     time.Since(started),
			Timestamp:   started,
		})
	}

	hits := make([]searchHitResponse, len(resp.Hits))
	for i, h := range resp.Hits {
		hits[i] = searchHitResponse{
			DocID:             h.DocID,
			FinalScore:        h.FinalScore,
			ProducingVariants: h.ProducingVariants,
			Highlights:        h.Highlights,
			Payload:           h.Payload,
		}
	}

	out := searchResponse{
		RequestID:    resp.RequestID,
		Hits:         hits,
		TotalCount:   resp.TotalCount,
		FallbackUsed: resp.FallbackUsed,
		FailedKinds:  resp.FailedKinds,
	}
	if req.IncludeTokenizationInfo {
		out.TokenizationInfo = make([]tokenizationInfo, len(resp.Variants))
		for i, v := range resp.Variants {
			out.TokenizationInfo[i] = tokenizationInfo{Text: v.Text, Kind: v.Kind, Weight: v.Weight}
		}
	}
	return out, nil
}

// topVariantKind returns the producing kind of the top-ranked hit, used to
// attribute a request to a query.Kind for /health/detailed's variant kind
// counters. Falls back to ORIGINAL when there are no hits.
func topVariantKind(hits []ranker.Hit) query.Kind {
	if len(hits) == 0 || len(hits[0].ProducingVariants) == 0 {
		return query.Original
	}
	return hits[0].ProducingVariants[0]
}

func variantKindIndex(k query.Kind) int {
	switch k {
	case query.Original:
		return 0
	case query.Tokenised:
		return 1
	case query.CompoundSplit:
		return 2
	case query.FallbackChar:
		return 3
	default:
		return 0
	}
}
