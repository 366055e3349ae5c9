package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/thaiproxy/searchproxy/internal/apierrors"
	"github.com/thaiproxy/searchproxy/internal/tokenizer"
)

type tokenizeRequest struct {
	Text string `json:"text"`
}

type tokenSpan struct {
	Text       string `json:"text"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	IsCompound bool   `json:"is_compound"`
}

type tokenizationResult struct {
	Original  string      `json:"original"`
	Tokens    []tokenSpan `json:"tokens"`
	Engine    string      `json:"engine"`
	ElapsedMs int64       `json:"elapsed_ms"`
}

// handleTokenize implements POST /api/v1/tokenize (spec §6).
func (s *Server) handleTokenize(w http.ResponseWriter, r *http.Request) {
	var req tokenizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierrors.InvalidInput("malformed JSON body", err))
		return
	}
	if err := validateText("text", req.Text); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.tok.Tokenize(r.Context(), req.Text)
	if err != nil {
		writeError(w, apierrors.SegmenterFailed("tokenization failed", err))
		return
	}

	writeJSON(w, http.StatusOK, toTokenizationResult(result))
}

// handleTokenizeCompound implements POST /api/v1/tokenize/compound: the
// same tokenization, but the response is identical — IsCompound spans are
// always annotated on every TokenizationResult, this endpoint exists to
// give API consumers a stable name for "I specifically want compound
// annotations" per spec §6.
func (s *Server) handleTokenizeCompound(w http.ResponseWriter, r *http.Request) {
	s.handleTokenize(w, r)
}

func toTokenizationResult(res tokenizer.Result) tokenizationResult {
	spans := make([]tokenSpan, len(res.Tokens))
	for i, tok := range res.Tokens {
		spans[i] = tokenSpan{
			Text:       tok,
			Start:      res.Spans[i][0],
			End:        res.Spans[i][1],
			IsCompound: res.IsCompound[i],
		}
	}
	return tokenizationResult{
		Original:  res.Original,
		Tokens:    spans,
		Engine:    res.Engine,
		ElapsedMs: res.ElapsedMs,
	}
}
