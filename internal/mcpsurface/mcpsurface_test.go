package mcpsurface

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thaiproxy/searchproxy/internal/backend"
	"github.com/thaiproxy/searchproxy/internal/executor"
	"github.com/thaiproxy/searchproxy/internal/proxy"
	"github.com/thaiproxy/searchproxy/internal/query"
	"github.com/thaiproxy/searchproxy/internal/segmenter"
	"github.com/thaiproxy/searchproxy/internal/tokenizer"
	"github.com/thaiproxy/searchproxy/internal/trie"
)

type fixedSnapshot struct{ snap *trie.Snapshot }

func (f fixedSnapshot) Snapshot() *trie.Snapshot { return f.snap }

type stubBackend struct {
	hits map[string][]backend.SearchHit
	err  error
}

func (s *stubBackend) Name() string                    { return "stub" }
func (s *stubBackend) Probe(ctx context.Context) error  { return s.err }
func (s *stubBackend) Search(ctx context.Context, q string, opts backend.Options) ([]backend.SearchHit, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.hits[q], nil
}

func newTestServer(t *testing.T, hits map[string][]backend.SearchHit) *Server {
	t.Helper()
	snap, err := trie.Build(nil, 1)
	require.NoError(t, err)
	reg := segmenter.NewRegistry("primary", nil, 50*time.Millisecond)
	tok := tokenizer.New(fixedSnapshot{snap}, reg)
	processor := query.New(tok)
	b := &stubBackend{hits: hits}
	p := proxy.New(processor, executor.New(b))
	return New(tok, p)
}

func TestTokenizeHandler_RejectsEmptyText(t *testing.T) {
	srv := newTestServer(t, nil)
	_, _, err := srv.tokenizeHandler(context.Background(), nil, TokenizeInput{Text: ""})
	require.Error(t, err)
}

func TestTokenizeHandler_ReturnsTokens(t *testing.T) {
	srv := newTestServer(t, nil)
	_, out, err := srv.tokenizeHandler(context.Background(), nil, TokenizeInput{Text: "สวัสดี"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Tokens)
	assert.NotEmpty(t, out.Engine)
}

func TestSearchHandler_RejectsEmptyQuery(t *testing.T) {
	srv := newTestServer(t, nil)
	_, _, err := srv.searchHandler(context.Background(), nil, SearchInput{Query: ""})
	require.Error(t, err)
}

func TestSearchHandler_DefaultsLimitAndReturnsHits(t *testing.T) {
	srv := newTestServer(t, map[string][]backend.SearchHit{
		"สวัสดี": {{DocID: "doc1", RawScore: 1.0}},
	})
	_, out, err := srv.searchHandler(context.Background(), nil, SearchInput{Query: "สวัสดี"})
	require.NoError(t, err)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, "doc1", out.Results[0].DocID)
}
