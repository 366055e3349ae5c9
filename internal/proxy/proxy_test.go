package proxy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thaiproxy/searchproxy/internal/apierrors"
	"github.com/thaiproxy/searchproxy/internal/backend"
	"github.com/thaiproxy/searchproxy/internal/cache"
	"github.com/thaiproxy/searchproxy/internal/executor"
	"github.com/thaiproxy/searchproxy/internal/query"
	"github.com/thaiproxy/searchproxy/internal/segmenter"
	"github.com/thaiproxy/searchproxy/internal/tokenizer"
	"github.com/thaiproxy/searchproxy/internal/trie"
)

type fixedSnapshot struct{ snap *trie.Snapshot }

func (f fixedSnapshot) Snapshot() *trie.Snapshot { return f.snap }

func newProcessor(t *testing.T) *query.Processor {
	t.Helper()
	snap, err := trie.Build(nil, 1)
	require.NoError(t, err)
	reg := segmenter.NewRegistry("primary", nil, 50*time.Millisecond)
	tok := tokenizer.New(fixedSnapshot{snap}, reg)
	return query.New(tok)
}

type stubBackend struct {
	hits map[string][]backend.SearchHit
	err  error
}

func (s *stubBackend) Name() string { return "stub" }
func (s *stubBackend) Probe(ctx context.Context) error { return s.err }
func (s *stubBackend) Search(ctx context.Context, q string, opts backend.Options) ([]backend.SearchHit, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.hits[q], nil
}

func TestProxy_Search_AllOK(t *testing.T) {
	b := &stubBackend{hits: map[string][]backend.SearchHit{
		"สวัสดี": {{DocID: "doc1", RawScore: 1.0}},
	}}
	p := New(newProcessor(t), executor.New(b))

	resp, err := p.Search(context.Background(), Request{Query: "สวัสดี", Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Hits)
	assert.False(t, resp.FallbackUsed)
	assert.NotEmpty(t, resp.RequestID)
}

func TestProxy_Search_AllFailedReturnsSearchBackendUnavailable(t *testing.T) {
	b := &stubBackend{err: apierrors.New(apierrors.KindBackendTimeout, "timeout", nil)}
	p := New(newProcessor(t), executor.New(b))

	_, err := p.Search(context.Background(), Request{Query: "สวัสดี", Limit: 10})
	require.Error(t, err)
	assert.Equal(t, apierrors.KindSearchBackendUnavailable, apierrors.GetKind(err))
}

func TestProxy_Search_EmptyQuery(t *testing.T) {
	b := &stubBackend{hits: map[string][]backend.SearchHit{}}
	p := New(newProcessor(t), executor.New(b))

	resp, err := p.Search(context.Background(), Request{Query: "", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, resp.Hits)
}

func TestProxy_Search_RequestIDIsUnique(t *testing.T) {
	b := &stubBackend{hits: map[string][]backend.SearchHit{}}
	p := New(newProcessor(t), executor.New(b))

	r1, err := p.Search(context.Background(), Request{Query: "a", Limit: 10})
	require.NoError(t, err)
	r2, err := p.Search(context.Background(), Request{Query: "b", Limit: 10})
	require.NoError(t, err)
	assert.NotEqual(t, r1.RequestID, r2.RequestID)
}

func TestProxy_Search_DeadlineExceededBeforeDispatch(t *testing.T) {
	b := &stubBackend{hits: map[string][]backend.SearchHit{}}
	p := New(newProcessor(t), executor.New(b))

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already done before Search even begins

	_, err := p.Search(ctx, Request{Query: "สวัสดี", Limit: 10})
	require.Error(t, err)
}

func TestProxy_Search_CachesOnSuccessAndServesOnAllFailed(t *testing.T) {
	c, err := cache.New(cache.DefaultSize)
	require.NoError(t, err)

	hitBackend := &stubBackend{hits: map[string][]backend.SearchHit{
		"สวัสดี": {{DocID: "doc1", RawScore: 1.0}},
	}}
	p := New(newProcessor(t), executor.New(hitBackend), WithCache(c))

	resp, err := p.Search(context.Background(), Request{Query: "สวัสดี", Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Hits)

	failBackend := &stubBackend{err: apierrors.New(apierrors.KindBackendTimeout, "timeout", nil)}
	degraded := New(newProcessor(t), executor.New(failBackend), WithCache(c))

	degradedResp, err := degraded.Search(context.Background(), Request{Query: "สวัสดี", Limit: 10})
	require.NoError(t, err)
	assert.True(t, degradedResp.FallbackUsed)
	assert.Equal(t, resp.Hits[0].DocID, degradedResp.Hits[0].DocID)
}

func TestProxy_Search_AllFailedWithoutCacheHitStillErrors(t *testing.T) {
	c, err := cache.New(cache.DefaultSize)
	require.NoError(t, err)

	failBackend := &stubBackend{err: apierrors.New(apierrors.KindBackendTimeout, "timeout", nil)}
	p := New(newProcessor(t), executor.New(failBackend), WithCache(c))

	_, err = p.Search(context.Background(), Request{Query: "ไม่เคยค้นหามาก่อน", Limit: 10})
	require.Error(t, err)
	assert.Equal(t, apierrors.KindSearchBackendUnavailable, apierrors.GetKind(err))
}
