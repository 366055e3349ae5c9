package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thaiproxy/searchproxy/internal/apierrors"
)

func newTestServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if body != nil {
			_ = json.NewEncoder(w).Encode(body)
		}
	}))
}

func TestMeiliBackend_SearchSuccess(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, map[string]any{
		"hits": []map[string]any{
			{"id": "doc1", "_rankingScore": 0.9},
		},
	})
	defer srv.Close()

	m := NewMeiliBackend(srv.URL, "key", "products")
	hits, err := m.Search(context.Background(), "sushi", Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc1", hits[0].DocID)
	assert.Equal(t, 0.9, hits[0].RawScore)
}

func TestMeiliBackend_ServerErrorMapsToBackend5xx(t *testing.T) {
	srv := newTestServer(t, http.StatusInternalServerError, nil)
	defer srv.Close()

	m := NewMeiliBackend(srv.URL, "", "products")
	_, err := m.Search(context.Background(), "sushi", Options{})
	require.Error(t, err)
	assert.Equal(t, apierrors.KindBackend5xx, apierrors.GetKind(err))
}

func TestMeiliBackend_ClientErrorMapsToBackend4xx(t *testing.T) {
	srv := newTestServer(t, http.StatusBadRequest, nil)
	defer srv.Close()

	m := NewMeiliBackend(srv.URL, "", "products")
	_, err := m.Search(context.Background(), "sushi", Options{})
	require.Error(t, err)
	assert.Equal(t, apierrors.KindBackend4xx, apierrors.GetKind(err))
}

func TestMeiliBackend_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	srv := newTestServer(t, http.StatusInternalServerError, nil)
	defer srv.Close()

	cb := apierrors.NewCircuitBreaker("test-meili", apierrors.WithMaxFailures(2))
	m := NewMeiliBackend(srv.URL, "", "products", WithCircuitBreaker(cb))

	for i := 0; i < 2; i++ {
		_, _ = m.Search(context.Background(), "sushi", Options{})
	}

	_, err := m.Search(context.Background(), "sushi", Options{})
	require.Error(t, err)
	assert.Equal(t, apierrors.KindBackendUnavailable, apierrors.GetKind(err))
}

func TestMeiliBackend_Name(t *testing.T) {
	m := NewMeiliBackend("http://localhost", "", "products")
	assert.Equal(t, "meilisearch", m.Name())
}

func TestMeiliBackend_ProbeSuccess(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, nil)
	defer srv.Close()

	m := NewMeiliBackend(srv.URL, "", "products")
	assert.NoError(t, m.Probe(context.Background()))
}

func TestMeiliBackend_ProbeServerErrorFails(t *testing.T) {
	srv := newTestServer(t, http.StatusInternalServerError, nil)
	defer srv.Close()

	m := NewMeiliBackend(srv.URL, "", "products")
	assert.Error(t, m.Probe(context.Background()))
}
