package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"

	"github.com/thaiproxy/searchproxy/internal/apierrors"
)

// BleveDocument is the document shape indexed into a BleveBackend.
type BleveDocument struct {
	ID      string
	Content string
	Fields  map[string]any
}

// BleveBackend is an embedded full-text index, grounded on the teacher's
// BleveBM25Index: used for local development/testing and as the
// degraded-mode secondary source when Meilisearch is unavailable (spec
// §4.F).
type BleveBackend struct {
	mu    sync.RWMutex
	index bleve.Index
}

// NewBleveBackend opens (or creates) a bleve index at path. An empty path
// creates an in-memory index, matching the teacher's test-mode behaviour.
func NewBleveBackend(path string) (*BleveBackend, error) {
	indexMapping := bleve.NewIndexMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}

	return &BleveBackend{index: idx}, nil
}

func (b *BleveBackend) Name() string { return "bleve" }

// Probe confirms the embedded index is open and responsive (spec §4.J).
// There is no network round-trip for an in-process index, so this just
// checks the index handle is usable.
func (b *BleveBackend) Probe(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, err := b.index.DocCount()
	return err
}

// Index upserts docs into the backend.
func (b *BleveBackend) Index(docs []BleveDocument) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.index.NewBatch()
	for _, doc := range docs {
		body := map[string]any{"content": doc.Content}
		for k, v := range doc.Fields {
			body[k] = v
		}
		if err := batch.Index(doc.ID, body); err != nil {
			return fmt.Errorf("index document %s: %w", doc.ID, err)
		}
	}
	return b.index.Batch(batch)
}

// Search implements Backend via bleve's match query, mirroring the
// teacher's BleveBM25Index.Search.
func (b *BleveBackend) Search(ctx context.Context, query string, opts Options) ([]SearchHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if query == "" {
		return nil, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = opts.Limit
	if req.Size <= 0 {
		req.Size = 10
	}
	req.From = opts.Offset
	req.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apierrors.New(apierrors.KindBackendTimeout, "bleve search timed out", err)
		}
		return nil, apierrors.New(apierrors.KindBackendUnavailable, "bleve search failed", err)
	}

	hits := make([]SearchHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, SearchHit{
			DocID:      hit.ID,
			RawScore:   hit.Score,
			Highlights: extractBleveHighlights(hit),
		})
	}
	return hits, nil
}

func extractBleveHighlights(hit *search.DocumentMatch) []string {
	var out []string
	for field, locs := range hit.Locations {
		if field != "content" {
			continue
		}
		for term := range locs {
			out = append(out, term)
		}
	}
	return out
}
