// Package backend implements the §4.F search backend abstraction: a
// common interface over a real Meilisearch HTTP deployment and an
// embedded bleve index used for local development and as the
// degraded-mode secondary source.
package backend

import "context"

// SearchHit is one raw hit from a backend for a single query variant
// (spec §3). It carries no variant kind, since a backend has no notion of
// query variants; the executor pairs each hit with the variant that
// produced it.
type SearchHit struct {
	DocID      string
	RawScore   float64
	Highlights []string
	Payload    map[string]any
}

// Options carries backend-facing search parameters (spec §4.E
// engine_options plus pagination).
type Options struct {
	Limit  int
	Offset int
	Extra  map[string]any
}

// Backend is the common contract both MeiliBackend and BleveBackend
// satisfy.
type Backend interface {
	Search(ctx context.Context, query string, opts Options) ([]SearchHit, error)
	Name() string
	// Probe performs a cheap reachability check, independent of running an
	// actual search (spec §4.J: the backend leg of /health).
	Probe(ctx context.Context) error
}
