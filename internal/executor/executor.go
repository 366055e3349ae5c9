// Package executor implements the Search Executor (spec §4.F): bounded
// concurrency fan-out of query variants to a Backend, with backpressure
// and partial-failure tolerance, grounded on the teacher's
// MultiQuerySearcher.parallelSubSearch pattern.
package executor

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thaiproxy/searchproxy/internal/apierrors"
	"github.com/thaiproxy/searchproxy/internal/backend"
	"github.com/thaiproxy/searchproxy/internal/query"
)

// VariantOutcome is the per-variant result of a Dispatch call.
type VariantOutcome struct {
	Variant query.Variant
	Hits    []backend.SearchHit
	Err     error
}

// Outcome is the aggregate result of dispatching every variant.
type Outcome struct {
	Succeeded []VariantOutcome
	Failed    []VariantOutcome
}

// AllFailed reports whether every dispatched variant failed, the
// condition that drives the orchestrator's ALL_FAILED transition.
func (o Outcome) AllFailed() bool {
	return len(o.Succeeded) == 0 && len(o.Failed) > 0
}

// Executor fans variants out to a Backend under a bounded semaphore
// (poolSize) and a buffered admission queue (maxQueue), exactly the
// teacher's parallelSubSearch shape generalized from sub-queries to
// query variants.
type Executor struct {
	backend        backend.Backend
	poolSize       int
	maxQueue       int
	searchTimeout  time.Duration
	variantTimeout time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithPoolSize bounds concurrent in-flight backend calls (spec §4.F,
// default 10).
func WithPoolSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.poolSize = n
		}
	}
}

// WithMaxQueue bounds the admission queue depth (spec §4.F, default 32).
func WithMaxQueue(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxQueue = n
		}
	}
}

// WithSearchTimeout sets the global dispatch budget (spec §4.F
// search_timeout_ms, default 5000ms).
func WithSearchTimeout(d time.Duration) Option {
	return func(e *Executor) { e.searchTimeout = d }
}

// WithVariantTimeout sets the per-variant budget (spec §4.F
// variant_timeout_ms, default 2000ms).
func WithVariantTimeout(d time.Duration) Option {
	return func(e *Executor) { e.variantTimeout = d }
}

// New constructs an Executor dispatching to b.
func New(b backend.Backend, opts ...Option) *Executor {
	e := &Executor{
		backend:        b,
		poolSize:       10,
		maxQueue:       32,
		searchTimeout:  5 * time.Second,
		variantTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dispatch fans variants out concurrently, bounded by poolSize, with
// admission-controlled backpressure past maxQueue. Partial failure is
// tolerated: Outcome.Succeeded holds every variant that returned results
// within the global search_timeout_ms budget; Outcome.Failed holds the
// rest, each annotated with its error kind.
func (e *Executor) Dispatch(ctx context.Context, variants []query.Variant, opts backend.Options) Outcome {
	if len(variants) == 0 {
		return Outcome{}
	}

	ctx, cancel := context.WithTimeout(ctx, e.searchTimeout)
	defer cancel()

	admitted := variants
	rejected := variants[:0:0]
	if len(variants) > e.maxQueue {
		admitted = variants[:e.maxQueue]
		rejected = variants[e.maxQueue:]
	}

	results := make([]VariantOutcome, len(admitted))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, e.poolSize)

	for i, v := range admitted {
		i, v := i, v
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				results[i] = VariantOutcome{Variant: v, Err: gctx.Err()}
				return nil
			}

			attemptCtx, cancel := context.WithTimeout(gctx, e.variantTimeout)
			defer cancel()

			hits, err := e.backend.Search(attemptCtx, v.Text, opts)
			if err != nil {
				results[i] = VariantOutcome{Variant: v, Err: err}
				slog.Warn("search_variant_failed",
					slog.String("variant", string(v.Kind)),
					slog.String("error", err.Error()))
				return nil
			}
			results[i] = VariantOutcome{Variant: v, Hits: hits}
			return nil
		})
	}

	_ = g.Wait() // sub-errors are captured per-variant, never fail the group

	out := Outcome{}
	for _, r := range results {
		if r.Err == nil {
			out.Succeeded = append(out.Succeeded, r)
		} else {
			out.Failed = append(out.Failed, r)
		}
	}

	for _, v := range rejected {
		bp := apierrors.New(apierrors.KindBackpressure, "search executor queue saturated", nil).WithVariant(string(v.Kind))
		out.Failed = append(out.Failed, VariantOutcome{Variant: v, Err: bp})
	}

	return out
}
