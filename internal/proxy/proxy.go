// Package proxy implements the Search Proxy Orchestrator (spec §4.H): the
// explicit request state machine wiring the Query Processor, Search
// Executor, and Result Ranker together under a single wall-clock budget.
package proxy

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/thaiproxy/searchproxy/internal/apierrors"
	"github.com/thaiproxy/searchproxy/internal/backend"
	"github.com/thaiproxy/searchproxy/internal/cache"
	"github.com/thaiproxy/searchproxy/internal/executor"
	"github.com/thaiproxy/searchproxy/internal/metrics"
	"github.com/thaiproxy/searchproxy/internal/query"
	"github.com/thaiproxy/searchproxy/internal/ranker"
)

// State is one node of the spec §4.H request state machine.
type State string

const (
	StateReceived      State = "RECEIVED"
	StateVariantsReady State = "VARIANTS_READY"
	StateDispatched    State = "DISPATCHED"
	StateAllFailed     State = "ALL_FAILED"
	StatePartial       State = "PARTIAL"
	StateAllOK         State = "ALL_OK"
	StateRanked        State = "RANKED"
	StateResponded     State = "RESPONDED"
	StateCancelled     State = "CANCELLED"
)

// Request is one incoming search request (spec §6).
type Request struct {
	Query  string
	Limit  int
	Offset int
}

// Response is the result of a Search call, including the diagnostic
// block surfaced when fallback_used is true (spec §7).
type Response struct {
	RequestID    string
	Hits         []ranker.Hit
	TotalCount   int
	FallbackUsed bool
	FailedKinds  []query.Kind
	// Variants is the set of query variants generated for this request
	// (spec §4.E), always populated regardless of dispatch outcome. The
	// HTTP layer surfaces it only when the caller asked for tokenization
	// info (spec §6 include_tokenization_info).
	Variants []query.Variant
}

// Proxy wires Query Processor -> Search Executor -> Result Ranker
// (spec §4.H) under an overall request_deadline_ms wall budget.
type Proxy struct {
	processor       *query.Processor
	executor        *executor.Executor
	requestDeadline time.Duration
	mx              *metrics.Registry
	cache           *cache.Cache
}

// WithMetrics attaches a metrics.Registry that Search records variant
// generation/dispatch/failure counts against (spec §4.J). Omitted, a
// Proxy records nothing.
func WithMetrics(mx *metrics.Registry) Option {
	return func(p *Proxy) { p.mx = mx }
}

// WithCache attaches a cache.Cache of last-known-good ranked results,
// consulted when every dispatched variant fails and populated on every
// fully successful response (spec §4.F degraded-mode responses). Omitted,
// an ALL_FAILED outcome always returns an error.
func WithCache(c *cache.Cache) Option {
	return func(p *Proxy) { p.cache = c }
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithRequestDeadline overrides the default 10s wall budget
// (spec §4.H request_deadline_ms).
func WithRequestDeadline(d time.Duration) Option {
	return func(p *Proxy) { p.requestDeadline = d }
}

// New constructs a Proxy.
func New(processor *query.Processor, exec *executor.Executor, opts ...Option) *Proxy {
	p := &Proxy{processor: processor, executor: exec, requestDeadline: 10 * time.Second}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Search runs the full RECEIVED -> ... -> RESPONDED state machine for
// one request.
func (p *Proxy) Search(ctx context.Context, req Request) (Response, error) {
	requestID := uuid.New().String()
	state := StateReceived
	logState := func(s State) {
		state = s
		slog.Debug("proxy_state_transition", slog.String("request_id", requestID), slog.String("state", string(s)))
	}
	defer func() {
		slog.Debug("proxy_request_final_state", slog.String("request_id", requestID), slog.String("state", string(state)))
	}()
	logState(StateReceived)

	ctx, cancel := context.WithTimeout(ctx, p.requestDeadline)
	defer cancel()

	variants, hadCompound, err := p.processor.ProcessDetailed(req.Query)
	if err != nil || ctx.Err() != nil {
		if ctx.Err() != nil {
			logState(StateCancelled)
			return Response{RequestID: requestID}, apierrors.New(apierrors.KindRequestDeadlineExceeded, "request deadline exceeded before dispatch", ctx.Err()).WithDetail("request_id", requestID)
		}
		variants = []query.Variant{{Text: req.Query, Kind: query.Original, Weight: 1.0}}
		hadCompound = false
	}
	generatedVariants := variants
	logState(StateVariantsReady)
	p.recordVariantsGenerated(variants)

	if ctx.Err() != nil {
		logState(StateCancelled)
		return Response{RequestID: requestID}, apierrors.New(apierrors.KindRequestDeadlineExceeded, "request deadline exceeded before dispatch", ctx.Err()).WithDetail("request_id", requestID)
	}

	logState(StateDispatched)
	outcome := p.executor.Dispatch(ctx, variants, backend.Options{Limit: req.Limit, Offset: req.Offset})
	p.recordDispatchOutcome(outcome)

	if outcome.AllFailed() {
		logState(StateAllFailed)
		if ctx.Err() != nil {
			return Response{RequestID: requestID}, apierrors.New(apierrors.KindRequestDeadlineExceeded,
				"request deadline exceeded during dispatch", ctx.Err()).WithDetail("request_id", requestID)
		}
		if p.cache != nil {
			if entry, ok := p.cache.Get(req.Query); ok {
				slog.Warn("proxy_degraded_cache_hit", slog.String("request_id", requestID), slog.String("query", req.Query))
				return Response{
					RequestID:    requestID,
					Hits:         entry.Hits,
					TotalCount:   entry.TotalCount,
					FallbackUsed: true,
					Variants:     generatedVariants,
				}, nil
			}
		}
		return Response{RequestID: requestID}, apierrors.New(apierrors.KindSearchBackendUnavailable,
			"all search variants failed", nil).WithDetail("request_id", requestID).WithDetail("retry", true)
	}

	if len(outcome.Failed) > 0 {
		logState(StatePartial)
	} else {
		logState(StateAllOK)
	}

	inputs := make([]ranker.Input, 0)
	for _, s := range outcome.Succeeded {
		for _, hit := range s.Hits {
			inputs = append(inputs, ranker.Input{Hit: hit, Variant: s.Variant})
		}
	}

	rankResult := ranker.Rank(inputs, req.Query, hadCompound, req.Limit, req.Offset)
	logState(StateRanked)

	if p.cache != nil && len(outcome.Failed) == 0 {
		p.cache.Put(req.Query, cache.Entry{Hits: rankResult.Hits, TotalCount: rankResult.TotalCount})
	}

	var failedKinds []query.Kind
	for _, f := range outcome.Failed {
		failedKinds = append(failedKinds, f.Variant.Kind)
	}

	resp := Response{
		RequestID:    requestID,
		Hits:         rankResult.Hits,
		TotalCount:   rankResult.TotalCount,
		FallbackUsed: len(outcome.Failed) > 0,
		FailedKinds:  failedKinds,
		Variants:     generatedVariants,
	}
	logState(StateResponded)
	return resp, nil
}

func (p *Proxy) recordVariantsGenerated(variants []query.Variant) {
	if p.mx == nil {
		return
	}
	for _, v := range variants {
		p.mx.VariantsGenerated.WithLabelValues(string(v.Kind)).Inc()
	}
}

func (p *Proxy) recordDispatchOutcome(outcome executor.Outcome) {
	if p.mx == nil {
		return
	}
	for _, s := range outcome.Succeeded {
		p.mx.VariantDispatched.WithLabelValues(string(s.Variant.Kind)).Inc()
	}
	for _, f := range outcome.Failed {
		p.mx.VariantDispatched.WithLabelValues(string(f.Variant.Kind)).Inc()
		errKind := "UNKNOWN"
		if pe, ok := f.Err.(*apierrors.ProxyError); ok {
			errKind = string(pe.Kind)
		}
		p.mx.VariantFailed.WithLabelValues(string(f.Variant.Kind), errKind).Inc()
	}
}
