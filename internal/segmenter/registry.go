package segmenter

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Registry holds the configured chain of segmenter variants and applies
// the spec §4.C selection policy: try PRIMARY, then each configured
// fallback in order, then CHAR_LEVEL unconditionally (it always succeeds).
type Registry struct {
	chain   []Segmenter
	timeout time.Duration
}

// byName maps the configuration strings from SEGMENTER_PRIMARY /
// SEGMENTER_FALLBACKS to a constructed Segmenter.
func byName(name string) Segmenter {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "primary":
		return NewPrimary()
	case "fallback_a", "fallbacka":
		return NewFallbackA()
	case "fallback_b", "fallbackb":
		return NewFallbackB()
	case "char_level", "charlevel":
		return NewCharLevel()
	default:
		return nil
	}
}

// NewRegistry builds a Registry from the configured primary/fallback names
// (spec §6 SEGMENTER_PRIMARY/SEGMENTER_FALLBACKS), always appending
// CHAR_LEVEL last regardless of configuration.
func NewRegistry(primary string, fallbacks []string, timeout time.Duration) *Registry {
	r := &Registry{timeout: timeout}

	if s := byName(primary); s != nil {
		r.chain = append(r.chain, s)
	} else {
		r.chain = append(r.chain, NewPrimary())
	}
	for _, name := range fallbacks {
		if s := byName(name); s != nil {
			r.chain = append(r.chain, s)
		}
	}

	hasCharLevel := false
	for _, s := range r.chain {
		if s.Variant() == CharLevel {
			hasCharLevel = true
			break
		}
	}
	if !hasCharLevel {
		r.chain = append(r.chain, NewCharLevel())
	}

	return r
}

// NewRegistryFromChain builds a Registry that tries the given variants in
// order, exactly as given — no implicit CHAR_LEVEL is appended, so callers
// (tests exercising segmenter-exhaustion paths, or callers wiring a custom
// variant chain) are responsible for including one if the chain must
// always succeed.
func NewRegistryFromChain(timeout time.Duration, chain ...Segmenter) *Registry {
	return &Registry{chain: chain, timeout: timeout}
}

// Segment tries each variant in chain order, applying the registry's
// per-variant timeout, and returns the first variant's output that
// succeeds along with its identifier. CHAR_LEVEL never fails and does not
// check ctx, so a chain that contains it (every chain NewRegistry builds)
// never returns an error; otherwise Segment returns the last variant's
// error once every variant has failed.
func (r *Registry) Segment(ctx context.Context, text string) ([]Span, string, error) {
	var lastErr error
	for _, s := range r.chain {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		spans, err := s.Segment(attemptCtx, text)
		cancel()

		if err == nil {
			return spans, string(s.Variant()), nil
		}
		lastErr = err
		slog.Warn("segmenter_variant_failed",
			slog.String("variant", string(s.Variant())),
			slog.String("error", err.Error()))
	}
	return nil, "", lastErr
}
