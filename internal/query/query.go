// Package query implements the Query Processor (spec §4.E): it produces a
// small, weighted, deduplicated set of query variants from a raw query
// string, purely and without I/O.
package query

import (
	"context"
	"strings"
	"time"

	"github.com/thaiproxy/searchproxy/internal/segmenter"
	"github.com/thaiproxy/searchproxy/internal/tokenizer"
)

// Kind identifies which rule produced a Variant.
type Kind string

const (
	Original      Kind = "ORIGINAL"
	Tokenised     Kind = "TOKENISED"
	CompoundSplit Kind = "COMPOUND_SPLIT"
	FallbackChar  Kind = "FALLBACK_CHAR"
)

// Variant is one query string to dispatch to the search backend (spec §3).
type Variant struct {
	Text          string
	Kind          Kind
	Weight        float64
	EngineOptions map[string]any
}

// Weights overrides the default per-kind weights (spec §6 W_* env vars).
type Weights struct {
	Original      float64
	Tokenised     float64
	CompoundSplit float64
	FallbackChar  float64
}

// DefaultWeights returns the spec §4.E default weights.
func DefaultWeights() Weights {
	return Weights{Original: 1.0, Tokenised: 1.2, CompoundSplit: 0.7, FallbackChar: 0.4}
}

// Processor produces variants from raw queries (spec §4.E).
type Processor struct {
	tok                *tokenizer.Tokenizer
	weights            Weights
	maxVariants        int
	timeout            time.Duration
	minSplitConfidence float64
	componentsFor      func(surface string) ([]string, float64, bool)
}

// Option configures a Processor.
type Option func(*Processor)

// WithMaxVariants bounds the number of variants returned (spec §4.E
// max_variants, default 5).
func WithMaxVariants(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxVariants = n
		}
	}
}

// WithWeights overrides the default per-kind weights.
func WithWeights(w Weights) Option {
	return func(p *Processor) { p.weights = w }
}

// WithTimeout bounds how long Process may spend tokenizing before
// degrading to an ORIGINAL-only variant set (spec §4.E
// query_process_timeout_ms, default 20ms).
func WithTimeout(d time.Duration) Option {
	return func(p *Processor) { p.timeout = d }
}

// WithMinSplitConfidence gates COMPOUND_SPLIT to entries whose confidence
// meets or exceeds the threshold, resolving the spec §9 open question
// (see DESIGN.md).
func WithMinSplitConfidence(c float64) Option {
	return func(p *Processor) { p.minSplitConfidence = c }
}

// ComponentsLookup supplies, for a compound surface, its configured
// components and confidence, so the processor can build the
// COMPOUND_SPLIT variant without re-querying the dictionary store itself.
type ComponentsLookup func(surface string) (components []string, confidence float64, ok bool)

// WithComponentsLookup wires the dictionary lookup used for
// COMPOUND_SPLIT. Without it, COMPOUND_SPLIT is never emitted.
func WithComponentsLookup(fn ComponentsLookup) Option {
	return func(p *Processor) { p.componentsFor = fn }
}

// New constructs a Processor using tok to detect compounds and tokenise.
func New(tok *tokenizer.Tokenizer, opts ...Option) *Processor {
	p := &Processor{
		tok:                tok,
		weights:            DefaultWeights(),
		maxVariants:        5,
		timeout:            20 * time.Millisecond,
		minSplitConfidence: 0.5,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process produces 1..maxVariants variants from query, per spec §4.E's
// rules. It is pure (no I/O) and budgeted by the configured timeout;
// tokenizer.Tokenize is CPU-only, so the budget is enforced by measuring
// elapsed time and falling back to an ORIGINAL-only variant set on
// overrun, mirroring an availability-gated fallback rather than an actual
// cancellation.
func (p *Processor) Process(query string) ([]Variant, error) {
	variants, _, err := p.ProcessDetailed(query)
	return variants, err
}

// ProcessDetailed is Process plus a HasCompound signal: whether the query
// was found to contain a compound, independent of whether a COMPOUND_SPLIT
// variant could actually be emitted for it (components may be unknown or
// below minSplitConfidence) — callers that need the §4.G
// compound_match_bonus condition ("the query contained a compound") must
// use this rather than inferring it from which variant kinds are present.
func (p *Processor) ProcessDetailed(query string) ([]Variant, bool, error) {
	query = strings.TrimSpace(query)
	original := Variant{Text: query, Kind: Original, Weight: p.weights.Original}
	if query == "" {
		return []Variant{original}, false, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	start := time.Now()
	result, err := p.tok.Tokenize(ctx, query)
	if err != nil || time.Since(start) > p.timeout {
		return []Variant{original}, false, nil
	}

	variants := []Variant{original}
	hasCompound := false
	for _, c := range result.IsCompound {
		if c {
			hasCompound = true
			break
		}
	}

	joined := joinTokens(result.Tokens)
	charLevel := result.Engine == string(segmenter.CharLevel)
	if joined != query && !charLevel {
		weight := p.weights.Tokenised
		if !hasCompound {
			weight = p.weights.Original
		}
		variants = append(variants, Variant{Text: joined, Kind: Tokenised, Weight: weight})
	}

	if hasCompound && p.componentsFor != nil {
		if split, ok := p.compoundSplit(result); ok {
			variants = append(variants, Variant{Text: split, Kind: CompoundSplit, Weight: p.weights.CompoundSplit})
		}
	}

	if charLevel {
		// Both PRIMARY and every configured fallback were exhausted down to
		// CHAR_LEVEL (spec §4.C's terminal variant), so the tokenizer's
		// residue spans are only character-level splits — per spec §4.E's
		// fourth rule, that character-level split is emitted as the
		// FALLBACK_CHAR variant, in place of TOKENISED.
		variants = append(variants, FallbackCharVariant(joined, p.weights.FallbackChar))
	}

	return dedupe(variants, p.maxVariants), hasCompound, nil
}

// compoundSplit replaces every compound token whose components are known
// (and whose confidence clears minSplitConfidence) with its components
// joined by spaces, leaving non-compound tokens untouched.
func (p *Processor) compoundSplit(result tokenizer.Result) (string, bool) {
	var parts []string
	replaced := false
	for i, tok := range result.Tokens {
		if tok == tokenizer.WhitespaceSeparator {
			continue
		}
		if result.IsCompound[i] {
			if components, confidence, ok := p.componentsFor(tok); ok && len(components) > 0 && confidence >= p.minSplitConfidence {
				parts = append(parts, components...)
				replaced = true
				continue
			}
		}
		parts = append(parts, tok)
	}
	if !replaced {
		return "", false
	}
	return strings.Join(parts, " "), true
}

func joinTokens(tokens []string) string {
	var parts []string
	for _, t := range tokens {
		if t == tokenizer.WhitespaceSeparator {
			continue
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, " ")
}

// dedupe removes exact string duplicates (spec §8 property 5) and caps the
// result at maxVariants, always keeping the first (ORIGINAL) variant.
func dedupe(variants []Variant, maxVariants int) []Variant {
	seen := make(map[string]struct{}, len(variants))
	out := make([]Variant, 0, len(variants))
	for _, v := range variants {
		if _, dup := seen[v.Text]; dup {
			continue
		}
		seen[v.Text] = struct{}{}
		out = append(out, v)
		if len(out) >= maxVariants {
			break
		}
	}
	return out
}

// FallbackCharVariant builds the FALLBACK_CHAR variant (spec §4.E),
// emitted by ProcessDetailed when the tokenizer reports CHAR_LEVEL as the
// engine that resolved non-compound spans — i.e. PRIMARY and every
// configured fallback segmenter failed.
func FallbackCharVariant(query string, weight float64) Variant {
	return Variant{Text: query, Kind: FallbackChar, Weight: weight}
}
