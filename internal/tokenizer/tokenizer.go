// Package tokenizer implements the compound-aware tokenizer (spec §4.D):
// the heart of the system. It pre-scans input for configured compounds
// using an immutable trie snapshot, then hands non-compound residue to
// the Thai Segmenter.
package tokenizer

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/thaiproxy/searchproxy/internal/segmenter"
	"github.com/thaiproxy/searchproxy/internal/trie"
)

// WhitespaceSeparator is the inert token emitted for collapsed whitespace
// runs under the default whitespace policy.
const WhitespaceSeparator = "␠" // ␠ SYMBOL FOR SPACE

// WhitespacePolicy controls how whitespace between tokens is represented
// in a Result, resolving the spec §9 open question.
type WhitespacePolicy int

const (
	// CollapseInert merges any run of whitespace tokens into a single
	// WhitespaceSeparator token that downstream rankers treat as a no-op.
	// This is the spec's chosen default (see DESIGN.md).
	CollapseInert WhitespacePolicy = iota
	// Preserve keeps whitespace spans verbatim as their own tokens.
	Preserve
)

// Result is the outcome of tokenizing one piece of text (spec §3).
type Result struct {
	Original   string
	Tokens     []string
	Spans      [][2]int
	IsCompound []bool
	Engine     string
	ElapsedMs  int64
}

// SnapshotProvider supplies the trie snapshot to pin for one Tokenize call.
// internal/dictionary.Store implements this.
type SnapshotProvider interface {
	Snapshot() *trie.Snapshot
}

// Tokenizer implements spec §4.D's algorithm.
type Tokenizer struct {
	snapshots SnapshotProvider
	segments  *segmenter.Registry
	policy    WhitespacePolicy
}

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// WithWhitespacePolicy overrides the default CollapseInert policy.
func WithWhitespacePolicy(p WhitespacePolicy) Option {
	return func(t *Tokenizer) { t.policy = p }
}

// New constructs a Tokenizer wired to the given dictionary snapshot
// provider and segmenter registry.
func New(snapshots SnapshotProvider, segments *segmenter.Registry, opts ...Option) *Tokenizer {
	t := &Tokenizer{snapshots: snapshots, segments: segments, policy: CollapseInert}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tokenize implements the algorithm in spec §4.D. The input is
// NFC-normalised first; Tokens, when concatenated (minus the whitespace
// separator), reconstruct the normalised text — the coverage invariant
// from spec §8 property 1.
func (t *Tokenizer) Tokenize(ctx context.Context, text string) (Result, error) {
	start := time.Now()

	if text == "" {
		return Result{Original: "", Engine: "", ElapsedMs: 0}, nil
	}

	normalized := norm.NFC.String(text)
	runes := []rune(normalized)

	var tokens []string
	var spans [][2]int
	var isCompound []bool
	engine := ""

	if !containsThaiRune(runes) {
		// Edge case: no Thai code points means no compound can possibly
		// match, so the trie walk is skipped entirely for performance.
		sp, eng, err := t.segments.Segment(ctx, normalized)
		if err != nil {
			return Result{}, err
		}
		engine = eng
		for _, s := range sp {
			tokens = append(tokens, s.Text)
			spans = append(spans, [2]int{s.Start, s.End})
			isCompound = append(isCompound, false)
		}
	} else {
		pin := t.snapshots.Snapshot() // snapshot pinning for the whole call
		prefilter := pin.Prefilter()

		i := 0
		for i < len(runes) {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}

			if m, ok := pin.LongestMatchAt(runes, i); ok {
				tokens = append(tokens, m.Surface)
				spans = append(spans, [2]int{i, i + m.Length})
				isCompound = append(isCompound, true)
				i += m.Length
				continue
			}

			j := i + 1
			if prefilter != nil && !prefilter.ContainsAny([]byte(string(runes[i:]))) {
				// No compound can start anywhere in the remaining text, so
				// skip the per-position trie walk entirely.
				j = len(runes)
			} else {
				for j < len(runes) {
					if _, ok := pin.LongestMatchAt(runes, j); ok {
						break
					}
					j++
				}
			}

			run := string(runes[i:j])
			sp, eng, err := t.segments.Segment(ctx, run)
			if err != nil {
				return Result{}, err
			}
			if eng != "" {
				engine = eng
			}
			for _, s := range sp {
				tokens = append(tokens, s.Text)
				spans = append(spans, [2]int{i + s.Start, i + s.End})
				isCompound = append(isCompound, false)
			}
			i = j
		}
	}

	tokens, spans, isCompound = t.applyWhitespacePolicy(tokens, spans, isCompound)

	return Result{
		Original:   normalized,
		Tokens:     tokens,
		Spans:      spans,
		IsCompound: isCompound,
		Engine:     engine,
		ElapsedMs:  time.Since(start).Milliseconds(),
	}, nil
}

func containsThaiRune(runes []rune) bool {
	for _, r := range runes {
		if r >= 0x0E00 && r <= 0x0E7F {
			return true
		}
	}
	return false
}

// applyWhitespacePolicy merges runs of whitespace-only tokens into a
// single inert separator token (CollapseInert), or leaves them as-is
// (Preserve).
func (t *Tokenizer) applyWhitespacePolicy(tokens []string, spans [][2]int, isCompound []bool) ([]string, [][2]int, []bool) {
	if t.policy == Preserve {
		return tokens, spans, isCompound
	}

	var outTokens []string
	var outSpans [][2]int
	var outCompound []bool

	i := 0
	for i < len(tokens) {
		if isBlank(tokens[i]) {
			j := i
			for j < len(tokens) && isBlank(tokens[j]) {
				j++
			}
			outTokens = append(outTokens, WhitespaceSeparator)
			outSpans = append(outSpans, [2]int{spans[i][0], spans[j-1][1]})
			outCompound = append(outCompound, false)
			i = j
			continue
		}
		outTokens = append(outTokens, tokens[i])
		outSpans = append(outSpans, spans[i])
		outCompound = append(outCompound, isCompound[i])
		i++
	}

	return outTokens, outSpans, outCompound
}

func isBlank(s string) bool {
	return s != "" && strings.TrimSpace(s) == ""
}
