package segmenter

import (
	"context"
	"errors"
)

// ErrSegmenterUnavailable is returned by a variant that cannot run at all
// (used by tests and by variants that simulate unavailability).
var ErrSegmenterUnavailable = errors.New("segmenter variant unavailable")

// primarySegmenter performs longest-match segmentation over builtinWordlist
// for Thai runs, falling back rune-by-rune where no word matches. Non-Thai
// runs (e.g. an embedded English loanword) are preserved whole.
type primarySegmenter struct{}

func NewPrimary() Segmenter { return primarySegmenter{} }

func (primarySegmenter) Variant() Variant { return Primary }

func (primarySegmenter) Segment(ctx context.Context, text string) ([]Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return coalesceNonThai(text, func(run string, base int) []Span {
		runes := []rune(run)
		var out []Span
		i := 0
		for i < len(runes) {
			if w, ok := longestWordMatch(runes, i); ok {
				n := len([]rune(w))
				out = append(out, Span{Text: w, Start: base + i, End: base + i + n})
				i += n
				continue
			}
			out = append(out, Span{Text: string(runes[i]), Start: base + i, End: base + i + 1})
			i++
		}
		return out
	}), nil
}

// fallbackASegmenter splits on Thai/non-Thai run boundaries only, with no
// internal wordlist: each contiguous Thai run becomes a single token —
// coarser than PRIMARY but cheaper and still deterministic.
type fallbackASegmenter struct{}

func NewFallbackA() Segmenter { return fallbackASegmenter{} }

func (fallbackASegmenter) Variant() Variant { return FallbackA }

func (fallbackASegmenter) Segment(ctx context.Context, text string) ([]Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return coalesceNonThai(text, func(run string, base int) []Span {
		n := len([]rune(run))
		return []Span{{Text: run, Start: base, End: base + n}}
	}), nil
}

// fallbackBSegmenter applies a fixed-width n-gram break heuristic: Thai
// runs are chopped into bigrams (or a trailing unigram), a cheap
// deterministic stand-in for a frequency-based break model.
type fallbackBSegmenter struct{ n int }

func NewFallbackB() Segmenter { return fallbackBSegmenter{n: 2} }

func (fallbackBSegmenter) Variant() Variant { return FallbackB }

func (s fallbackBSegmenter) Segment(ctx context.Context, text string) ([]Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := s.n
	if n < 1 {
		n = 2
	}
	return coalesceNonThai(text, func(run string, base int) []Span {
		runes := []rune(run)
		var out []Span
		for i := 0; i < len(runes); i += n {
			end := i + n
			if end > len(runes) {
				end = len(runes)
			}
			out = append(out, Span{Text: string(runes[i:end]), Start: base + i, End: base + end})
		}
		return out
	}), nil
}

// charLevelSegmenter always succeeds: Thai code points become individual
// tokens, runs of non-Thai characters are coalesced. This is the terminal
// fallback in the selection chain (spec §4.C).
type charLevelSegmenter struct{}

func NewCharLevel() Segmenter { return charLevelSegmenter{} }

func (charLevelSegmenter) Variant() Variant { return CharLevel }

func (charLevelSegmenter) Segment(ctx context.Context, text string) ([]Span, error) {
	return coalesceNonThai(text, func(run string, base int) []Span {
		runes := []rune(run)
		out := make([]Span, 0, len(runes))
		for i, r := range runes {
			out = append(out, Span{Text: string(r), Start: base + i, End: base + i + 1})
		}
		return out
	}), nil
}
