package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thaiproxy/searchproxy/internal/segmenter"
	"github.com/thaiproxy/searchproxy/internal/tokenizer"
	"github.com/thaiproxy/searchproxy/internal/trie"
)

type fixedSnapshot struct{ snap *trie.Snapshot }

func (f fixedSnapshot) Snapshot() *trie.Snapshot { return f.snap }

func newTokenizer(t *testing.T, entries ...trie.Entry) *tokenizer.Tokenizer {
	t.Helper()
	snap, err := trie.Build(entries, 1)
	require.NoError(t, err)
	reg := segmenter.NewRegistry("primary", nil, 50*time.Millisecond)
	return tokenizer.New(fixedSnapshot{snap}, reg)
}

// --- ORIGINAL is always present, even for an empty query. ---

func TestProcess_EmptyQueryReturnsOriginalOnly(t *testing.T) {
	tok := newTokenizer(t)
	p := New(tok)

	variants, err := p.Process("")
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, Original, variants[0].Kind)
}

// --- TOKENISED variant is produced when tokenization changes the text. ---

func TestProcess_ProducesTokenisedVariant(t *testing.T) {
	tok := newTokenizer(t, trie.Entry{Surface: "สาหร่ายวากาเมะ", Confidence: 0.95})
	p := New(tok)

	variants, err := p.Process("ฉันกินสาหร่ายวากาเมะ")
	require.NoError(t, err)

	var kinds []Kind
	for _, v := range variants {
		kinds = append(kinds, v.Kind)
	}
	assert.Contains(t, kinds, Original)
	assert.Contains(t, kinds, Tokenised)
}

// --- COMPOUND_SPLIT appears only when a components lookup is wired and
// confidence clears the threshold. ---

func TestProcess_CompoundSplitGatedByConfidence(t *testing.T) {
	tok := newTokenizer(t, trie.Entry{Surface: "สาหร่ายวากาเมะ", Confidence: 0.95})
	lookup := func(surface string) ([]string, float64, bool) {
		if surface == "สาหร่ายวากาเมะ" {
			return []string{"สาหร่าย", "วากาเมะ"}, 0.95, true
		}
		return nil, 0, false
	}
	p := New(tok, WithComponentsLookup(lookup), WithMinSplitConfidence(0.5))

	variants, err := p.Process("ฉันกินสาหร่ายวากาเมะ")
	require.NoError(t, err)

	var found bool
	for _, v := range variants {
		if v.Kind == CompoundSplit {
			found = true
			assert.Contains(t, v.Text, "สาหร่าย")
			assert.Contains(t, v.Text, "วากาเมะ")
		}
	}
	assert.True(t, found, "expected a COMPOUND_SPLIT variant")
}

func TestProcess_CompoundSplitSuppressedBelowThreshold(t *testing.T) {
	tok := newTokenizer(t, trie.Entry{Surface: "สาหร่ายวากาเมะ", Confidence: 0.3})
	lookup := func(surface string) ([]string, float64, bool) {
		return []string{"สาหร่าย", "วากาเมะ"}, 0.3, true
	}
	p := New(tok, WithComponentsLookup(lookup), WithMinSplitConfidence(0.5))

	variants, err := p.Process("สาหร่ายวากาเมะ")
	require.NoError(t, err)

	for _, v := range variants {
		assert.NotEqual(t, CompoundSplit, v.Kind)
	}
}

// --- Dedup: exact-string-duplicate variants collapse to one. ---

func TestProcess_DedupesExactDuplicates(t *testing.T) {
	tok := newTokenizer(t)
	p := New(tok)

	variants, err := p.Process("สวัสดี")
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, v := range variants {
		seen[v.Text]++
	}
	for text, count := range seen {
		assert.Equal(t, 1, count, "duplicate variant text %q", text)
	}
}

// --- max_variants caps the result set. ---

func TestProcess_RespectsMaxVariants(t *testing.T) {
	tok := newTokenizer(t, trie.Entry{Surface: "สาหร่ายวากาเมะ", Confidence: 0.95})
	lookup := func(surface string) ([]string, float64, bool) {
		return []string{"สาหร่าย", "วากาเมะ"}, 0.95, true
	}
	p := New(tok, WithComponentsLookup(lookup), WithMaxVariants(1))

	variants, err := p.Process("ฉันกินสาหร่ายวากาเมะ")
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, Original, variants[0].Kind)
}

// --- Timeout overrun degrades gracefully to ORIGINAL-only. ---

func TestProcess_TimeoutDegradesToOriginal(t *testing.T) {
	tok := newTokenizer(t, trie.Entry{Surface: "สาหร่ายวากาเมะ", Confidence: 0.95})
	p := New(tok, WithTimeout(0))

	variants, err := p.Process("ฉันกินสาหร่ายวากาเมะ")
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, Original, variants[0].Kind)
}

func TestFallbackCharVariant(t *testing.T) {
	v := FallbackCharVariant("สวัสดี", 0.4)
	assert.Equal(t, FallbackChar, v.Kind)
	assert.Equal(t, 0.4, v.Weight)
	assert.Equal(t, "สวัสดี", v.Text)
}

// alwaysFailsSegmenter simulates PRIMARY and every configured fallback
// being exhausted, forcing the registry down to CHAR_LEVEL.
type alwaysFailsSegmenter struct{ variant segmenter.Variant }

func (s alwaysFailsSegmenter) Variant() segmenter.Variant { return s.variant }

func (s alwaysFailsSegmenter) Segment(context.Context, string) ([]segmenter.Span, error) {
	return nil, errors.New("segmenter unavailable")
}

// --- FALLBACK_CHAR is emitted when the tokenizer reports CHAR_LEVEL as
// the engine that resolved non-compound spans (spec §4.E's fourth rule:
// "If both primary and fallback segmenters fail..."). ---

func TestProcess_EmitsFallbackCharWhenSegmenterExhausted(t *testing.T) {
	snap, err := trie.Build(nil, 1)
	require.NoError(t, err)
	reg := segmenter.NewRegistryFromChain(50*time.Millisecond,
		alwaysFailsSegmenter{variant: segmenter.Primary},
		segmenter.NewCharLevel())
	tok := tokenizer.New(fixedSnapshot{snap}, reg)
	p := New(tok)

	variants, err := p.Process("สวัสดี")
	require.NoError(t, err)

	var found *Variant
	for i := range variants {
		if variants[i].Kind == FallbackChar {
			found = &variants[i]
		}
	}
	require.NotNil(t, found, "expected a FALLBACK_CHAR variant")
	assert.Equal(t, "ส ว ั ส ด ี", found.Text)
	assert.Equal(t, DefaultWeights().FallbackChar, found.Weight)
}

func TestProcess_NoFallbackCharWhenPrimarySucceeds(t *testing.T) {
	tok := newTokenizer(t)
	p := New(tok)

	variants, err := p.Process("สวัสดี")
	require.NoError(t, err)

	for _, v := range variants {
		assert.NotEqual(t, FallbackChar, v.Kind)
	}
}

func TestProcess_ContextIndependent(t *testing.T) {
	tok := newTokenizer(t)
	p := New(tok)
	_, err := p.Process("สวัสดี")
	require.NoError(t, err)
	_ = context.Background()
}
