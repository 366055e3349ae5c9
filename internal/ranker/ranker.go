// Package ranker implements the Result Ranker (spec §4.G): it dedups
// backend hits by doc_id, scores them per variant, and sorts with a
// deterministic tie-break, generalized from the teacher's fusion.go
// RRF compare/normalize shape to the weighted-max-normalized-score
// formula spec.md defines.
package ranker

import (
	"sort"

	"github.com/thaiproxy/searchproxy/internal/backend"
	"github.com/thaiproxy/searchproxy/internal/query"
)

const (
	exactMatchBonus    = 0.5
	compoundMatchBonus = 0.3
)

// Hit is one ranked result (spec §3 SearchHit + final_score).
type Hit struct {
	DocID             string
	FinalScore        float64
	ProducingVariants []query.Kind
	Highlights        []string
	Payload           map[string]any
}

// Result is the output of Rank: the deduplicated, scored, paginated hit
// list plus the total count before pagination (spec §3 RankedResult).
type Result struct {
	Hits       []Hit
	TotalCount int
}

// Input is one backend hit attributed to the variant that produced it.
type Input struct {
	Hit     backend.SearchHit
	Variant query.Variant
}

// Rank dedups hits by doc_id, computes final_score per spec §4.G, and
// returns the first `limit` hits after `offset`, sorted deterministically.
func Rank(inputs []Input, originalQuery string, queryHadCompound bool, limit, offset int) Result {
	if len(inputs) == 0 {
		return Result{Hits: []Hit{}}
	}

	maxPerVariant := perVariantMax(inputs)

	byDoc := make(map[string]*Hit, len(inputs))
	variantSeen := make(map[string]map[query.Kind]bool, len(inputs))

	for _, in := range inputs {
		h, ok := byDoc[in.Hit.DocID]
		if !ok {
			h = &Hit{DocID: in.Hit.DocID, Payload: in.Hit.Payload}
			byDoc[in.Hit.DocID] = h
			variantSeen[in.Hit.DocID] = make(map[query.Kind]bool)
		}

		normalized := normalize(in.Hit.RawScore, maxPerVariant[in.Variant.Kind])
		candidate := in.Variant.Weight * normalized
		candidate += scoreBonuses(in.Hit, in.Variant, originalQuery, queryHadCompound)

		if candidate > h.FinalScore {
			h.FinalScore = candidate
		}
		if len(in.Hit.Highlights) > 0 {
			h.Highlights = in.Hit.Highlights
		}
		if !variantSeen[in.Hit.DocID][in.Variant.Kind] {
			variantSeen[in.Hit.DocID][in.Variant.Kind] = true
			h.ProducingVariants = append(h.ProducingVariants, in.Variant.Kind)
		}
	}

	hits := make([]Hit, 0, len(byDoc))
	for _, h := range byDoc {
		hits = append(hits, *h)
	}

	sort.Slice(hits, func(i, j int) bool { return compare(hits[i], hits[j]) })

	total := len(hits)
	hits = paginate(hits, limit, offset)

	return Result{Hits: hits, TotalCount: total}
}

// perVariantMax returns, per variant kind, the top raw_score seen across
// all inputs of that kind — the reference point normalize scales against
// (spec §4.G: "the top hit per variant is 1.0").
func perVariantMax(inputs []Input) map[query.Kind]float64 {
	maxes := make(map[query.Kind]float64)
	for _, in := range inputs {
		if in.Hit.RawScore > maxes[in.Variant.Kind] {
			maxes[in.Variant.Kind] = in.Hit.RawScore
		}
	}
	return maxes
}

func normalize(raw, max float64) float64 {
	if max == 0 {
		return 0
	}
	return raw / max
}

func scoreBonuses(hit backend.SearchHit, variant query.Variant, originalQuery string, queryHadCompound bool) float64 {
	var bonus float64
	for _, h := range hit.Highlights {
		if h == originalQuery {
			bonus += exactMatchBonus
			break
		}
	}
	if queryHadCompound && (variant.Kind == query.Tokenised || variant.Kind == query.CompoundSplit) {
		bonus += compoundMatchBonus
	}
	return bonus
}

// compare implements the spec §4.G tie-break: higher final_score, then
// more producing variants, then lower doc_id lexicographically — the
// same field-by-field deterministic shape as the teacher's
// RRFFusion.compare, generalized to this domain's fields.
func compare(a, b Hit) bool {
	if a.FinalScore != b.FinalScore {
		return a.FinalScore > b.FinalScore
	}
	if len(a.ProducingVariants) != len(b.ProducingVariants) {
		return len(a.ProducingVariants) > len(b.ProducingVariants)
	}
	return a.DocID < b.DocID
}

func paginate(hits []Hit, limit, offset int) []Hit {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(hits) {
		return []Hit{}
	}
	hits = hits[offset:]
	if limit > 0 && limit < len(hits) {
		hits = hits[:limit]
	}
	return hits
}
