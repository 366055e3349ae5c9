// Package trie implements the immutable longest-match compound index
// (spec §4.B): given a rune offset into a Thai string, find the longest
// configured compound surface starting there.
package trie

import "sort"

// Entry is the minimal information the trie needs from a compound
// dictionary record. It is deliberately independent of internal/dictionary
// to avoid an import cycle — internal/dictionary builds a Snapshot from its
// own CompoundEntry values by converting them to Entry first.
type Entry struct {
	Surface    string
	Confidence float64
}

type node struct {
	children   map[rune]*node
	terminal   bool
	surface    string
	confidence float64
}

func newNode() *node {
	return &node{children: make(map[rune]*node)}
}

// Match is a single compound match returned by LongestMatchAt.
type Match struct {
	Surface    string
	Confidence float64
	Length     int // length in runes
}

// Snapshot is an immutable trie built from one generation of the compound
// dictionary. Once built it is never mutated; concurrent readers need no
// locking (spec §5 "shared resources").
type Snapshot struct {
	root       *node
	generation uint64
	count      int
	prefilter  *Prefilter
}

// Generation returns the dictionary generation number this snapshot was
// built from, surfaced by /health/detailed.
func (s *Snapshot) Generation() uint64 {
	if s == nil {
		return 0
	}
	return s.generation
}

// Count returns the number of compound entries indexed by this snapshot.
func (s *Snapshot) Count() int {
	if s == nil {
		return 0
	}
	return s.count
}

// Empty returns an empty snapshot, used while the dictionary is degraded
// (initial load failed) or before the first successful load.
func Empty(generation uint64) *Snapshot {
	return &Snapshot{root: newNode(), generation: generation}
}

// Build constructs a new immutable Snapshot from entries. Entries are
// assumed already NFC-normalised and validated (internal/dictionary's job);
// Build does no validation and always returns a nil error: a repeated
// surface overwrites the earlier entry's confidence, and Count still
// counts both. If the prefilter cannot be built, the snapshot has none.
func Build(entries []Entry, generation uint64) (*Snapshot, error) {
	root := newNode()
	for _, e := range entries {
		insert(root, e)
	}

	snap := &Snapshot{root: root, generation: generation, count: len(entries)}
	pf, err := newPrefilter(entries)
	if err == nil {
		snap.prefilter = pf
	}
	return snap, nil
}

func insert(root *node, e Entry) {
	cur := root
	runes := []rune(e.Surface)
	for _, r := range runes {
		child, ok := cur.children[r]
		if !ok {
			child = newNode()
			cur.children[r] = child
		}
		cur = child
	}
	cur.terminal = true
	cur.surface = e.Surface
	cur.confidence = e.Confidence
}

// LongestMatchAt returns the longest compound surface in the snapshot that
// starts at text[pos], or ok=false if none matches. It is O(L) in the
// length of the match and allocates nothing beyond the returned Match.
//
// Because every surface in a snapshot is unique, a single trie walk visits
// at most one terminal node per depth, so the deepest (longest) terminal
// seen is unambiguously the winner — the length/confidence/lexicographic
// tie-break order from spec §4.B only comes into play when comparing
// candidates gathered from outside a single walk (see compareCandidates and
// BestMatch).
func (s *Snapshot) LongestMatchAt(text []rune, pos int) (Match, bool) {
	if s == nil || s.root == nil || pos < 0 || pos >= len(text) {
		return Match{}, false
	}

	cur := s.root
	var best Match
	found := false

	for i := pos; i < len(text); i++ {
		child, ok := cur.children[text[i]]
		if !ok {
			break
		}
		cur = child
		if cur.terminal {
			best = Match{Surface: cur.surface, Confidence: cur.confidence, Length: i - pos + 1}
			found = true
		}
	}

	return best, found
}

// compareCandidates implements the spec §4.B tie-break order: longest
// match wins; on equal length, higher confidence wins; on equal confidence,
// the lexicographically smaller surface wins. Returns true if a should be
// preferred over b.
func compareCandidates(a, b Match) bool {
	if a.Length != b.Length {
		return a.Length > b.Length
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Surface < b.Surface
}

// BestMatch picks the winning candidate from a set of matches gathered at
// the same position (e.g. from multiple overlapping sources), applying the
// spec §4.B tie-break order. Returns false if candidates is empty.
func BestMatch(candidates []Match) (Match, bool) {
	if len(candidates) == 0 {
		return Match{}, false
	}
	sorted := make([]Match, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return compareCandidates(sorted[i], sorted[j]) })
	return sorted[0], true
}
