package trie

import "github.com/coregx/ahocorasick"

// Prefilter wraps an Aho-Corasick automaton built from the same surface
// set as a Snapshot. It answers one question cheaply — "could any compound
// possibly start somewhere in this text?" — so the tokenizer can skip the
// rune-by-rune trie walk entirely on long compound-free runs. It never
// changes the tokenization result, only skips work; mirrors the
// prefilter/authoritative-engine split used by coregx's own regex engine.
type Prefilter struct {
	automaton *ahocorasick.Automaton
}

func newPrefilter(entries []Entry) (*Prefilter, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	builder := ahocorasick.NewBuilder()
	for _, e := range entries {
		if e.Surface == "" {
			continue
		}
		builder.AddPattern([]byte(e.Surface))
	}
	auto, err := builder.Build()
	if err != nil {
		return nil, err
	}
	return &Prefilter{automaton: auto}, nil
}

// ContainsAny reports whether text could contain any configured compound.
// A false result guarantees no compound is present; a true result merely
// means the authoritative trie walk should actually run.
func (p *Prefilter) ContainsAny(text []byte) bool {
	if p == nil || p.automaton == nil {
		return false
	}
	return p.automaton.IsMatch(text)
}

// Prefilter exposes the snapshot's Aho-Corasick prefilter, or nil if the
// snapshot has no entries.
func (s *Snapshot) Prefilter() *Prefilter {
	if s == nil {
		return nil
	}
	return s.prefilter
}
