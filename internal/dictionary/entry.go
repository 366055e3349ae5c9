// Package dictionary loads, validates, and hot-reloads the compound
// dictionary: the set of multi-syllable Thai surface forms (often
// loanwords) that the tokenizer must keep as single atomic tokens.
package dictionary

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CompoundEntry is one compound dictionary record.
type CompoundEntry struct {
	Surface        string    `json:"surface"`
	Components     []string  `json:"components,omitempty"`
	Category       string    `json:"category"`
	Confidence     float64   `json:"confidence"`
	OriginLanguage string    `json:"origin_language,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

const (
	minSurfaceRunes = 2
	maxSurfaceRunes = 64
)

// normalizeSurface returns the NFC-normalised form of s, which is the only
// form ever stored, compared, or looked up.
func normalizeSurface(s string) string {
	return norm.NFC.String(s)
}

// containsThai reports whether s contains at least one rune in the Thai
// Unicode block.
func containsThai(s string) bool {
	for _, r := range s {
		if isThaiRune(r) {
			return true
		}
	}
	return false
}

// isThaiRune reports whether r falls in the Thai Unicode block (U+0E00-U+0E7F).
func isThaiRune(r rune) bool {
	return r >= 0x0E00 && r <= 0x0E7F
}

// validate checks the §3 invariants for a single entry, assuming Surface is
// already NFC-normalised. It does not check for duplicates across entries;
// that is a set-level property checked in validateAll.
func (e CompoundEntry) validate() error {
	if e.Surface == "" {
		return fmt.Errorf("surface must not be empty")
	}
	if !containsThai(e.Surface) {
		return fmt.Errorf("surface %q must contain at least one Thai character", e.Surface)
	}
	n := len([]rune(e.Surface))
	if n < minSurfaceRunes {
		return fmt.Errorf("surface %q is shorter than %d code points", e.Surface, minSurfaceRunes)
	}
	if n > maxSurfaceRunes {
		return fmt.Errorf("surface %q is longer than %d code points", e.Surface, maxSurfaceRunes)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("surface %q has confidence %f outside [0,1]", e.Surface, e.Confidence)
	}
	return nil
}

// Offense records one invalid or duplicate row rejected during a load.
type Offense struct {
	Surface string
	Reason  string
}

// ValidationError lists every offending row from a single load attempt. A
// load never partially applies, so callers get the complete set of problems
// in one pass instead of fixing them one at a time.
type ValidationError struct {
	Offenses []Offense
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dictionary validation failed (%d offending rows):", len(e.Offenses))
	for _, o := range e.Offenses {
		fmt.Fprintf(&b, "\n  %q: %s", o.Surface, o.Reason)
	}
	return b.String()
}

// validateAll NFC-normalises every entry's surface, checks §3 invariants,
// and rejects duplicate surfaces. It returns the normalised entries and a
// *ValidationError listing every offending row, or nil if all entries are
// valid. Callers must not publish a partial result: either every entry is
// good, or none are applied.
func validateAll(entries []CompoundEntry) ([]CompoundEntry, error) {
	seen := make(map[string]int, len(entries))
	var offenses []Offense
	out := make([]CompoundEntry, len(entries))

	for i, e := range entries {
		e.Surface = normalizeSurface(e.Surface)
		out[i] = e

		if err := e.validate(); err != nil {
			offenses = append(offenses, Offense{Surface: e.Surface, Reason: err.Error()})
			continue
		}
		if first, dup := seen[e.Surface]; dup {
			offenses = append(offenses, Offense{
				Surface: e.Surface,
				Reason:  fmt.Sprintf("duplicate of row %d after NFC normalisation", first),
			})
			continue
		}
		seen[e.Surface] = i
	}

	if len(offenses) > 0 {
		return nil, &ValidationError{Offenses: offenses}
	}
	return out, nil
}

// isBlank reports whether r is whitespace with no visible glyph, used by
// the caller to decide whether a surface is worth indexing at all. Kept
// separate from unicode.IsSpace for clarity at call sites.
func isBlank(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
