package dictionary

import (
	"encoding/json"
	"fmt"
	"time"
)

// rawEntry mirrors the `entries` array schema from spec §4.A:
// {"entries": [{surface, components?, category, confidence?, origin_language?}]}.
type rawEntry struct {
	Surface        string   `json:"surface"`
	Components     []string `json:"components,omitempty"`
	Category       string   `json:"category"`
	Confidence     *float64 `json:"confidence,omitempty"`
	OriginLanguage string   `json:"origin_language,omitempty"`
}

type entriesSchema struct {
	Entries []rawEntry `json:"entries"`
}

// defaultConfidence is used when an entry omits confidence.
const defaultConfidence = 1.0

// ParseSource accepts either dictionary JSON schema from spec §4.A:
//
//   - category-keyed:  {"<category>": ["surface1", "surface2", ...], ...}
//   - explicit entries: {"entries": [{surface, components?, category, confidence?}]}
//
// and returns the decoded (but not yet validated) entries. now is stamped
// as both CreatedAt and UpdatedAt for every entry, since a freshly parsed
// file has no prior history to preserve.
func ParseSource(data []byte, now time.Time) ([]CompoundEntry, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("dictionary source is not a JSON object: %w", err)
	}

	if _, ok := probe["entries"]; ok {
		var schema entriesSchema
		if err := json.Unmarshal(data, &schema); err != nil {
			return nil, fmt.Errorf("failed to parse entries schema: %w", err)
		}
		out := make([]CompoundEntry, 0, len(schema.Entries))
		for _, r := range schema.Entries {
			conf := defaultConfidence
			if r.Confidence != nil {
				conf = *r.Confidence
			}
			out = append(out, CompoundEntry{
				Surface:        r.Surface,
				Components:     r.Components,
				Category:       r.Category,
				Confidence:     conf,
				OriginLanguage: r.OriginLanguage,
				CreatedAt:      now,
				UpdatedAt:      now,
			})
		}
		return out, nil
	}

	var byCategory map[string][]string
	if err := json.Unmarshal(data, &byCategory); err != nil {
		return nil, fmt.Errorf("failed to parse category-keyed schema: %w", err)
	}
	out := make([]CompoundEntry, 0, len(byCategory))
	for category, surfaces := range byCategory {
		for _, surface := range surfaces {
			out = append(out, CompoundEntry{
				Surface:    surface,
				Category:   category,
				Confidence: defaultConfidence,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		}
	}
	return out, nil
}
