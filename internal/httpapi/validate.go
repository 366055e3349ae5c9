package httpapi

import (
	"unicode/utf8"

	"github.com/thaiproxy/searchproxy/internal/apierrors"
)

const (
	minTextRunes = 1
	maxTextRunes = 10000
)

// validateText enforces spec §6's 1-10000 code point constraint shared by
// `text` and `query` request fields.
func validateText(field, value string) error {
	n := utf8.RuneCountInString(value)
	if n < minTextRunes || n > maxTextRunes {
		return apierrors.InvalidInput(field+" must be between 1 and 10000 code points", nil).
			WithDetail("field", field).WithDetail("length", n)
	}
	return nil
}

// validateLimitOffset enforces spec §6's limit 1-100, offset >= 0, filling
// in the default limit when the caller omitted it (limit == 0).
func validateLimitOffset(limit, offset int) (int, int, error) {
	if limit == 0 {
		limit = 10
	}
	if limit < 1 || limit > 100 {
		return 0, 0, apierrors.InvalidInput("limit must be between 1 and 100", nil).WithDetail("limit", limit)
	}
	if offset < 0 {
		return 0, 0, apierrors.InvalidInput("offset must be >= 0", nil).WithDetail("offset", offset)
	}
	return limit, offset, nil
}
