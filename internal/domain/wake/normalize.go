package wake

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes a transcript fragment for phrase matching:
// lower-case, apostrophes removed, every run of non-alphanumeric characters
// collapsed to a single space, leading/trailing space trimmed.
//
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	pendingSpace := false
	for _, r := range strings.ToLower(text) {
		switch {
		case r == '\'' || r == '’':
			// Apostrophes vanish entirely so "that's" matches "thats".
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		default:
			pendingSpace = true
		}
	}

	return b.String()
}
