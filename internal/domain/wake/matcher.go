package wake

import "strings"

// Matcher classifies normalized transcripts against the wake-phrase catalog.
// Exact phrase and phonetic-variant containment are tried first; a phonetic
// shape heuristic then recovers spellings the catalog does not list.
// Streaming recognizers transliterate the wake word inconsistently, so the
// heuristic trades occasional false positives for recall. Activation only
// opens a conversation turn, it never executes a command, which keeps that
// trade acceptable.
type Matcher struct {
	phrases  []string
	variants []string
}

// NewMatcher builds a wake matcher. Phrases and variants are normalized once
// here so per-transcript matching stays allocation free.
func NewMatcher(phrases, variants []string) *Matcher {
	return &Matcher{
		phrases:  normalizeAll(phrases),
		variants: normalizeAll(variants),
	}
}

// IsWakeWord reports whether the normalized text contains a wake phrase, a
// catalogued phonetic variant, or a token with the wake word's phonetic shape.
func (m *Matcher) IsWakeWord(normalized string) bool {
	for _, p := range m.phrases {
		if p != "" && strings.Contains(normalized, p) {
			return true
		}
	}
	for _, v := range m.variants {
		if v != "" && strings.Contains(normalized, v) {
			return true
		}
	}

	for _, token := range strings.Fields(normalized) {
		if matchesPhoneticShape(token) {
			return true
		}
	}
	return false
}

// matchesPhoneticShape implements the heuristic token scan: length in [4,8],
// a sibilant onset (s, c, ps), an -r style coda (er, ur, r, fur), and a long
// vowel body (i, y, or ai).
func matchesPhoneticShape(token string) bool {
	n := len(token)
	if n < 4 || n > 8 {
		return false
	}

	if !strings.HasPrefix(token, "s") &&
		!strings.HasPrefix(token, "c") &&
		!strings.HasPrefix(token, "ps") {
		return false
	}

	if !strings.HasSuffix(token, "er") &&
		!strings.HasSuffix(token, "ur") &&
		!strings.HasSuffix(token, "r") &&
		!strings.HasSuffix(token, "fur") {
		return false
	}

	return strings.Contains(token, "i") ||
		strings.Contains(token, "y") ||
		strings.Contains(token, "ai")
}

// PhraseSet matches normalized text by pure substring containment. End and
// pause phrases use it with no heuristic fallback: they terminate an active
// session and must stay low-false-positive.
type PhraseSet struct {
	phrases []string
}

func NewPhraseSet(phrases []string) *PhraseSet {
	return &PhraseSet{phrases: normalizeAll(phrases)}
}

// Contains reports whether any configured phrase occurs in the text.
func (s *PhraseSet) Contains(normalized string) bool {
	for _, p := range s.phrases {
		if p != "" && strings.Contains(normalized, p) {
			return true
		}
	}
	return false
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, Normalize(s))
	}
	return out
}
