package learned

import (
	"strings"
	"unicode"
)

// NormalizeQuestion derives the cache key for a question: case-folded,
// punctuation stripped, runs of whitespace collapsed to single spaces.
// Two textually distinct but normalized-equal questions hit the same
// learned entry ("What is ML?" and "what is ml" share one key).
//
// Normalization is purely lexical. Semantic reuse of similar questions
// is the vector retrieval path's job, not this cache's.
func NormalizeQuestion(question string) string {
	var b strings.Builder
	b.Grow(len(question))

	lastSpace := true // collapses leading whitespace too
	for _, r := range strings.ToLower(question) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped: punctuation must not split cache keys
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}

	return strings.TrimRight(b.String(), " ")
}
