// internal/continuity/similarity.go
package continuity

import (
	"strings"
)

// Similarity scores two prompt strings in [0, 1] using the Dice coefficient
// over case-folded word sets. Word order is ignored; two prompts sharing 90%
// of their words score around 0.9.
func Similarity(a, b string) float64 {
	wordsA := tokenSet(a)
	wordsB := tokenSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	shared := 0
	for word := range wordsA {
		if _, ok := wordsB[word]; ok {
			shared++
		}
	}

	return 2 * float64(shared) / float64(len(wordsA)+len(wordsB))
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(s)) {
		word := strings.Trim(field, ".,;:!?\"'()[]")
		if word != "" {
			out[word] = struct{}{}
		}
	}
	return out
}
