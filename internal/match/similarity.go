package match

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// Similarity scores two free-text names in [0, 1]. Comparison is
// case-insensitive, punctuation-stripped and token-order-independent, so
// reordered procedure names ("Knee Replacement Total" vs "Total Knee
// Replacement") score 1.0 and misspellings degrade gracefully via edit
// distance. The score is the better of edit-distance similarity over the
// sorted token strings and the token-set overlap coefficient, which keeps a
// three-word name from fully matching a one-word entry.
func Similarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	sortedA := strings.Join(ta, " ")
	sortedB := strings.Join(tb, " ")
	if sortedA == sortedB {
		return 1
	}

	best := levenshtein.Similarity(sortedA, sortedB, nil)

	shared := 0
	setB := make(map[string]bool, len(tb))
	for _, t := range tb {
		setB[t] = true
	}
	for _, t := range ta {
		if setB[t] {
			shared++
		}
	}
	larger := len(ta)
	if len(tb) > larger {
		larger = len(tb)
	}
	if overlap := float64(shared) / float64(larger); overlap > best {
		best = overlap
	}

	return best
}

// tokenSet lowercases, strips punctuation and returns the sorted unique
// tokens of a name.
func tokenSet(s string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	seen := make(map[string]bool)
	var tokens []string
	for _, t := range strings.Fields(b.String()) {
		if !seen[t] {
			seen[t] = true
			tokens = append(tokens, t)
		}
	}
	sort.Strings(tokens)
	return tokens
}
