package retrieval

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// fuzzyThreshold is the score above which fuzzy similarity adds to the boost.
const fuzzyThreshold = 0.6

// fuzzyScore is 1.0 when q is a case-insensitive substring of name, otherwise
// the best token-to-token similarity ratio between q and name.
func fuzzyScore(q, name string) float64 {
	ql := strings.ToLower(q)
	nl := strings.ToLower(name)
	if strings.Contains(nl, ql) {
		return 1.0
	}

	var best float64
	for _, qw := range strings.Fields(ql) {
		for _, nw := range strings.Fields(nl) {
			best = max(best, similarity(qw, nw))
		}
	}
	return best
}

// similarity is the SequenceMatcher ratio 2*M/T of a and b over runes.
func similarity(a, b string) float64 {
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
}
