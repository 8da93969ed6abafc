// Package query normalizes and expands raw user queries before they are embedded.
package query

import (
	"regexp"
	"slices"
	"strings"
)

// Enhanced is an expanded query. Original always leads Text.
type Enhanced struct {
	Original string
	Text     string
}

// Enhance lowercases q and appends synonym groups for known tokens plus bare
// food terms hidden inside compound tokens. Expansion is deliberately loose.
func Enhance(q string) Enhanced {
	lower := strings.ToLower(q)
	words := strings.Fields(lower)

	terms := []string{lower}
	for _, w := range words {
		if exp, ok := expansions[w]; ok {
			terms = append(terms, exp)
		}
	}
	for _, term := range foodTerms {
		if strings.Contains(lower, term) && !slices.Contains(words, term) {
			terms = append(terms, term)
		}
	}

	return Enhanced{Original: lower, Text: strings.Join(terms, " ")}
}

var (
	spaceRe   = regexp.MustCompile(`\s+`)
	nonWordRe = regexp.MustCompile(`[^a-z0-9 ]+`)
)

// folds replace the whole query when the cleaned form matches exactly.
var folds = map[string]string{
	"desert":  "dessert",
	"deserts": "desserts",
}

// Normalize lowercases, trims and collapses whitespace, then folds known
// misspellings onto their canonical term. A fold replaces the whole query.
// Without a fold the punctuation is kept so tokens like "non-veg" survive.
func Normalize(q string) string {
	norm := strings.TrimSpace(spaceRe.ReplaceAllString(strings.ToLower(q), " "))
	cleaned := strings.TrimSpace(spaceRe.ReplaceAllString(nonWordRe.ReplaceAllString(norm, ""), " "))

	if strings.Contains(cleaned, "desert") && !strings.Contains(cleaned, "dessert") {
		return "dessert"
	}
	if canon, ok := folds[cleaned]; ok {
		return canon
	}
	return norm
}
