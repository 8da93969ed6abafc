package query

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Signals are structured hints extracted from a normalized query.
type Signals struct {
	MaxPrice      *float64 `json:"max_price,omitempty"`
	Vegetarian    bool     `json:"vegetarian,omitempty"`
	Vegan         bool     `json:"vegan,omitempty"`
	NonVegetarian bool     `json:"non_vegetarian,omitempty"`
	Category      string   `json:"category,omitempty"`
}

type pricePattern struct {
	re    *regexp.Regexp
	scale float64
}

// "around N" allows some headroom above N.
var pricePatterns = []pricePattern{
	{regexp.MustCompile(`under\s+(\d+)`), 1},
	{regexp.MustCompile(`below\s+(\d+)`), 1},
	{regexp.MustCompile(`less\s+than\s+(\d+)`), 1},
	{regexp.MustCompile(`cheaper\s+than\s+(\d+)`), 1},
	{regexp.MustCompile(`within\s+(\d+)`), 1},
	{regexp.MustCompile(`max\s+(\d+)`), 1},
	{regexp.MustCompile(`maximum\s+(\d+)`), 1},
	{regexp.MustCompile(`upto\s+(\d+)`), 1},
	{regexp.MustCompile(`around\s+(\d+)`), 1.2},
}

// ExtractSignals pulls a price ceiling, dietary intent and a category hint out of q.
func ExtractSignals(q string) Signals {
	lower := strings.ToLower(q)
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == ',' || r == '.' || r == '?' || r == '!'
	})

	var s Signals
	s.MaxPrice = extractMaxPrice(lower)

	s.NonVegetarian = slices.Contains(tokens, "non-veg") ||
		slices.Contains(tokens, "nonveg") ||
		strings.Contains(lower, "non vegetarian")
	s.Vegan = slices.Contains(tokens, "vegan")
	s.Vegetarian = !s.NonVegetarian && (slices.Contains(tokens, "veg") ||
		slices.Contains(tokens, "vegetarian") ||
		slices.Contains(tokens, "veggie"))

	for _, tok := range tokens {
		if slices.Contains(categoryHints, tok) {
			s.Category = tok
			break
		}
	}
	return s
}

func extractMaxPrice(q string) *float64 {
	for _, p := range pricePatterns {
		m := p.re.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		v := n * p.scale
		return &v
	}
	return nil
}
