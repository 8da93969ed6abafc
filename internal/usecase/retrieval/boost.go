package retrieval

import (
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/menudex/internal/domain/catalog"
	"github.com/kailas-cloud/menudex/internal/domain/menu"
)

// queryView is the lowercased query the boost rules read.
type queryView struct {
	lower string
	words []string // unique whitespace tokens
}

func newQueryView(q string) queryView {
	lower := strings.ToLower(q)
	fields := strings.Fields(lower)
	words := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, w := range fields {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	return queryView{lower: lower, words: words}
}

// longWords returns the tokens longer than two characters.
func (q *queryView) longWords() []string {
	out := make([]string, 0, len(q.words))
	for _, w := range q.words {
		if utf8.RuneCountInString(w) > 2 {
			out = append(out, w)
		}
	}
	return out
}

// anyWordIn reports whether some query token is a substring of s.
func anyWordIn(words []string, s string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// item is the lowercased candidate the boost rules read.
type item struct {
	md       catalog.Metadata
	name     string
	category string
	cuisine  string
}

func newItem(md catalog.Metadata) item {
	return item{
		md:       md,
		name:     strings.ToLower(md.Name),
		category: strings.ToLower(md.Category),
		cuisine:  strings.ToLower(md.Cuisine),
	}
}

// rule yields a multiplier when it applies to the candidate.
type rule func(q *queryView, it *item) (float64, bool)

// ruleGroup applies the multiplier of its first applicable rule only.
// Independent signals are groups of one.
type ruleGroup struct {
	name  string
	rules []rule
}

func single(name string, r rule) ruleGroup { return ruleGroup{name: name, rules: []rule{r}} }

// boostTable is evaluated in order; multipliers compound.
var boostTable = []ruleGroup{
	single("exact_name", func(q *queryView, it *item) (float64, bool) {
		return 2.0, q.lower == it.name
	}),
	single("name_contains_query", func(q *queryView, it *item) (float64, bool) {
		return 1.5, strings.Contains(it.name, q.lower)
	}),
	single("name_prefix", func(q *queryView, it *item) (float64, bool) {
		return 1.4, strings.HasPrefix(it.name, q.lower)
	}),
	single("name_word_overlap", nameOverlap),
	single("ingredients", ingredientOverlap),
	single("category", func(q *queryView, it *item) (float64, bool) {
		return 1.25, it.category != "" && anyWordIn(q.words, it.category)
	}),
	single("cuisine", func(q *queryView, it *item) (float64, bool) {
		return 1.2, it.cuisine != "" && anyWordIn(q.words, it.cuisine)
	}),
	{name: "price", rules: []rule{
		priceBucket("cheap", 0, 50),
		priceBucket("budget", 0, 60),
		priceBucket("affordable", 0, 80),
		priceBucket("moderate", 50, 120),
		priceBucket("expensive", 120, 500),
		priceBucket("premium", 150, 500),
	}},
	{name: "dietary", rules: []rule{
		dietary("veg", 1.3, func(m *catalog.Metadata) bool { return m.IsVegetarian }),
		dietary("vegetarian", 1.3, func(m *catalog.Metadata) bool { return m.IsVegetarian }),
		dietary("non-veg", 1.3, func(m *catalog.Metadata) bool { return !m.IsVegetarian }),
		dietary("non vegetarian", 1.3, func(m *catalog.Metadata) bool { return !m.IsVegetarian }),
		dietary("vegan", 1.4, func(m *catalog.Metadata) bool { return m.IsVegan }),
		dietary("egg", 1.3, func(m *catalog.Metadata) bool { return m.ContainsEgg }),
	}},
	{name: "spice", rules: []rule{
		spice("spicy", menu.SpiceHot),
		spice("hot", menu.SpiceHot),
		spice("mild", menu.SpiceMild),
		spice("medium", menu.SpiceMedium),
	}},
	single("keywords", keywordOverlap),
	{name: "cooking_style", rules: []rule{
		cookingStyle("fried"),
		cookingStyle("grilled"),
		cookingStyle("steamed"),
		cookingStyle("baked"),
		cookingStyle("roasted"),
	}},
	{name: "meal_time", rules: []rule{
		mealTime("breakfast", "breakfast", "morning", "idli", "dosa", "upma", "poha"),
		mealTime("lunch", "lunch", "thali", "meal", "rice"),
		mealTime("dinner", "dinner", "evening", "meal"),
		mealTime("snack", "snack", "teatime", "evening"),
	}},
}

// boostFactor folds the boost table over one candidate.
func boostFactor(q *queryView, it *item) float64 {
	boost := 1.0
	for _, g := range boostTable {
		for _, r := range g.rules {
			if m, ok := r(q, it); ok {
				boost *= m
				break
			}
		}
	}
	return boost
}

func nameOverlap(q *queryView, it *item) (float64, bool) {
	nameWords := make(map[string]struct{})
	for _, w := range strings.Fields(it.name) {
		nameWords[w] = struct{}{}
	}
	n := 0
	for _, w := range q.words {
		if _, ok := nameWords[w]; ok {
			n++
		}
	}
	return 1 + 0.2*float64(n), n > 0
}

// ingredientOverlap scores a point when a long query token occurs in an
// ingredient and another when the ingredient occurs in the query.
func ingredientOverlap(q *queryView, it *item) (float64, bool) {
	long := q.longWords()
	n := 0
	for _, ing := range it.md.Ingredients {
		il := strings.ToLower(strings.TrimSpace(ing))
		if il == "" {
			continue
		}
		if anyWordIn(long, il) {
			n++
		}
		if strings.Contains(q.lower, il) {
			n++
		}
	}
	return 1 + 0.15*float64(min(n, 3)), n > 0
}

func keywordOverlap(q *queryView, it *item) (float64, bool) {
	long := q.longWords()
	n := 0
	for _, kw := range it.md.Keywords {
		if anyWordIn(long, strings.ToLower(kw)) {
			n++
		}
	}
	return 1 + 0.1*float64(min(n, 3)), n > 0
}

// priceBucket applies when the keyword is in the query and the price is within [lo, hi].
func priceBucket(keyword string, lo, hi float64) rule {
	return func(q *queryView, it *item) (float64, bool) {
		return 1.4, strings.Contains(q.lower, keyword) && it.md.Price >= lo && it.md.Price <= hi
	}
}

func dietary(keyword string, mult float64, want func(*catalog.Metadata) bool) rule {
	return func(q *queryView, it *item) (float64, bool) {
		return mult, strings.Contains(q.lower, keyword) && want(&it.md)
	}
}

// spice compares case-insensitively; a missing level counts as mild.
func spice(keyword, level string) rule {
	return func(q *queryView, it *item) (float64, bool) {
		actual := it.md.SpiceLevel
		if actual == "" {
			actual = menu.SpiceMild
		}
		return 1.25, strings.Contains(q.lower, keyword) && strings.EqualFold(actual, level)
	}
}

func cookingStyle(style string) rule {
	return func(q *queryView, it *item) (float64, bool) {
		return 1.2, strings.Contains(q.lower, style) && strings.Contains(it.name, style)
	}
}

func mealTime(keyword string, indicators ...string) rule {
	return func(q *queryView, it *item) (float64, bool) {
		if !strings.Contains(q.lower, keyword) {
			return 1.2, false
		}
		for _, ind := range indicators {
			if strings.Contains(it.name, ind) || strings.Contains(it.category, ind) {
				return 1.2, true
			}
		}
		return 1.2, false
	}
}
