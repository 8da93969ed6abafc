package menudex

import "github.com/kailas-cloud/menudex/internal/domain/search/request"

// Query is a fluent builder for a retrieval request.
type Query struct {
	text           string
	topK           int
	maxPrice       *float64
	vegetarianOnly bool
	veganOnly      bool
	category       string
}

// NewQuery starts a query for the free-text description text.
func NewQuery(text string) *Query {
	return &Query{text: text}
}

// TopK sets the number of results. Default 5, capped at 50.
func (q *Query) TopK(k int) *Query {
	q.topK = k
	return q
}

// MaxPrice drops items priced above p. Without it a ceiling read from the
// query text ("under 200") may apply.
func (q *Query) MaxPrice(p float64) *Query {
	q.maxPrice = &p
	return q
}

// VegetarianOnly restricts results to vegetarian items.
func (q *Query) VegetarianOnly() *Query {
	q.vegetarianOnly = true
	return q
}

// VeganOnly restricts results to vegan items.
func (q *Query) VeganOnly() *Query {
	q.veganOnly = true
	return q
}

// Category restricts results to one category (exact, case-sensitive).
func (q *Query) Category(c string) *Query {
	q.category = c
	return q
}

func (q *Query) request() (request.Request, error) {
	opts := []request.Option{
		request.WithTopK(q.topK),
		request.WithVegetarianOnly(q.vegetarianOnly),
		request.WithVeganOnly(q.veganOnly),
		request.WithCategory(q.category),
	}
	if q.maxPrice != nil {
		opts = append(opts, request.WithMaxPrice(*q.maxPrice))
	}
	return request.New(q.text, opts...)
}
