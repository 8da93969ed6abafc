package request

import (
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/menudex/internal/domain"
	"github.com/kailas-cloud/menudex/internal/domain/catalog"
	"github.com/kailas-cloud/menudex/internal/domain/search/filter"
)

// Retrieval parameter limits.
const (
	// MaxQueryLength is the maximum allowed query length in bytes.
	MaxQueryLength = 1024
	DefaultTopK    = 5
	MaxTopK        = 50

	// OverFetchFactor widens the vector search so the reranker can recover from imperfect ordering.
	OverFetchFactor = 3
	// MaxSearchK caps the vector search width.
	MaxSearchK = 50
)

// Request is a validated retrieval query. An empty query is valid.
type Request struct {
	query          string
	topK           int
	maxPrice       *float64
	vegetarianOnly bool
	veganOnly      bool
	category       string
}

// Option configures a Request.
type Option func(*Request)

// WithTopK sets the number of results. Zero means DefaultTopK.
func WithTopK(k int) Option { return func(r *Request) { r.topK = k } }

// WithMaxPrice sets a hard price ceiling.
func WithMaxPrice(p float64) Option { return func(r *Request) { r.maxPrice = &p } }

// WithVegetarianOnly restricts results to vegetarian items.
func WithVegetarianOnly(v bool) Option { return func(r *Request) { r.vegetarianOnly = v } }

// WithVeganOnly restricts results to vegan items.
func WithVeganOnly(v bool) Option { return func(r *Request) { r.veganOnly = v } }

// WithCategory restricts results to one category (case-sensitive equality).
func WithCategory(c string) Option { return func(r *Request) { r.category = strings.TrimSpace(c) } }

// New validates and normalizes retrieval parameters.
// top_k above MaxTopK is clamped; negative top_k or an invalid price is rejected.
func New(query string, opts ...Option) (Request, error) {
	r := Request{query: query}
	for _, opt := range opts {
		opt(&r)
	}

	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidRequest, MaxQueryLength)
	}
	if r.topK < 0 {
		return Request{}, fmt.Errorf("%w: top_k must be positive", domain.ErrInvalidRequest)
	}
	if r.topK == 0 {
		r.topK = DefaultTopK
	}
	if r.topK > MaxTopK {
		r.topK = MaxTopK
	}
	if r.maxPrice != nil && (*r.maxPrice < 0 || math.IsNaN(*r.maxPrice) || math.IsInf(*r.maxPrice, 0)) {
		return Request{}, fmt.Errorf("%w: max_price must be a non-negative number", domain.ErrInvalidRequest)
	}
	return r, nil
}

// Query returns the raw query text.
func (r *Request) Query() string { return r.query }

// TopK returns the number of results to return.
func (r *Request) TopK() int { return r.topK }

// SearchK returns the over-fetched vector search width: min(top_k*3, 50).
func (r *Request) SearchK() int { return min(r.topK*OverFetchFactor, MaxSearchK) }

// MaxPrice returns the price ceiling, nil when unset. Zero is a valid ceiling.
func (r *Request) MaxPrice() *float64 { return r.maxPrice }

// VegetarianOnly reports whether only vegetarian items are requested.
func (r *Request) VegetarianOnly() bool { return r.vegetarianOnly }

// VeganOnly reports whether only vegan items are requested.
func (r *Request) VeganOnly() bool { return r.veganOnly }

// Category returns the requested category, empty when unset.
func (r *Request) Category() string { return r.category }

// Filters builds the metadata pre-filter from the structured constraints.
// Unset constraints add no condition.
func (r *Request) Filters() filter.Expression {
	var conds []filter.Condition
	if r.vegetarianOnly {
		c, _ := filter.NewFlag(catalog.FieldIsVegetarian, true)
		conds = append(conds, c)
	}
	if r.veganOnly {
		c, _ := filter.NewFlag(catalog.FieldIsVegan, true)
		conds = append(conds, c)
	}
	if r.category != "" {
		c, _ := filter.NewMatch(catalog.FieldCategory, r.category)
		conds = append(conds, c)
	}
	e, _ := filter.NewExpression(conds...)
	return e
}
