// Package retrieval turns a free-text menu query into a ranked list of items.
package retrieval

import (
	"context"

	"github.com/kailas-cloud/menudex/internal/domain"
	"github.com/kailas-cloud/menudex/internal/domain/search/filter"
	"github.com/kailas-cloud/menudex/internal/domain/search/result"
)

// Index is the read side of the vector index.
// An uninitialized or empty index returns domain.ErrEmptyIndex.
type Index interface {
	Query(ctx context.Context, vector []float32, k int, f filter.Expression) ([]result.Candidate, error)
}

// Embedder vectorizes the expanded query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
