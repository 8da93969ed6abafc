package menudex

import "github.com/kailas-cloud/menudex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidRequest         = domain.ErrInvalidRequest
	ErrEmptyIndex             = domain.ErrEmptyIndex
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrCatalogUnavailable     = domain.ErrCatalogUnavailable
	ErrDuplicateItem          = domain.ErrDuplicateItem
	ErrRebuildFailed          = domain.ErrRebuildFailed
	ErrVectorDimMismatch      = domain.ErrVectorDimMismatch
)
