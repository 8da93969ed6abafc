package domain

import "errors"

var (
	// ErrInvalidItem signals a catalog item that cannot be indexed.
	ErrInvalidItem = errors.New("invalid item")
	// ErrDuplicateItem signals two catalog items sharing one identifier.
	ErrDuplicateItem = errors.New("duplicate item id")
	// ErrInvalidRequest signals malformed retrieval parameters.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEmptyIndex signals that no rebuild has committed any items yet.
	ErrEmptyIndex = errors.New("index is empty")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCatalogUnavailable signals that the catalog source could not be read.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrRebuildFailed signals a rebuild that did not commit.
	ErrRebuildFailed = errors.New("rebuild failed")
)
