package catalog

import (
	"context"

	"github.com/kailas-cloud/menudex/internal/domain/catalog"
	"github.com/kailas-cloud/menudex/internal/domain/menu"
)

// Source reads the current catalog.
type Source interface {
	Load(ctx context.Context) (menu.Snapshot, error)
}

// Index is the write side of the vector index.
type Index interface {
	Rebuild(ctx context.Context, entries []catalog.Entry) (catalog.Generation, error)
	Count() int
}
