package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/menudex/internal/domain"
	"github.com/kailas-cloud/menudex/internal/domain/menu"
)

// FuncSource adapts an in-process loader to a catalog source.
// Items go through the same validation as file and database rows.
type FuncSource struct {
	load   func(ctx context.Context) ([]menu.Item, error)
	logger *zap.Logger
}

// NewFuncSource wraps load.
func NewFuncSource(load func(ctx context.Context) ([]menu.Item, error), logger *zap.Logger) *FuncSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FuncSource{load: load, logger: logger}
}

// Load calls the wrapped loader and drops invalid items.
func (s *FuncSource) Load(ctx context.Context) (menu.Snapshot, error) {
	items, err := s.load(ctx)
	if err != nil {
		return menu.Snapshot{}, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}
	snap := menu.Snapshot{Items: make([]menu.Item, 0, len(items))}
	for _, it := range items {
		keep(&snap, it, s.logger)
	}
	return snap, nil
}
