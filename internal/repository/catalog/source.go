// Package catalog loads menu items from the systems that own them.
package catalog

import (
	"go.uber.org/zap"

	"github.com/kailas-cloud/menudex/internal/domain/menu"
)

// keep validates it and appends it to snap, or counts it as skipped.
func keep(snap *menu.Snapshot, it menu.Item, logger *zap.Logger) {
	if err := it.Validate(); err != nil {
		snap.Skipped++
		logger.Warn("Skipping catalog item", zap.String("id", it.ID), zap.Error(err))
		return
	}
	snap.Items = append(snap.Items, it)
}
