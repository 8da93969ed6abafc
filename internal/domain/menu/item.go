// Package menu defines the catalog item record consumed by the retrieval engine.
package menu

import (
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/menudex/internal/domain"
)

// DefaultCategory is assigned to items that arrive without a category.
const DefaultCategory = "General"

// Spice levels recognized by the reranker.
const (
	SpiceMild   = "mild"
	SpiceMedium = "medium"
	SpiceHot    = "hot"
)

// Item is one read-only menu record. ID is unique and stable across rebuilds.
type Item struct {
	ID           string
	Name         string
	Price        float64
	Category     string
	Cuisine      string
	SpiceLevel   string
	Description  string
	IsVegetarian bool
	IsVegan      bool
	ContainsEgg  bool
	Ingredients  []string
	Keywords     []string
}

// Validate checks required fields and fills the category default.
func (it *Item) Validate() error {
	it.ID = strings.TrimSpace(it.ID)
	it.Name = strings.TrimSpace(it.Name)
	if it.ID == "" {
		return fmt.Errorf("%w: id is required", domain.ErrInvalidItem)
	}
	if it.Name == "" {
		return fmt.Errorf("%w: item %s: name is required", domain.ErrInvalidItem, it.ID)
	}
	if it.Price < 0 || math.IsNaN(it.Price) || math.IsInf(it.Price, 0) {
		return fmt.Errorf("%w: item %s: invalid price %v", domain.ErrInvalidItem, it.ID, it.Price)
	}
	if strings.TrimSpace(it.Category) == "" {
		it.Category = DefaultCategory
	}
	return nil
}

// EffectiveSpice returns the spice level used for matching; unset means mild.
func (it *Item) EffectiveSpice() string {
	if it.SpiceLevel == "" {
		return SpiceMild
	}
	return it.SpiceLevel
}

// Snapshot is one read of the catalog. Skipped counts records that failed validation.
type Snapshot struct {
	Items   []Item
	Skipped int
}
