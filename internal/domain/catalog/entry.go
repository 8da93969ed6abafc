package catalog

import (
	"fmt"

	"github.com/kailas-cloud/menudex/internal/domain"
)

// Entry is one stored index record. Entries are replaced wholesale on rebuild.
type Entry struct {
	ID       string
	Vector   []float32
	Metadata Metadata
	Text     string
}

// ValidateEntries checks ids and vector dimensions and returns the common dimension.
// want pins the dimension; zero accepts the first entry's length.
func ValidateEntries(entries []Entry, want int) (int, error) {
	dim := want
	seen := make(map[string]struct{}, len(entries))
	for j := range entries {
		e := &entries[j]
		if e.ID == "" {
			return 0, fmt.Errorf("%w: entry %d has empty id", domain.ErrInvalidItem, j)
		}
		if _, ok := seen[e.ID]; ok {
			return 0, fmt.Errorf("%w: %s", domain.ErrDuplicateItem, e.ID)
		}
		seen[e.ID] = struct{}{}

		if len(e.Vector) == 0 {
			return 0, fmt.Errorf("%w: entry %s has no vector", domain.ErrInvalidItem, e.ID)
		}
		if dim == 0 {
			dim = len(e.Vector)
		}
		if err := domain.CheckDimensions(e.Vector, dim); err != nil {
			return 0, fmt.Errorf("entry %s: %w", e.ID, err)
		}
	}
	return dim, nil
}
