package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/menudex/internal/domain"
	"github.com/kailas-cloud/menudex/internal/domain/menu"
)

// FileSource reads the structured menu JSON produced by the menu extractor.
type FileSource struct {
	path   string
	logger *zap.Logger
}

// NewFileSource creates a source for the JSON array at path.
func NewFileSource(path string, logger *zap.Logger) *FileSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{path: path, logger: logger}
}

type fileItem struct {
	ID           json.RawMessage `json:"id"`
	Name         string          `json:"name"`
	Price        flexNumber      `json:"price"`
	Category     string          `json:"category"`
	Cuisine      string          `json:"cuisine_type"`
	SpiceLevel   string          `json:"spice_level"`
	Description  string          `json:"description"`
	IsVegetarian bool            `json:"is_vegetarian"`
	IsVegan      bool            `json:"is_vegan"`
	ContainsEgg  bool            `json:"contains_egg"`
	Ingredients  []string        `json:"ingredients"`
	Keywords     []string        `json:"search_keywords"`
}

// flexNumber accepts a JSON number or a numeric string.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		b = []byte(s)
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("price %q: %w", b, err)
	}
	*n = flexNumber(v)
	return nil
}

// Load reads the whole file. An item without an id takes its 1-based position.
func (s *FileSource) Load(ctx context.Context) (menu.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return menu.Snapshot{}, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return menu.Snapshot{}, fmt.Errorf("%w: read %s: %w", domain.ErrCatalogUnavailable, s.path, err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return menu.Snapshot{}, fmt.Errorf("%w: decode %s: %w", domain.ErrCatalogUnavailable, s.path, err)
	}

	var snap menu.Snapshot
	for i, rec := range records {
		var fi fileItem
		if err := json.Unmarshal(rec, &fi); err != nil {
			snap.Skipped++
			s.logger.Warn("Skipping malformed catalog record", zap.Int("position", i+1), zap.Error(err))
			continue
		}
		keep(&snap, fi.item(i+1), s.logger)
	}
	return snap, nil
}

func (fi *fileItem) item(position int) menu.Item {
	return menu.Item{
		ID:           decodeID(fi.ID, position),
		Name:         fi.Name,
		Price:        float64(fi.Price),
		Category:     fi.Category,
		Cuisine:      fi.Cuisine,
		SpiceLevel:   fi.SpiceLevel,
		Description:  fi.Description,
		IsVegetarian: fi.IsVegetarian,
		IsVegan:      fi.IsVegan,
		ContainsEgg:  fi.ContainsEgg,
		Ingredients:  fi.Ingredients,
		Keywords:     fi.Keywords,
	}
}

func decodeID(raw json.RawMessage, position int) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return strconv.Itoa(position)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
