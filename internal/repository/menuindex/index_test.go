package menuindex

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/menudex/internal/db"
	"github.com/kailas-cloud/menudex/internal/domain"
	"github.com/kailas-cloud/menudex/internal/domain/catalog"
	"github.com/kailas-cloud/menudex/internal/domain/search/filter"
)

func menuEntries() []catalog.Entry {
	return []catalog.Entry{
		{ID: "1", Vector: []float32{1, 0, 0}, Metadata: catalog.Metadata{Name: "Paneer Tikka", Category: "Starters", IsVegetarian: true, Price: 220}},
		{ID: "2", Vector: []float32{0, 1, 0}, Metadata: catalog.Metadata{Name: "Chicken Tikka", Category: "Starters", Price: 280}},
		{ID: "3", Vector: []float32{0, 0, 1}, Metadata: catalog.Metadata{Name: "Masala Chai", Category: "Beverages", IsVegetarian: true, Price: 40}},
	}
}

func TestQuery_Uninitialized(t *testing.T) {
	idx := New(newFakeStore())
	_, err := idx.Query(context.Background(), []float32{1, 0, 0}, 5, filter.Expression{})
	if !errors.Is(err, domain.ErrEmptyIndex) {
		t.Fatalf("expected ErrEmptyIndex, got %v", err)
	}
}

func TestRebuild_WritesGeneration(t *testing.T) {
	fs := newFakeStore()
	idx := New(fs, WithHNSW(HNSWConfig{M: 8, EFConstruct: 100}))

	gen, err := idx.Rebuild(context.Background(), menuEntries())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.Items != 3 || gen.Dimensions != 3 {
		t.Errorf("generation = %+v", gen)
	}

	def, ok := fs.indexes[indexName(gen.ID)]
	if !ok {
		t.Fatalf("index %s not created", indexName(gen.ID))
	}
	if def.Prefix != itemPrefix(gen.ID) {
		t.Errorf("prefix = %q", def.Prefix)
	}
	var sawCategory, sawVector bool
	for _, f := range def.Fields {
		switch f.Name {
		case catalog.FieldCategory:
			sawCategory = f.CaseSensitive
		case vectorField:
			sawVector = f.Kind == db.FieldVector && f.Dim == 3 && f.M == 8
		}
	}
	if !sawCategory || !sawVector {
		t.Errorf("unexpected schema: %v", def.CreateArgs())
	}

	h := fs.hashes[itemPrefix(gen.ID)+"1"]
	if h[catalog.FieldName] != "Paneer Tikka" || h[catalog.FieldIsVegetarian] != "true" {
		t.Errorf("hash fields = %v", h)
	}
	if len(h[vectorField]) != 12 {
		t.Errorf("vector bytes = %d, want 12", len(h[vectorField]))
	}

	var rec generationRecord
	if err := json.Unmarshal(fs.kv[currentKey], &rec); err != nil {
		t.Fatalf("pointer: %v", err)
	}
	if rec.ID != gen.ID || rec.Items != 3 {
		t.Errorf("pointer = %+v", rec)
	}
}

func TestRebuild_DropsPreviousGeneration(t *testing.T) {
	fs := newFakeStore()
	idx := New(fs, WithRetireDelay(0))

	first, err := idx.Rebuild(context.Background(), menuEntries())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	second, err := idx.Rebuild(context.Background(), menuEntries()[:2])
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	if _, ok := fs.indexes[indexName(first.ID)]; ok {
		t.Error("previous index should be dropped")
	}
	if n := fs.countWithPrefix(itemPrefix(first.ID)); n != 0 {
		t.Errorf("previous generation keys left: %d", n)
	}
	if n := fs.countWithPrefix(itemPrefix(second.ID)); n != 2 {
		t.Errorf("current generation keys = %d, want 2", n)
	}
	if idx.Count() != 2 {
		t.Errorf("Count = %d, want 2", idx.Count())
	}
}

func TestRebuild_KeepsPreviousGenerationDuringRetireDelay(t *testing.T) {
	fs := newFakeStore()
	idx := New(fs, WithRetireDelay(20*time.Millisecond))

	first, err := idx.Rebuild(context.Background(), menuEntries())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if _, err := idx.Rebuild(context.Background(), menuEntries()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	// a reader that picked up the old generation before the swap
	stale := New(fs)
	stale.current.Store(&first)
	if got, err := stale.Query(context.Background(), []float32{1, 0, 0}, 3, filter.Expression{}); err != nil || len(got) != 3 {
		t.Fatalf("old generation should still serve: %d results, err=%v", len(got), err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for fs.countWithPrefix(itemPrefix(first.ID)) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("previous generation was never dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if ok, _ := fs.IndexExists(context.Background(), indexName(first.ID)); ok {
		t.Error("previous index should be dropped after the delay")
	}
}

func TestQuery_AdoptsGenerationCommittedElsewhere(t *testing.T) {
	fs := newFakeStore()
	writer := New(fs, WithRetireDelay(0))
	reader := New(fs)

	if _, err := writer.Rebuild(context.Background(), menuEntries()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if _, ok, err := reader.Load(context.Background()); err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	got, err := reader.Query(context.Background(), []float32{1, 0, 0}, 5, filter.Expression{})
	if err != nil || len(got) != 3 {
		t.Fatalf("first query: %d results, err=%v", len(got), err)
	}

	second, err := writer.Rebuild(context.Background(), menuEntries()[:2])
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	got, err = reader.Query(context.Background(), []float32{1, 0, 0}, 5, filter.Expression{})
	if err != nil {
		t.Fatalf("query after remote rebuild: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 results from the new generation, got %d", len(got))
	}
	if cur, _ := reader.Current(); cur.ID != second.ID || reader.Count() != 2 {
		t.Errorf("reader generation = %+v, want %s", cur, second.ID)
	}
}

func TestQuery_DroppedGenerationWithoutReplacement(t *testing.T) {
	fs := newFakeStore()
	idx := New(fs)
	gen, err := idx.Rebuild(context.Background(), menuEntries())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	delete(fs.indexes, indexName(gen.ID))

	if _, err := idx.Query(context.Background(), []float32{1, 0, 0}, 3, filter.Expression{}); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestRebuild_RetiresGenerationCommittedElsewhere(t *testing.T) {
	fs := newFakeStore()
	other, err := New(fs).Rebuild(context.Background(), menuEntries())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	idx := New(fs, WithRetireDelay(0))
	if _, err := idx.Rebuild(context.Background(), menuEntries()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if n := fs.countWithPrefix(itemPrefix(other.ID)); n != 0 {
		t.Errorf("superseded generation keys left: %d", n)
	}
}

func TestClose_DropsPendingGenerations(t *testing.T) {
	fs := newFakeStore()
	idx := New(fs, WithRetireDelay(time.Hour))

	first, err := idx.Rebuild(context.Background(), menuEntries())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	second, err := idx.Rebuild(context.Background(), menuEntries())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if n := fs.countWithPrefix(itemPrefix(first.ID)); n != 3 {
		t.Fatalf("previous generation dropped early: %d keys", n)
	}

	idx.Close()
	if n := fs.countWithPrefix(itemPrefix(first.ID)); n != 0 {
		t.Errorf("pending generation keys left after Close: %d", n)
	}
	if n := fs.countWithPrefix(itemPrefix(second.ID)); n != 3 {
		t.Errorf("current generation keys = %d, want 3", n)
	}
}

func TestRebuild_FailureKeepsPreviousGeneration(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(fs *fakeStore)
		entries func() []catalog.Entry
		wantErr error
	}{
		{
			name:    "write failure",
			setup:   func(fs *fakeStore) { fs.hsetErr = errBoom },
			entries: menuEntries,
			wantErr: errBoom,
		},
		{
			name:    "commit failure",
			setup:   func(fs *fakeStore) { fs.setErr = errBoom },
			entries: menuEntries,
			wantErr: errBoom,
		},
		{
			name:    "create index failure",
			setup:   func(fs *fakeStore) { fs.createErr = errBoom },
			entries: menuEntries,
			wantErr: errBoom,
		},
		{
			name:  "duplicate id",
			setup: func(*fakeStore) {},
			entries: func() []catalog.Entry {
				return append(menuEntries(), catalog.Entry{ID: "1", Vector: []float32{1, 1, 1}})
			},
			wantErr: domain.ErrDuplicateItem,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeStore()
			idx := New(fs)
			first, err := idx.Rebuild(context.Background(), menuEntries())
			if err != nil {
				t.Fatalf("rebuild: %v", err)
			}

			tt.setup(fs)
			if _, err := idx.Rebuild(context.Background(), tt.entries()); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}

			cur, ok := idx.Current()
			if !ok || cur.ID != first.ID || idx.Count() != 3 {
				t.Errorf("previous generation must keep serving, got %+v", cur)
			}
			if len(fs.indexes) != 1 {
				t.Errorf("failed generation should be cleaned up, indexes = %d", len(fs.indexes))
			}
			if n := fs.countWithPrefix(keyPrefix + "item:"); n != 3 {
				t.Errorf("item keys = %d, want 3", n)
			}
		})
	}
}

func TestQuery_FiltersAndCapsK(t *testing.T) {
	fs := newFakeStore()
	idx := New(fs)
	gen, err := idx.Rebuild(context.Background(), menuEntries())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	veg, _ := filter.NewFlag(catalog.FieldIsVegetarian, true)
	expr, _ := filter.NewExpression(veg)

	got, err := idx.Query(context.Background(), []float32{1, 0, 0}, 50, expr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.lastKNN.K != 3 {
		t.Errorf("K = %d, want capped to 3", fs.lastKNN.K)
	}
	if fs.lastKNN.IndexName != indexName(gen.ID) || fs.lastKNN.VectorField != vectorField {
		t.Errorf("unexpected query: %+v", fs.lastKNN)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 vegetarian candidates, got %d", len(got))
	}
	for _, c := range got {
		if strings.Contains(c.ID(), ":") {
			t.Errorf("id should not carry the key prefix: %q", c.ID())
		}
		if !c.Metadata().IsVegetarian {
			t.Errorf("non-vegetarian candidate %q", c.ID())
		}
		if _, ok := c.Distance(); ok {
			t.Errorf("fake store reports no distance")
		}
	}
}

func TestQuery_Distance(t *testing.T) {
	fs := newFakeStore()
	idx := New(fs)
	gen, err := idx.Rebuild(context.Background(), menuEntries())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	fs.knnFn = func(*db.KNNQuery) (*db.SearchResult, error) {
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{{
			Key:         itemPrefix(gen.ID) + "3",
			Distance:    0.25,
			HasDistance: true,
			Fields:      map[string]string{catalog.FieldName: "Masala Chai", catalog.FieldPrice: "40"},
		}}}, nil
	}

	got, err := idx.Query(context.Background(), []float32{0, 0, 1}, 1, filter.Expression{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, ok := got[0].Distance()
	if got[0].ID() != "3" || !ok || d != 0.25 || got[0].Metadata().Price != 40 {
		t.Errorf("unexpected candidate: id=%s distance=%v", got[0].ID(), d)
	}
}

func TestQuery_StoreError(t *testing.T) {
	fs := newFakeStore()
	idx := New(fs)
	if _, err := idx.Rebuild(context.Background(), menuEntries()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	fs.knnFn = func(*db.KNNQuery) (*db.SearchResult, error) { return nil, errBoom }

	_, err := idx.Query(context.Background(), []float32{1, 0, 0}, 3, filter.Expression{})
	if !errors.Is(err, errBoom) {
		t.Errorf("expected errBoom, got %v", err)
	}
	if errors.Is(err, domain.ErrEmptyIndex) {
		t.Error("store failure must not look like an empty index")
	}
}

func TestLoad(t *testing.T) {
	fs := newFakeStore()
	writer := New(fs)
	gen, err := writer.Rebuild(context.Background(), menuEntries())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	reader := New(fs)
	got, ok, err := reader.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got.ID != gen.ID || reader.Count() != 3 {
		t.Errorf("adopted %+v, want %s", got, gen.ID)
	}
}

func TestLoad_NoPointer(t *testing.T) {
	idx := New(newFakeStore())
	_, ok, err := idx.Load(context.Background())
	if err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestLoad_MissingIndex(t *testing.T) {
	fs := newFakeStore()
	raw, _ := json.Marshal(generationRecord{ID: "gone", Items: 4, Dimensions: 3})
	fs.kv[currentKey] = raw

	idx := New(fs)
	_, ok, err := idx.Load(context.Background())
	if err != nil || ok {
		t.Fatalf("expected dangling pointer to be ignored, got ok=%v err=%v", ok, err)
	}
	if _, cur := idx.Current(); cur {
		t.Error("index should stay uninitialized")
	}
}

func TestLoad_Malformed(t *testing.T) {
	fs := newFakeStore()
	fs.kv[currentKey] = []byte("{")
	if _, _, err := New(fs).Load(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestLoad_EmptyIndex(t *testing.T) {
	fs := newFakeStore()
	raw, _ := json.Marshal(generationRecord{ID: "hollow", Items: 2, Dimensions: 3})
	fs.kv[currentKey] = raw
	fs.indexes[indexName("hollow")] = &db.IndexDefinition{
		Name:   indexName("hollow"),
		Prefix: itemPrefix("hollow"),
	}

	idx := New(fs)
	_, ok, err := idx.Load(context.Background())
	if err != nil || ok {
		t.Fatalf("expected empty generation to be ignored, got ok=%v err=%v", ok, err)
	}
}
