package memindex

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/kailas-cloud/menudex/internal/domain"
	"github.com/kailas-cloud/menudex/internal/domain/catalog"
	"github.com/kailas-cloud/menudex/internal/domain/search/filter"
)

func entry(id, name, category string, veg bool, vec ...float32) catalog.Entry {
	return catalog.Entry{
		ID:       id,
		Vector:   vec,
		Text:     name,
		Metadata: catalog.Metadata{Name: name, Category: category, IsVegetarian: veg, Price: 100},
	}
}

func menuEntries() []catalog.Entry {
	return []catalog.Entry{
		entry("1", "Paneer Tikka", "Starters", true, 1, 0, 0),
		entry("2", "Chicken Tikka", "Starters", false, 0.9, 0.1, 0),
		entry("3", "Veg Fried Rice", "Rice", true, 0, 1, 0),
	}
}

func TestQuery_Uninitialized(t *testing.T) {
	idx := New()
	_, err := idx.Query(context.Background(), []float32{1, 0, 0}, 5, filter.Expression{})
	if !errors.Is(err, domain.ErrEmptyIndex) {
		t.Fatalf("expected ErrEmptyIndex, got %v", err)
	}
	if _, ok := idx.Current(); ok {
		t.Error("expected no committed generation")
	}
}

func TestRebuild_EmptyCatalog(t *testing.T) {
	idx := New()
	gen, err := idx.Rebuild(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.Items != 0 {
		t.Errorf("Items = %d, want 0", gen.Items)
	}
	_, err = idx.Query(context.Background(), []float32{1, 0, 0}, 5, filter.Expression{})
	if !errors.Is(err, domain.ErrEmptyIndex) {
		t.Fatalf("expected ErrEmptyIndex, got %v", err)
	}
}

func TestQuery_NearestFirstWithDistance(t *testing.T) {
	idx := New()
	if _, err := idx.Rebuild(context.Background(), menuEntries()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	// k larger than the collection is capped
	got, err := idx.Query(context.Background(), []float32{1, 0, 0}, 50, filter.Expression{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	if got[0].ID() != "1" {
		t.Errorf("nearest = %q, want 1", got[0].ID())
	}
	d, ok := got[0].Distance()
	if !ok || math.Abs(d) > 1e-5 {
		t.Errorf("distance = %v, want ~0", d)
	}
	last, _ := got[2].Distance()
	if math.Abs(last-1) > 1e-5 {
		t.Errorf("orthogonal distance = %v, want ~1", last)
	}
	if got[0].Metadata().Name != "Paneer Tikka" || !got[0].Metadata().IsVegetarian {
		t.Errorf("metadata = %+v", got[0].Metadata())
	}
}

func TestQuery_Filter(t *testing.T) {
	idx := New()
	if _, err := idx.Rebuild(context.Background(), menuEntries()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	veg, _ := filter.NewFlag(catalog.FieldIsVegetarian, true)
	starters, _ := filter.NewMatch(catalog.FieldCategory, "Starters")
	expr, _ := filter.NewExpression(veg, starters)

	got, err := idx.Query(context.Background(), []float32{1, 0, 0}, 10, expr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID() != "1" {
		t.Fatalf("expected only item 1, got %d candidates", len(got))
	}

	none, _ := filter.NewMatch(catalog.FieldCategory, "Desserts")
	expr, _ = filter.NewExpression(none)
	got, err = idx.Query(context.Background(), []float32{1, 0, 0}, 10, expr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no candidates, got %d", len(got))
	}
}

func TestQuery_DimensionMismatch(t *testing.T) {
	idx := New()
	if _, err := idx.Rebuild(context.Background(), menuEntries()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	_, err := idx.Query(context.Background(), []float32{1, 0}, 3, filter.Expression{})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestRebuild_FailureKeepsPreviousGeneration(t *testing.T) {
	idx := New()
	first, err := idx.Rebuild(context.Background(), menuEntries())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	bad := append(menuEntries(), entry("1", "Duplicate", "X", false, 0, 0, 1))
	if _, err := idx.Rebuild(context.Background(), bad); !errors.Is(err, domain.ErrDuplicateItem) {
		t.Fatalf("expected ErrDuplicateItem, got %v", err)
	}

	mismatch := []catalog.Entry{entry("9", "Tea", "Beverages", true, 1, 0)}
	if _, err := New(WithDimensions(3)).Rebuild(context.Background(), mismatch); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}

	cur, ok := idx.Current()
	if !ok || cur.ID != first.ID || idx.Count() != 3 {
		t.Errorf("previous generation must keep serving, got %+v", cur)
	}
}

func TestRebuild_Idempotent(t *testing.T) {
	idx := New()
	ctx := context.Background()
	q := []float32{0.7, 0.7, 0}

	var orders [2][]string
	for n := range orders {
		if _, err := idx.Rebuild(ctx, menuEntries()); err != nil {
			t.Fatalf("rebuild %d: %v", n, err)
		}
		got, err := idx.Query(ctx, q, 3, filter.Expression{})
		if err != nil {
			t.Fatalf("query %d: %v", n, err)
		}
		for _, c := range got {
			orders[n] = append(orders[n], c.ID())
		}
	}
	if len(orders[0]) != len(orders[1]) {
		t.Fatalf("orders differ: %v vs %v", orders[0], orders[1])
	}
	for j := range orders[0] {
		if orders[0][j] != orders[1][j] {
			t.Fatalf("orders differ: %v vs %v", orders[0], orders[1])
		}
	}
}

func TestQuery_TiesKeepCatalogOrder(t *testing.T) {
	var entries []catalog.Entry
	for _, id := range []string{"t0", "t1", "t2", "t3", "t4", "t5"} {
		entries = append(entries, entry(id, "Item "+id, "Mains", true, 0.6, 0.8, 0))
	}
	entries = append(entries, entry("far", "Far", "Mains", true, 0, 0, 1))

	idx := New()
	ctx := context.Background()
	for run := range 20 {
		if _, err := idx.Rebuild(ctx, entries); err != nil {
			t.Fatalf("rebuild %d: %v", run, err)
		}
		got, err := idx.Query(ctx, []float32{0.6, 0.8, 0}, 7, filter.Expression{})
		if err != nil {
			t.Fatalf("query %d: %v", run, err)
		}
		want := []string{"t0", "t1", "t2", "t3", "t4", "t5", "far"}
		for j, c := range got {
			if c.ID() != want[j] {
				t.Fatalf("run %d: position %d = %s, want %s", run, j, c.ID(), want[j])
			}
		}

		top, err := idx.Query(ctx, []float32{0.6, 0.8, 0}, 3, filter.Expression{})
		if err != nil {
			t.Fatalf("query %d: %v", run, err)
		}
		if len(top) != 3 || top[0].ID() != "t0" || top[1].ID() != "t1" || top[2].ID() != "t2" {
			t.Fatalf("run %d: truncated ties picked %v", run, top)
		}
	}
}

func TestConcurrentReadsDuringRebuild(t *testing.T) {
	idx := New()
	ctx := context.Background()

	small := menuEntries()[:1]
	large := menuEntries()
	if _, err := idx.Rebuild(ctx, small); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan string, 100)

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got, err := idx.Query(ctx, []float32{1, 0, 0}, 10, filter.Expression{})
				if err != nil {
					errs <- err.Error()
					return
				}
				if n := len(got); n != len(small) && n != len(large) {
					errs <- "observed partial index"
					return
				}
			}
		}()
	}

	for n := range 20 {
		entries := small
		if n%2 == 0 {
			entries = large
		}
		if _, err := idx.Rebuild(ctx, entries); err != nil {
			t.Fatalf("rebuild: %v", err)
		}
	}
	close(stop)
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Error(e)
	}
}
