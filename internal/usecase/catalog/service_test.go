package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/menudex/internal/domain"
	"github.com/kailas-cloud/menudex/internal/domain/catalog"
	"github.com/kailas-cloud/menudex/internal/domain/menu"
	"github.com/kailas-cloud/menudex/internal/metrics"
)

type fakeSource struct {
	snap  menu.Snapshot
	err   error
	loads atomic.Int32
}

func (f *fakeSource) Load(context.Context) (menu.Snapshot, error) {
	f.loads.Add(1)
	return f.snap, f.err
}

type fakeIndex struct {
	mu      sync.Mutex
	entries []catalog.Entry
	calls   int
	count   int
	err     error
}

func (f *fakeIndex) Rebuild(_ context.Context, entries []catalog.Entry) (catalog.Generation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return catalog.Generation{}, f.err
	}
	f.entries = entries
	f.count = len(entries)
	return catalog.Generation{ID: fmt.Sprintf("gen-%d", f.calls), Items: len(entries), Dimensions: 2}, nil
}

func (f *fakeIndex) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// batchEmbedder encodes each text's length into its vector.
type batchEmbedder struct {
	err      error
	calls    atomic.Int32
	inflight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (b *batchEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := b.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: res.Embeddings[0]}, nil
}

func (b *batchEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	b.calls.Add(1)
	n := b.inflight.Add(1)
	defer b.inflight.Add(-1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.err != nil {
		return domain.BatchEmbeddingResult{}, b.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

func items(n int) []menu.Item {
	out := make([]menu.Item, n)
	for i := range out {
		out[i] = menu.Item{ID: fmt.Sprint(i + 1), Name: fmt.Sprintf("Item %d", i+1), Price: 50, Category: "Mains"}
	}
	return out
}

func TestRebuild_Success(t *testing.T) {
	src := &fakeSource{snap: menu.Snapshot{Items: items(3), Skipped: 2}}
	idx := &fakeIndex{}
	svc := New(src, idx, &batchEmbedder{}, Config{}, nil)

	var got []Report
	svc.Subscribe(func(r Report) { got = append(got, r) })

	success := metrics.RebuildsTotal.WithLabelValues("success")
	before := testutil.ToFloat64(success)

	rep, err := svc.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if !rep.OK() || rep.ID == "" || rep.Items != 3 || rep.Skipped != 2 || rep.Generation.ID != "gen-1" {
		t.Errorf("unexpected report: %+v", rep)
	}

	if len(idx.entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(idx.entries))
	}
	for _, e := range idx.entries {
		if e.Text == "" || e.Vector[0] != float32(len(e.Text)) {
			t.Errorf("entry %s: vector not aligned with its document text", e.ID)
		}
		if e.Metadata.Name == "" {
			t.Errorf("entry %s: metadata missing", e.ID)
		}
	}

	if len(got) != 1 || got[0].ID != rep.ID {
		t.Errorf("subscriber reports = %+v", got)
	}
	if last, ok := svc.Last(); !ok || last.ID != rep.ID {
		t.Errorf("Last() = %+v, %v", last, ok)
	}
	if d := testutil.ToFloat64(success) - before; d != 1 {
		t.Errorf("success delta = %v", d)
	}
	if v := testutil.ToFloat64(metrics.IndexItems); v != 3 {
		t.Errorf("index_items = %v", v)
	}
}

func TestRebuild_Failures(t *testing.T) {
	errBoom := errors.New("boom")
	dup := items(3)
	dup[2].ID = "1"

	tests := []struct {
		name        string
		src         *fakeSource
		embed       *batchEmbedder
		index       *fakeIndex
		wantIs      error
		wantEmbeds  bool
		wantIndexed bool
	}{
		{
			name:   "source unavailable",
			src:    &fakeSource{err: fmt.Errorf("%w: down", domain.ErrCatalogUnavailable)},
			embed:  &batchEmbedder{},
			index:  &fakeIndex{},
			wantIs: domain.ErrCatalogUnavailable,
		},
		{
			name:   "duplicate ids",
			src:    &fakeSource{snap: menu.Snapshot{Items: dup}},
			embed:  &batchEmbedder{},
			index:  &fakeIndex{},
			wantIs: domain.ErrDuplicateItem,
		},
		{
			name:       "embedding fails",
			src:        &fakeSource{snap: menu.Snapshot{Items: items(3)}},
			embed:      &batchEmbedder{err: errBoom},
			index:      &fakeIndex{},
			wantIs:     errBoom,
			wantEmbeds: true,
		},
		{
			name:        "index swap fails",
			src:         &fakeSource{snap: menu.Snapshot{Items: items(3)}},
			embed:       &batchEmbedder{},
			index:       &fakeIndex{err: errBoom},
			wantIs:      errBoom,
			wantEmbeds:  true,
			wantIndexed: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(tt.src, tt.index, tt.embed, Config{}, nil)
			rep, err := svc.Rebuild(context.Background())
			if !errors.Is(err, domain.ErrRebuildFailed) || !errors.Is(err, tt.wantIs) {
				t.Fatalf("err = %v", err)
			}
			if rep.OK() || rep.Err != err {
				t.Errorf("report should carry the error: %+v", rep)
			}
			if got := tt.embed.calls.Load() > 0; got != tt.wantEmbeds {
				t.Errorf("embedder called = %v, want %v", got, tt.wantEmbeds)
			}
			if got := tt.index.calls > 0; got != tt.wantIndexed {
				t.Errorf("index rebuilt = %v, want %v", got, tt.wantIndexed)
			}
			if last, ok := svc.Last(); !ok || last.OK() {
				t.Errorf("Last() should hold the failed report")
			}
		})
	}
}

func TestRebuild_BatchesWithBoundedWorkers(t *testing.T) {
	src := &fakeSource{snap: menu.Snapshot{Items: items(70)}}
	emb := &batchEmbedder{delay: 10 * time.Millisecond}
	svc := New(src, &fakeIndex{}, emb, Config{BatchSize: 10, Workers: 2}, nil)

	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if got := emb.calls.Load(); got != 7 {
		t.Errorf("batch calls = %d, want 7", got)
	}
	if got := emb.peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestRebuild_DefaultBatchSize(t *testing.T) {
	src := &fakeSource{snap: menu.Snapshot{Items: items(70)}}
	emb := &batchEmbedder{}
	svc := New(src, &fakeIndex{}, emb, Config{}, nil)

	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if got := emb.calls.Load(); got != 3 {
		t.Errorf("batch calls = %d, want 3", got)
	}
}

func TestRebuild_EmptyCatalog(t *testing.T) {
	idx := &fakeIndex{}
	svc := New(&fakeSource{}, idx, &batchEmbedder{}, Config{}, nil)

	rep, err := svc.Rebuild(context.Background())
	if err != nil || rep.Items != 0 || idx.calls != 1 {
		t.Errorf("rep = %+v, err = %v, index calls = %d", rep, err, idx.calls)
	}
}

func TestTrigger_Coalesces(t *testing.T) {
	src := &fakeSource{snap: menu.Snapshot{Items: items(1)}}
	svc := New(src, &fakeIndex{}, &batchEmbedder{}, Config{}, nil)

	for range 5 {
		svc.Trigger()
	}

	done := make(chan struct{})
	var once sync.Once
	svc.Subscribe(func(Report) { once.Do(func() { close(done) }) })

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- svc.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("triggered rebuild did not run")
	}
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
	if got := src.loads.Load(); got != 1 {
		t.Errorf("rebuilds = %d, want 1", got)
	}
}

func TestRebuild_Serialized(t *testing.T) {
	src := &fakeSource{snap: menu.Snapshot{Items: items(4)}}
	emb := &batchEmbedder{delay: 5 * time.Millisecond}
	svc := New(src, &fakeIndex{}, emb, Config{BatchSize: 1, Workers: 1}, nil)

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Rebuild(context.Background())
		}()
	}
	wg.Wait()

	if got := emb.peak.Load(); got != 1 {
		t.Errorf("overlapping rebuilds: peak embed concurrency = %d", got)
	}
}
