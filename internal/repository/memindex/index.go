// Package memindex is the in-process vector index backed by chromem-go.
package memindex

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/menudex/internal/domain"
	"github.com/kailas-cloud/menudex/internal/domain/catalog"
	"github.com/kailas-cloud/menudex/internal/domain/search/filter"
	"github.com/kailas-cloud/menudex/internal/domain/search/result"
)

const collectionName = "menu_items"

// errNoEmbeddingFunc is returned if chromem ever tries to embed text itself.
// All vectors are computed upstream, so that path indicates a bug.
var errNoEmbeddingFunc = errors.New("memindex: documents must be pre-embedded")

// snapshot is one immutable, fully built generation.
type snapshot struct {
	coll *chromem.Collection
	gen  catalog.Generation
	// catalog position of each item, for tie-breaking equal similarities
	pos map[string]int
}

// Index keeps the live chromem collection behind an atomic pointer.
// Rebuild builds a fresh collection and swaps it in; readers never see a partial build.
type Index struct {
	mu          sync.Mutex // serializes rebuilds
	current     atomic.Pointer[snapshot]
	dimensions  int
	concurrency int
	now         func() time.Time
	logger      *zap.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithDimensions pins the expected vector dimension. Zero accepts the first entry's length.
func WithDimensions(d int) Option { return func(i *Index) { i.dimensions = d } }

// WithConcurrency sets the number of goroutines chromem uses when adding documents.
func WithConcurrency(n int) Option {
	return func(i *Index) {
		if n > 0 {
			i.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(i *Index) { i.logger = l } }

// New creates an empty, uninitialized index.
func New(opts ...Option) *Index {
	idx := &Index{
		concurrency: runtime.NumCPU(),
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Rebuild replaces the whole index with entries. On error the previous generation keeps serving.
func (i *Index) Rebuild(ctx context.Context, entries []catalog.Entry) (catalog.Generation, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	dim, err := catalog.ValidateEntries(entries, i.dimensions)
	if err != nil {
		return catalog.Generation{}, err
	}

	db := chromem.NewDB()
	coll, err := db.CreateCollection(collectionName, nil, noEmbed)
	if err != nil {
		return catalog.Generation{}, fmt.Errorf("create collection: %w", err)
	}

	docs := make([]chromem.Document, len(entries))
	pos := make(map[string]int, len(entries))
	for j := range entries {
		e := &entries[j]
		pos[e.ID] = j
		docs[j] = chromem.Document{
			ID:        e.ID,
			Metadata:  e.Metadata.Fields(),
			Embedding: e.Vector,
			Content:   e.Text,
		}
	}
	if len(docs) > 0 {
		if err := coll.AddDocuments(ctx, docs, i.concurrency); err != nil {
			return catalog.Generation{}, fmt.Errorf("add documents: %w", err)
		}
	}

	gen := catalog.Generation{
		ID:          uuid.NewString(),
		Items:       coll.Count(),
		Dimensions:  dim,
		CommittedAt: i.now(),
	}
	prev := i.current.Swap(&snapshot{coll: coll, gen: gen, pos: pos})

	fields := []zap.Field{zap.String("generation", gen.ID), zap.Int("items", gen.Items)}
	if prev != nil {
		fields = append(fields, zap.String("previous", prev.gen.ID))
	}
	i.logger.Info("Memory index swapped", fields...)

	return gen, nil
}

// Query returns up to k nearest candidates matching f, nearest first.
// An uninitialized or empty index yields domain.ErrEmptyIndex.
func (i *Index) Query(
	ctx context.Context, vector []float32, k int, f filter.Expression,
) ([]result.Candidate, error) {
	snap := i.current.Load()
	if snap == nil || snap.gen.Items == 0 {
		return nil, domain.ErrEmptyIndex
	}
	if k <= 0 {
		return nil, nil
	}
	if err := domain.CheckDimensions(vector, snap.gen.Dimensions); err != nil {
		return nil, err
	}

	// chromem breaks similarity ties arbitrarily, so rank every match here
	// and cut to k afterwards.
	hits, err := snap.coll.QueryEmbedding(ctx, vector, snap.gen.Items, f.AsMap(), nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}
	slices.SortFunc(hits, func(a, b chromem.Result) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(snap.pos[a.ID], snap.pos[b.ID])
	})
	hits = hits[:min(k, len(hits))]

	out := make([]result.Candidate, 0, len(hits))
	for _, h := range hits {
		// chromem reports cosine similarity; the reranker expects cosine distance
		distance := 1 - float64(h.Similarity)
		out = append(out, result.NewCandidate(h.ID, catalog.MetadataFromFields(h.Metadata), distance))
	}
	return out, nil
}

// Current returns the committed generation, if any.
func (i *Index) Current() (catalog.Generation, bool) {
	snap := i.current.Load()
	if snap == nil {
		return catalog.Generation{}, false
	}
	return snap.gen, true
}

// Count returns the number of items in the committed generation.
func (i *Index) Count() int {
	if snap := i.current.Load(); snap != nil {
		return snap.gen.Items
	}
	return 0
}

func noEmbed(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}
