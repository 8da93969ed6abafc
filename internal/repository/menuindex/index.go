// Package menuindex keeps the menu vector index in Redis, one FT index per generation.
package menuindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/menudex/internal/db"
	"github.com/kailas-cloud/menudex/internal/domain"
	"github.com/kailas-cloud/menudex/internal/domain/catalog"
	"github.com/kailas-cloud/menudex/internal/domain/search/filter"
	"github.com/kailas-cloud/menudex/internal/domain/search/result"
)

const (
	keyPrefix   = "menudex:"
	currentKey  = keyPrefix + "index:current"
	vectorField = "vector"

	// hashes per HSetMulti pipeline
	writeBatch = 200
	// keys per DEL during cleanup
	deleteBatch = 500
)

// DefaultRetireDelay is how long a superseded generation stays queryable.
const DefaultRetireDelay = 30 * time.Second

// returnFields lists the hash fields FT.SEARCH hands back for each hit.
var returnFields = []string{
	catalog.FieldName,
	catalog.FieldPrice,
	catalog.FieldCategory,
	catalog.FieldCuisine,
	catalog.FieldSpiceLevel,
	catalog.FieldDescription,
	catalog.FieldIsVegetarian,
	catalog.FieldIsVegan,
	catalog.FieldContainsEgg,
	catalog.FieldIngredients,
	catalog.FieldKeywords,
}

// store is the consumer interface for generation storage (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// HNSWConfig holds HNSW index tuning parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Index is the Redis-backed vector index.
type Index struct {
	store      store
	hnsw       HNSWConfig
	dimensions int
	retire     time.Duration
	now        func() time.Time
	logger     *zap.Logger

	mu      sync.Mutex // serializes rebuilds
	current atomic.Pointer[catalog.Generation]

	retireMu sync.Mutex
	retiring map[string]*time.Timer
}

// Option configures an Index.
type Option func(*Index)

// WithHNSW sets HNSW parameters for new generations.
func WithHNSW(cfg HNSWConfig) Option { return func(i *Index) { i.hnsw = cfg } }

// WithDimensions pins the expected vector dimension.
func WithDimensions(d int) Option { return func(i *Index) { i.dimensions = d } }

// WithRetireDelay sets how long a superseded generation is kept before it is
// dropped. Zero drops it right after the swap.
func WithRetireDelay(d time.Duration) Option { return func(i *Index) { i.retire = d } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(i *Index) { i.logger = l } }

// New creates an index with no committed generation. Call Load to adopt a persisted one.
func New(s store, opts ...Option) *Index {
	idx := &Index{
		store:  s,
		hnsw:     HNSWConfig{M: 16, EFConstruct: 200},
		retire:   DefaultRetireDelay,
		now:      time.Now,
		logger:   zap.NewNop(),
		retiring: make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

type generationRecord struct {
	ID          string    `json:"id"`
	Items       int       `json:"items"`
	Dimensions  int       `json:"dimensions"`
	CommittedAt time.Time `json:"committed_at"`
}

// Load adopts the generation persisted under the current pointer key.
// A missing pointer leaves the index uninitialized and is not an error.
func (i *Index) Load(ctx context.Context) (catalog.Generation, bool, error) {
	gen, ok, err := i.readPointer(ctx)
	if err != nil || !ok {
		return catalog.Generation{}, false, err
	}

	if gen.Items > 0 {
		ok, err := i.store.IndexExists(ctx, indexName(gen.ID))
		if err != nil {
			return catalog.Generation{}, false, fmt.Errorf("check generation %s: %w", gen.ID, err)
		}
		if !ok {
			i.logger.Warn("Persisted generation has no index", zap.String("generation", gen.ID))
			return catalog.Generation{}, false, nil
		}
		n, err := i.store.SearchCount(ctx, indexName(gen.ID), "*")
		if err != nil {
			return catalog.Generation{}, false, fmt.Errorf("count generation %s: %w", gen.ID, err)
		}
		if n == 0 {
			i.logger.Warn("Persisted generation index is empty", zap.String("generation", gen.ID))
			return catalog.Generation{}, false, nil
		}
		if n != gen.Items {
			i.logger.Warn("Persisted generation item count differs",
				zap.String("generation", gen.ID), zap.Int("recorded", gen.Items), zap.Int("indexed", n))
		}
	}

	i.current.Store(&gen)
	i.logger.Info("Adopted persisted generation",
		zap.String("generation", gen.ID), zap.Int("items", gen.Items))
	return gen, true, nil
}

// readPointer returns the generation recorded under the current pointer key.
func (i *Index) readPointer(ctx context.Context) (catalog.Generation, bool, error) {
	raw, err := i.store.Get(ctx, currentKey)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return catalog.Generation{}, false, nil
		}
		return catalog.Generation{}, false, fmt.Errorf("read current generation: %w", err)
	}

	var rec generationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return catalog.Generation{}, false, fmt.Errorf("decode current generation: %w", err)
	}
	return catalog.Generation(rec), true, nil
}

// Rebuild writes entries into a fresh generation and switches the pointer to it.
// On error the new generation is removed and the previous one keeps serving.
func (i *Index) Rebuild(ctx context.Context, entries []catalog.Entry) (catalog.Generation, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	dim, err := catalog.ValidateEntries(entries, i.dimensions)
	if err != nil {
		return catalog.Generation{}, err
	}

	gen := catalog.Generation{
		ID:         uuid.NewString(),
		Items:      len(entries),
		Dimensions: dim,
	}

	if len(entries) > 0 {
		if err := i.write(ctx, gen, entries); err != nil {
			i.cleanup(context.WithoutCancel(ctx), gen.ID)
			return catalog.Generation{}, err
		}
	}

	// another process sharing the store may have committed since our last swap
	persisted, hasPersisted, err := i.readPointer(ctx)
	if err != nil {
		i.logger.Warn("Failed to read persisted generation", zap.Error(err))
	}

	gen.CommittedAt = i.now()
	raw, err := json.Marshal(generationRecord(gen))
	if err != nil {
		i.cleanup(context.WithoutCancel(ctx), gen.ID)
		return catalog.Generation{}, fmt.Errorf("encode generation: %w", err)
	}
	if err := i.store.Set(ctx, currentKey, raw); err != nil {
		i.cleanup(context.WithoutCancel(ctx), gen.ID)
		return catalog.Generation{}, fmt.Errorf("commit generation %s: %w", gen.ID, err)
	}

	prev := i.current.Swap(&gen)

	fields := []zap.Field{zap.String("generation", gen.ID), zap.Int("items", gen.Items)}
	if prev != nil {
		fields = append(fields, zap.String("previous", prev.ID))
	}
	i.logger.Info("Redis index swapped", fields...)

	if prev != nil {
		i.scheduleRetire(prev.ID)
	}
	if hasPersisted && (prev == nil || persisted.ID != prev.ID) {
		i.scheduleRetire(persisted.ID)
	}
	return gen, nil
}

// scheduleRetire drops genID once the retire delay has passed.
func (i *Index) scheduleRetire(genID string) {
	if cur := i.current.Load(); cur != nil && cur.ID == genID {
		return
	}
	if i.retire <= 0 {
		i.cleanup(context.Background(), genID)
		return
	}

	i.retireMu.Lock()
	defer i.retireMu.Unlock()
	if _, ok := i.retiring[genID]; ok {
		return
	}
	i.retiring[genID] = time.AfterFunc(i.retire, func() {
		i.retireMu.Lock()
		delete(i.retiring, genID)
		i.retireMu.Unlock()
		i.cleanup(context.Background(), genID)
	})
}

// Close drops every generation still waiting out its retire delay.
func (i *Index) Close() {
	i.retireMu.Lock()
	pending := make([]string, 0, len(i.retiring))
	for genID, t := range i.retiring {
		if t.Stop() {
			pending = append(pending, genID)
		}
		delete(i.retiring, genID)
	}
	i.retireMu.Unlock()

	for _, genID := range pending {
		i.cleanup(context.Background(), genID)
	}
}

func (i *Index) write(ctx context.Context, gen catalog.Generation, entries []catalog.Entry) error {
	def, err := buildIndex(gen.ID, gen.Dimensions, i.hnsw)
	if err != nil {
		return fmt.Errorf("build index definition: %w", err)
	}
	if err := i.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}

	prefix := itemPrefix(gen.ID)
	for start := 0; start < len(entries); start += writeBatch {
		end := min(start+writeBatch, len(entries))
		items := make([]db.HashSetItem, 0, end-start)
		for j := start; j < end; j++ {
			e := &entries[j]
			fields := e.Metadata.Fields()
			fields[vectorField] = db.EncodeVector(e.Vector)
			items = append(items, db.HashSetItem{Key: prefix + e.ID, Fields: fields})
		}
		if err := i.store.HSetMulti(ctx, items); err != nil {
			return fmt.Errorf("write items %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// cleanup drops a generation's index and keys. Failures are logged, not returned.
func (i *Index) cleanup(ctx context.Context, genID string) {
	log := i.logger.With(zap.String("generation", genID))

	if err := i.store.DropIndex(ctx, indexName(genID)); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		log.Warn("Failed to drop generation index", zap.Error(err))
	}

	keys, err := i.store.Scan(ctx, itemPrefix(genID)+"*")
	if err != nil {
		log.Warn("Failed to scan generation keys", zap.Error(err))
		return
	}
	for start := 0; start < len(keys); start += deleteBatch {
		end := min(start+deleteBatch, len(keys))
		if err := i.store.Del(ctx, keys[start:end]...); err != nil {
			log.Warn("Failed to delete generation keys", zap.Error(err))
			return
		}
	}
	log.Debug("Generation removed", zap.Int("keys", len(keys)))
}

// Query returns up to k nearest candidates matching f, nearest first.
// When the generation it holds has been dropped by another process, Query
// adopts the persisted pointer and retries once.
func (i *Index) Query(
	ctx context.Context, vector []float32, k int, f filter.Expression,
) ([]result.Candidate, error) {
	gen := i.current.Load()
	out, err := i.query(ctx, gen, vector, k, f)
	if !errors.Is(err, db.ErrIndexNotFound) {
		return out, err
	}

	next, ok := i.refresh(ctx, gen)
	if !ok {
		return nil, err
	}
	return i.query(ctx, next, vector, k, f)
}

// refresh swaps in the persisted generation if it differs from stale.
func (i *Index) refresh(ctx context.Context, stale *catalog.Generation) (*catalog.Generation, bool) {
	persisted, ok, err := i.readPointer(ctx)
	if err != nil {
		i.logger.Warn("Failed to refresh generation", zap.Error(err))
		return nil, false
	}
	if !ok || persisted.ID == stale.ID {
		return nil, false
	}

	next := &persisted
	if !i.current.CompareAndSwap(stale, next) {
		// a local rebuild or another query got there first
		return i.current.Load(), true
	}
	i.logger.Info("Adopted newer persisted generation",
		zap.String("generation", next.ID), zap.String("previous", stale.ID))
	return next, true
}

func (i *Index) query(
	ctx context.Context, gen *catalog.Generation, vector []float32, k int, f filter.Expression,
) ([]result.Candidate, error) {
	if gen == nil || gen.Items == 0 {
		return nil, domain.ErrEmptyIndex
	}
	if k <= 0 {
		return nil, nil
	}
	if err := domain.CheckDimensions(vector, gen.Dimensions); err != nil {
		return nil, err
	}

	sr, err := i.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName(gen.ID),
		VectorField:  vectorField,
		Filters:      f,
		Vector:       vector,
		K:            min(k, gen.Items),
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search generation %s: %w", gen.ID, err)
	}

	prefix := itemPrefix(gen.ID)
	out := make([]result.Candidate, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		id := strings.TrimPrefix(e.Key, prefix)
		md := catalog.MetadataFromFields(e.Fields)
		if e.HasDistance {
			out = append(out, result.NewCandidate(id, md, e.Distance))
		} else {
			out = append(out, result.NewCandidateWithoutDistance(id, md))
		}
	}
	return out, nil
}

// Current returns the committed generation, if any.
func (i *Index) Current() (catalog.Generation, bool) {
	if gen := i.current.Load(); gen != nil {
		return *gen, true
	}
	return catalog.Generation{}, false
}

// Count returns the number of items in the committed generation.
func (i *Index) Count() int {
	if gen := i.current.Load(); gen != nil {
		return gen.Items
	}
	return 0
}

func itemPrefix(genID string) string { return keyPrefix + "item:" + genID + ":" }

func indexName(genID string) string { return keyPrefix + "idx:" + genID }

// buildIndex describes the FT schema of one generation.
// Category is matched case-sensitively; flags hold "true"/"false".
func buildIndex(genID string, dim int, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	return db.NewSchema(indexName(genID), itemPrefix(genID)).
		ExactTag(catalog.FieldCategory, "|").
		Tag(catalog.FieldIsVegetarian).
		Tag(catalog.FieldIsVegan).
		Tag(catalog.FieldContainsEgg).
		Numeric(catalog.FieldPrice).
		Vector(vectorField, dim, hnsw.M, hnsw.EFConstruct).
		Build()
}
