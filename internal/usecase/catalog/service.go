// Package catalog rebuilds the vector index from the menu catalog.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/menudex/internal/domain"
	"github.com/kailas-cloud/menudex/internal/domain/catalog"
	"github.com/kailas-cloud/menudex/internal/domain/menu"
	"github.com/kailas-cloud/menudex/internal/metrics"
)

// Embedding defaults for document vectors.
const (
	DefaultBatchSize = 32
	DefaultWorkers   = 4
)

// Config tunes document embedding during a rebuild.
type Config struct {
	BatchSize int
	Workers   int
}

// Report describes one finished rebuild attempt. Err is nil on success.
type Report struct {
	ID         string
	StartedAt  time.Time
	Duration   time.Duration
	Items      int
	Skipped    int
	Generation catalog.Generation
	Err        error
}

// OK reports whether the rebuild committed.
func (r *Report) OK() bool { return r.Err == nil }

// Service loads the catalog, embeds it and swaps it into the index.
// Rebuilds are serialized; a failed rebuild leaves the previous index serving.
type Service struct {
	source Source
	index  Index
	embed  domain.Embedder
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	pending chan struct{}
	last    atomic.Pointer[Report]

	subsMu sync.RWMutex
	subs   []func(Report)
}

// New creates a rebuild service.
func New(source Source, index Index, embed domain.Embedder, cfg Config, logger *zap.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		source:  source,
		index:   index,
		embed:   embed,
		cfg:     cfg,
		logger:  logger,
		pending: make(chan struct{}, 1),
	}
}

// Rebuild runs one synchronous rebuild. The returned error wraps domain.ErrRebuildFailed.
func (s *Service) Rebuild(ctx context.Context) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep := Report{ID: uuid.NewString(), StartedAt: time.Now()}
	gen, snap, err := s.rebuild(ctx)
	rep.Duration = time.Since(rep.StartedAt)
	rep.Items = len(snap.Items)
	rep.Skipped = snap.Skipped
	if err != nil {
		rep.Err = fmt.Errorf("%w: %w", domain.ErrRebuildFailed, err)
	} else {
		rep.Generation = gen
	}

	s.finish(rep)
	return rep, rep.Err
}

func (s *Service) rebuild(ctx context.Context) (catalog.Generation, menu.Snapshot, error) {
	snap, err := s.source.Load(ctx)
	if err != nil {
		return catalog.Generation{}, menu.Snapshot{}, fmt.Errorf("load catalog: %w", err)
	}
	if err := checkUnique(snap.Items); err != nil {
		return catalog.Generation{}, snap, err
	}

	docs := catalog.BuildAll(snap.Items)
	vectors, err := s.embedDocuments(ctx, docs)
	if err != nil {
		return catalog.Generation{}, snap, err
	}

	entries := make([]catalog.Entry, len(docs))
	for i := range docs {
		entries[i] = catalog.Entry{
			ID:       docs[i].ID,
			Vector:   vectors[i],
			Metadata: docs[i].Metadata,
			Text:     docs[i].Text,
		}
	}

	gen, err := s.index.Rebuild(ctx, entries)
	if err != nil {
		return catalog.Generation{}, snap, fmt.Errorf("swap index: %w", err)
	}
	return gen, snap, nil
}

// embedDocuments embeds document texts in batches, at most cfg.Workers at a time.
func (s *Service) embedDocuments(ctx context.Context, docs []catalog.Document) ([][]float32, error) {
	vectors := make([][]float32, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for start := 0; start < len(docs); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(docs))
		g.Go(func() error {
			texts := make([]string, end-start)
			for i := range texts {
				texts[i] = docs[start+i].Text
			}
			res, err := domain.EmbedAll(gctx, s.embed, texts)
			if err != nil {
				return fmt.Errorf("embed items %d-%d: %w", start+1, end, err)
			}
			copy(vectors[start:end], res.Embeddings)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func checkUnique(items []menu.Item) error {
	seen := make(map[string]struct{}, len(items))
	for i := range items {
		if _, ok := seen[items[i].ID]; ok {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateItem, items[i].ID)
		}
		seen[items[i].ID] = struct{}{}
	}
	return nil
}

func (s *Service) finish(rep Report) {
	status := "success"
	if rep.Err != nil {
		status = "failure"
	}
	metrics.RebuildsTotal.WithLabelValues(status).Inc()
	metrics.RebuildDuration.Observe(rep.Duration.Seconds())
	metrics.IndexItems.Set(float64(s.index.Count()))

	fields := []zap.Field{
		zap.String("rebuild_id", rep.ID),
		zap.Int("items", rep.Items),
		zap.Int("skipped", rep.Skipped),
		zap.Duration("duration", rep.Duration),
	}
	if rep.Err != nil {
		s.logger.Error("Index rebuild failed", append(fields, zap.Error(rep.Err))...)
	} else {
		s.logger.Info("Index rebuilt", append(fields, zap.String("generation", rep.Generation.ID))...)
	}

	s.last.Store(&rep)

	s.subsMu.RLock()
	subs := s.subs
	s.subsMu.RUnlock()
	for _, fn := range subs {
		fn(rep)
	}
}

// Trigger requests an asynchronous rebuild and returns immediately.
// Requests made while one is already pending collapse into it.
func (s *Service) Trigger() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

// Run serves triggered rebuilds until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.pending:
			_, _ = s.Rebuild(ctx)
		}
	}
}

// Subscribe registers fn to receive every finished Report.
// fn runs on the rebuilding goroutine and must not block.
func (s *Service) Subscribe(fn func(Report)) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subs = append(s.subs[:len(s.subs):len(s.subs)], fn)
}

// Last returns the most recent report, if any rebuild has finished.
func (s *Service) Last() (Report, bool) {
	if r := s.last.Load(); r != nil {
		return *r, true
	}
	return Report{}, false
}
