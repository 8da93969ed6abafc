package menudex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/menudex/internal/db/redis"
	"github.com/kailas-cloud/menudex/internal/domain"
	"github.com/kailas-cloud/menudex/internal/domain/catalog"
	"github.com/kailas-cloud/menudex/internal/domain/menu"
	"github.com/kailas-cloud/menudex/internal/domain/search/request"
	"github.com/kailas-cloud/menudex/internal/metrics"
	catalogrepo "github.com/kailas-cloud/menudex/internal/repository/catalog"
	"github.com/kailas-cloud/menudex/internal/repository/embcache"
	"github.com/kailas-cloud/menudex/internal/repository/memindex"
	"github.com/kailas-cloud/menudex/internal/repository/menuindex"
	openaiEmb "github.com/kailas-cloud/menudex/internal/transport/openai"
	catalogsvc "github.com/kailas-cloud/menudex/internal/usecase/catalog"
	embeddinguc "github.com/kailas-cloud/menudex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/menudex/internal/usecase/health"
	"github.com/kailas-cloud/menudex/internal/usecase/retrieval"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces, swapped for fakes in tests.
type retrievalUseCase interface {
	Retrieve(ctx context.Context, req *request.Request) retrieval.Outcome
}

type rebuildUseCase interface {
	Rebuild(ctx context.Context) (catalogsvc.Report, error)
	Last() (catalogsvc.Report, bool)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

type engineIndex interface {
	retrieval.Index
	catalogsvc.Index
	Current() (catalog.Generation, bool)
}

// Engine is the menudex entry point. It is safe for concurrent use.
type Engine struct {
	retrieval retrievalUseCase
	rebuild   rebuildUseCase
	health    healthUseCase
	index     engineIndex
	currency  string
	closers   []func()
	obs       *observer
	logger    *zap.Logger
}

// New wires an Engine and builds the index from the catalog.
// If that first build fails, New fails unless a persisted Redis index can keep serving.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.embedder == nil && cfg.openai == nil {
		return nil, errors.New("menudex: embedder required (use WithEmbedder or WithOpenAI)")
	}
	if cfg.source == nil && cfg.menuFile == "" && cfg.postgres == nil {
		return nil, errors.New("menudex: catalog source required (use WithSource, WithMenuFile or WithPostgres)")
	}
	if cfg.cache && len(cfg.redisAddrs) == 0 {
		return nil, errors.New("menudex: embedding cache requires WithRedis")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	e := &Engine{currency: cfg.currency, obs: obs, logger: cfg.logger}

	if err := e.wire(ctx, cfg); err != nil {
		e.Close()
		return nil, err
	}

	if _, err := e.Reload(ctx); err != nil {
		if _, ok := e.index.Current(); !ok {
			e.Close()
			return nil, fmt.Errorf("menudex: initial build: %w", err)
		}
		e.logger.Warn("Initial build failed, serving persisted index", zap.Error(err))
	}
	return e, nil
}

func (e *Engine) wire(ctx context.Context, cfg *engineConfig) error {
	var store *dbRedis.Store
	if len(cfg.redisAddrs) > 0 {
		s, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.redisAddrs, Password: cfg.redisPassword})
		if err != nil {
			return fmt.Errorf("menudex: create redis store: %w", err)
		}
		e.closers = append(e.closers, s.Close)
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			return fmt.Errorf("menudex: database not ready: %w", err)
		}
		store = s
	}

	source, err := e.openSource(ctx, cfg)
	if err != nil {
		return err
	}

	embed := e.buildEmbedder(cfg, store)

	healthOpts := []healthuc.Option{healthuc.WithEmbedding(embeddingHealth{embed})}
	if store != nil {
		idx := menuindex.New(store,
			menuindex.WithHNSW(menuindex.HNSWConfig{M: cfg.hnswM, EFConstruct: cfg.hnswEF}),
			menuindex.WithDimensions(cfg.dimensions),
			menuindex.WithLogger(cfg.logger),
		)
		if _, _, err := idx.Load(ctx); err != nil {
			return fmt.Errorf("menudex: load index: %w", err)
		}
		e.closers = append(e.closers, idx.Close)
		e.index = idx
		healthOpts = append(healthOpts, healthuc.WithDatabase("redis", store))
	} else {
		e.index = memindex.New(memindex.WithDimensions(cfg.dimensions), memindex.WithLogger(cfg.logger))
	}
	healthOpts = append(healthOpts, healthuc.WithIndex(e.index))

	e.retrieval = retrieval.New(e.index, embed, retrieval.Config{
		EmbedTimeout:      cfg.embedTimeout,
		InferPriceCeiling: cfg.inferPriceCeiling,
	}, cfg.logger)
	e.rebuild = catalogsvc.New(source, e.index, embed, catalogsvc.Config{
		BatchSize: cfg.batchSize,
		Workers:   cfg.workers,
	}, cfg.logger)
	e.health = healthuc.New(healthOpts...)
	return nil
}

func (e *Engine) openSource(ctx context.Context, cfg *engineConfig) (catalogsvc.Source, error) {
	switch {
	case cfg.source != nil:
		src := cfg.source
		return catalogrepo.NewFuncSource(func(ctx context.Context) ([]menu.Item, error) {
			items, err := src.Load(ctx)
			if err != nil {
				return nil, err
			}
			return toMenuItems(items), nil
		}, cfg.logger), nil
	case cfg.postgres != nil:
		db, err := catalogrepo.OpenDB(ctx, cfg.postgres.dsn)
		if err != nil {
			return nil, fmt.Errorf("menudex: open catalog database: %w", err)
		}
		e.closers = append(e.closers, func() { _ = db.Close() })
		opts := []catalogrepo.PostgresOption{catalogrepo.WithPostgresLogger(cfg.logger)}
		if cfg.postgres.table != "" {
			opts = append(opts, catalogrepo.WithTable(cfg.postgres.table))
		}
		if cfg.postgres.restaurantID != "" {
			opts = append(opts, catalogrepo.WithRestaurant(cfg.postgres.restaurantID))
		}
		if cfg.postgres.extended {
			opts = append(opts, catalogrepo.WithExtendedColumns())
		}
		return catalogrepo.NewPostgresSource(db, opts...), nil
	default:
		return catalogrepo.NewFileSource(cfg.menuFile, cfg.logger), nil
	}
}

// buildEmbedder assembles OpenAI -> Cached -> Instrumented -> Breaker,
// or adapts the caller's embedder as is.
func (e *Engine) buildEmbedder(cfg *engineConfig, store *dbRedis.Store) domain.Embedder {
	if cfg.embedder != nil {
		return adaptEmbedder(cfg.embedder)
	}

	var embedder domain.Embedder = openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.openai.apiKey,
		BaseURL:    cfg.openai.baseURL,
		Model:      cfg.openai.model,
		Dimensions: cfg.openai.dimensions,
		Provider:   "openai",
		Logger:     cfg.logger,
	})
	if cfg.cache && store != nil {
		embedder = embcache.New(embedder, store, embcache.Config{
			Namespace: cfg.openai.model,
			TTL:       cfg.cacheTTL,
		}, metrics.EmbeddingCacheTotal, cfg.logger)
	}
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, "openai", cfg.openai.model, 0, cfg.logger)
	return embeddinguc.NewBreakerEmbedder(embedder, embeddinguc.BreakerConfig{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Second,
	}, cfg.logger)
}

// Retrieve ranks menu items for q. The error is non-nil only for an invalid query;
// provider and index failures are reported through Outcome.Reason.
func (e *Engine) Retrieve(ctx context.Context, q *Query) (Outcome, error) {
	start := time.Now()
	if q == nil {
		q = NewQuery("")
	}
	req, err := q.request()
	if err != nil {
		e.obs.observe("retrieve", "invalid_request", start)
		return Outcome{}, fmt.Errorf("menudex: retrieve: %w", err)
	}

	out := e.retrieval.Retrieve(ctx, &req)
	e.obs.observe("retrieve", string(out.Reason), start)

	return Outcome{
		Results: fromScored(out.Results),
		Reason:  Reason(out.Reason),
		Err:     out.Err,
		Query:   out.Normalized,
		Reply:   retrieval.FormatReply(out.Normalized, out.Results, e.currency),
		Signals: fromSignals(out.Signals),
	}, nil
}

// Reload rebuilds the index from the catalog source and swaps it in.
// On error the previous index keeps serving.
func (e *Engine) Reload(ctx context.Context) (RebuildReport, error) {
	start := time.Now()
	rep, err := e.rebuild.Rebuild(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.obs.observe("reload", status, start)
	return fromReport(rep), err
}

// Status describes the committed index and the last rebuild.
func (e *Engine) Status() Status {
	st := Status{Items: e.index.Count()}
	if gen, ok := e.index.Current(); ok {
		st.Generation = gen.ID
		st.CommittedAt = gen.CommittedAt
	}
	if rep, ok := e.rebuild.Last(); ok {
		r := fromReport(rep)
		st.LastRebuild = &r
	}
	return st
}

// Health checks the index, the embedding provider and Redis when used.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	report := e.health.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

// Close releases all resources.
func (e *Engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

// embeddingHealth probes embedders that support it; others always pass.
type embeddingHealth struct {
	embedder domain.Embedder
}

func (h embeddingHealth) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
