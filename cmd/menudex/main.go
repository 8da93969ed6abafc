package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/menudex/internal/config"
	dbRedis "github.com/kailas-cloud/menudex/internal/db/redis"
	"github.com/kailas-cloud/menudex/internal/domain"
	logpkg "github.com/kailas-cloud/menudex/internal/logger"
	"github.com/kailas-cloud/menudex/internal/metrics"
	catalogrepo "github.com/kailas-cloud/menudex/internal/repository/catalog"
	"github.com/kailas-cloud/menudex/internal/repository/embcache"
	"github.com/kailas-cloud/menudex/internal/repository/memindex"
	"github.com/kailas-cloud/menudex/internal/repository/menuindex"
	chiTransport "github.com/kailas-cloud/menudex/internal/transport/chi"
	natsTransport "github.com/kailas-cloud/menudex/internal/transport/nats"
	openaiEmb "github.com/kailas-cloud/menudex/internal/transport/openai"
	cataloguc "github.com/kailas-cloud/menudex/internal/usecase/catalog"
	embeddinguc "github.com/kailas-cloud/menudex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/menudex/internal/usecase/health"
	"github.com/kailas-cloud/menudex/internal/usecase/retrieval"
	"github.com/kailas-cloud/menudex/internal/version"
)

// index is what the services need from either index driver.
type index interface {
	retrieval.Index
	cataloguc.Index
	chiTransport.IndexInspector
}

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting menudex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_driver", cfg.Index.Driver),
		zap.String("catalog_source", cfg.Catalog.Source),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Register metrics explicitly (no init())
	metrics.Register()

	var healthOpts []healthuc.Option

	// Redis backs the redis index and the embedding cache
	var store *dbRedis.Store
	if cfg.UsesRedis() {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		logger.Info("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))
		healthOpts = append(healthOpts, healthuc.WithDatabase("redis", store))
	}

	// Build embedder chain
	vecCfg, provCfg, provName := cfg.Embedding.Vectorizer()
	base := buildEmbedder(provName, provCfg, vecCfg, cfg.Embedding, store, logger)
	docEmbedder := withInstruction(base, vecCfg.DocumentInstruction)
	queryEmbedder := withInstruction(base, vecCfg.QueryInstruction)
	healthOpts = append(healthOpts, healthuc.WithEmbedding(base))
	logger.Info("Embedders created",
		zap.String("provider", provName),
		zap.String("model", vecCfg.Model),
		zap.Int("dimensions", vecCfg.Dimensions),
		zap.Bool("cache", cfg.Embedding.Cache.Enabled),
	)

	idx, closeIndex := buildIndex(ctx, &cfg, vecCfg.Dimensions, store, logger)
	defer closeIndex()
	healthOpts = append(healthOpts, healthuc.WithIndex(idx))

	source, closeSource := buildSource(ctx, &cfg, logger)
	defer closeSource()

	retrievalSvc := retrieval.New(idx, queryEmbedder, retrieval.Config{
		EmbedTimeout:      time.Duration(cfg.Retrieval.EmbedTimeoutMs) * time.Millisecond,
		InferPriceCeiling: cfg.Retrieval.InferPriceCeiling,
	}, logger)
	rebuildSvc := cataloguc.New(source, idx, docEmbedder, cataloguc.Config{
		BatchSize: cfg.Embedding.BatchSize,
		Workers:   cfg.Embedding.Workers,
	}, logger)
	healthSvc := healthuc.New(healthOpts...)

	go func() { _ = rebuildSvc.Run(ctx) }()
	if *cfg.Index.RebuildOnStart || idx.Count() == 0 {
		rebuildSvc.Trigger()
	}

	// Catalog change events
	if cfg.Events.Enabled {
		conn, err := natsTransport.Connect(cfg.Events.URL, natsTransport.Options{}, logger)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer conn.Close()
		sub := natsTransport.NewSubscriber(conn, cfg.Events.Subject, cfg.Events.Queue, rebuildSvc, logger)
		go func() {
			if err := sub.Run(ctx); err != nil {
				logger.Error("Catalog event subscriber stopped", zap.Error(err))
			}
		}()
	}

	server := chiTransport.NewServer(retrievalSvc, rebuildSvc, idx, healthSvc, cfg.Retrieval.Currency, logger)
	handler := chiTransport.NewRouter(server, chiTransport.RouterConfig{
		APIKeys:        cfg.Auth.APIKeys,
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
		RateLimitBurst: cfg.HTTP.RateLimitBurst,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Breaker.
func buildEmbedder(
	provName string,
	provCfg config.ProviderConfig,
	vecCfg config.VectorizerConfig,
	embCfg config.EmbeddingConfig,
	store *dbRedis.Store,
	logger *zap.Logger,
) *embeddinguc.BreakerEmbedder {
	// Base provider (with transport metrics built-in)
	var embedder domain.Embedder = openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      vecCfg.Model,
		Dimensions: vecCfg.Dimensions,
		Provider:   provName,
		Logger:     logger,
	})

	if embCfg.Cache.Enabled && store != nil {
		embedder = embcache.New(embedder, store, embcache.Config{
			Namespace: fmt.Sprintf("%s:%s:%d", provName, vecCfg.Model, vecCfg.Dimensions),
			TTL:       time.Duration(embCfg.Cache.TTLHours) * time.Hour,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, provName, vecCfg.Model, vecCfg.MaxBatchSize, logger,
	)

	br := embCfg.Breaker
	return embeddinguc.NewBreakerEmbedder(embedder, embeddinguc.BreakerConfig{
		Name:                provName,
		RetryMaxAttempts:    br.RetryMaxAttempts,
		RetryInitialBackoff: time.Duration(br.RetryInitialBackoffMs) * time.Millisecond,
		RetryMaxBackoff:     time.Duration(br.RetryMaxBackoffMs) * time.Millisecond,
		MinRequests:         br.MinRequests,
		FailureRatio:        br.FailureRatio,
		OpenTimeout:         time.Duration(br.OpenTimeoutSec) * time.Second,
	}, logger)
}

// withInstruction prefixes texts so the cache key includes the instruction.
func withInstruction(inner domain.Embedder, instruction string) domain.Embedder {
	if instruction == "" {
		return inner
	}
	return domain.NewInstructionEmbedder(inner, instruction)
}

func buildIndex(
	ctx context.Context, cfg *config.Config, dim int, store *dbRedis.Store, logger *zap.Logger,
) (index, func()) {
	if cfg.Index.Driver != "redis" {
		return memindex.New(memindex.WithDimensions(dim), memindex.WithLogger(logger)), func() {}
	}

	idx := menuindex.New(store,
		menuindex.WithHNSW(menuindex.HNSWConfig{M: cfg.Index.HNSWM, EFConstruct: cfg.Index.HNSWEFConstruct}),
		menuindex.WithDimensions(dim),
		menuindex.WithRetireDelay(time.Duration(cfg.Index.RetireDelaySec)*time.Second),
		menuindex.WithLogger(logger),
	)
	if _, _, err := idx.Load(ctx); err != nil {
		logger.Fatal("Failed to load persisted index", zap.Error(err))
	}
	return idx, idx.Close
}

func buildSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cataloguc.Source, func()) {
	c := cfg.Catalog
	if c.Source != "postgres" {
		return catalogrepo.NewFileSource(c.Path, logger), func() {}
	}

	db, err := catalogrepo.OpenDB(ctx, c.DSN)
	if err != nil {
		logger.Fatal("Failed to open catalog database", zap.Error(err))
	}
	opts := []catalogrepo.PostgresOption{
		catalogrepo.WithTable(c.Table),
		catalogrepo.WithPostgresLogger(logger),
	}
	if c.RestaurantID != "" {
		opts = append(opts, catalogrepo.WithRestaurant(c.RestaurantID))
	}
	if c.ExtendedColumns {
		opts = append(opts, catalogrepo.WithExtendedColumns())
	}
	return catalogrepo.NewPostgresSource(db, opts...), func() { _ = db.Close() }
}
