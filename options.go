package menudex

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Engine.
type Option interface {
	apply(*engineConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*engineConfig)

func (f optionFunc) apply(c *engineConfig) { f(c) }

// Source supplies the full menu on every rebuild.
type Source interface {
	Load(ctx context.Context) ([]Item, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Item, error)

// Load calls f.
func (f SourceFunc) Load(ctx context.Context) ([]Item, error) { return f(ctx) }

type openAIConfig struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
}

type postgresConfig struct {
	dsn          string
	table        string
	restaurantID string
	extended     bool
}

type engineConfig struct {
	embedder Embedder
	openai   *openAIConfig

	source   Source
	menuFile string
	postgres *postgresConfig

	redisAddrs    []string
	redisPassword string
	cacheTTL      time.Duration
	cache         bool
	hnswM         int
	hnswEF        int

	dimensions        int
	batchSize         int
	workers           int
	embedTimeout      time.Duration
	inferPriceCeiling bool
	currency          string

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

func defaultEngineConfig() *engineConfig {
	return &engineConfig{
		currency: "₹",
		logger:   zap.NewNop(),
	}
}

// WithEmbedder sets the embedding provider used for documents and queries.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *engineConfig) {
		c.embedder = e
	})
}

// WithOpenAI embeds through an OpenAI-compatible API with retries and a
// circuit breaker. An empty baseURL uses api.openai.com.
func WithOpenAI(apiKey, baseURL, model string, dimensions int) Option {
	return optionFunc(func(c *engineConfig) {
		c.openai = &openAIConfig{apiKey: apiKey, baseURL: baseURL, model: model, dimensions: dimensions}
		c.dimensions = dimensions
	})
}

// WithSource sets the catalog source.
func WithSource(s Source) Option {
	return optionFunc(func(c *engineConfig) {
		c.source = s
	})
}

// WithMenuFile reads the catalog from a structured menu JSON file.
func WithMenuFile(path string) Option {
	return optionFunc(func(c *engineConfig) {
		c.menuFile = path
	})
}

// WithPostgres reads available items from a menu table.
// restaurantID may be empty; extended also selects cuisine, spice, egg and keyword columns.
func WithPostgres(dsn, table, restaurantID string, extended bool) Option {
	return optionFunc(func(c *engineConfig) {
		c.postgres = &postgresConfig{dsn: dsn, table: table, restaurantID: restaurantID, extended: extended}
	})
}

// WithRedis keeps the index in Redis 8+ instead of process memory.
// A persisted index is served immediately after restart.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *engineConfig) {
		c.redisAddrs = []string{addr}
		c.redisPassword = password
	})
}

// WithEmbeddingCache caches vectors in Redis. Requires WithRedis.
// ttl <= 0 keeps entries forever.
func WithEmbeddingCache(ttl time.Duration) Option {
	return optionFunc(func(c *engineConfig) {
		c.cache = true
		c.cacheTTL = ttl
	})
}

// WithHNSW configures HNSW parameters of the Redis index.
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *engineConfig) {
		c.hnswM = m
		c.hnswEF = efConstruct
	})
}

// WithVectorDimensions pins the vector size. Zero accepts whatever the embedder returns.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *engineConfig) {
		c.dimensions = dim
	})
}

// WithBatchSize sets how many documents share one embedding call during a rebuild.
// Default: 32.
func WithBatchSize(n int) Option {
	return optionFunc(func(c *engineConfig) {
		c.batchSize = n
	})
}

// WithWorkers bounds concurrent embedding calls during a rebuild.
// Default: 4.
func WithWorkers(n int) Option {
	return optionFunc(func(c *engineConfig) {
		c.workers = n
	})
}

// WithEmbedTimeout bounds query embedding. Default: 3s.
func WithEmbedTimeout(d time.Duration) Option {
	return optionFunc(func(c *engineConfig) {
		c.embedTimeout = d
	})
}

// WithPriceInference applies a price ceiling written in the query text
// ("under 200") when the query sets no MaxPrice. Off by default.
func WithPriceInference() Option {
	return optionFunc(func(c *engineConfig) {
		c.inferPriceCeiling = true
	})
}

// WithCurrency sets the price prefix used in replies. Default: ₹.
func WithCurrency(symbol string) Option {
	return optionFunc(func(c *engineConfig) {
		c.currency = symbol
	})
}

// WithLogger enables structured logging. Nil keeps the engine silent (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *engineConfig) {
		if l != nil {
			c.logger = l
		}
	})
}

// WithPrometheus registers engine metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *engineConfig) {
		c.metricsReg = reg
	})
}
