package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the menudex configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Index     IndexConfig     `yaml:"index"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Events    EventsConfig    `yaml:"events"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int     `yaml:"port"`
	ReadTimeoutSec  int     `yaml:"read_timeout_sec"`
	WriteTimeoutSec int     `yaml:"write_timeout_sec"`
	ShutdownSec     int     `yaml:"shutdown_timeout_sec"`
	RateLimitRPS    float64 `yaml:"rate_limit_rps"` // 0 = unlimited
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
}

// DatabaseConfig holds the Redis connection used by the redis index and the embedding cache.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig selects and tunes the vector index.
type IndexConfig struct {
	Driver          string `yaml:"driver"` // memory, redis (default: memory)
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	RebuildOnStart  *bool  `yaml:"rebuild_on_start"` // default: true
	// RetireDelaySec keeps a superseded redis generation queryable (default: 30)
	RetireDelaySec  int    `yaml:"retire_delay_sec"`
}

// CatalogConfig selects where menu items are read from.
type CatalogConfig struct {
	Source          string `yaml:"source"` // file, postgres (default: file)
	Path            string `yaml:"path"`
	DSN             string `yaml:"dsn"`
	Table           string `yaml:"table"`
	RestaurantID    string `yaml:"restaurant_id"`
	ExtendedColumns bool   `yaml:"extended_columns"`
}

// RetrievalConfig tunes the query pipeline.
type RetrievalConfig struct {
	EmbedTimeoutMs    int    `yaml:"embed_timeout_ms"`
	InferPriceCeiling bool   `yaml:"infer_price_ceiling"` // default: false
	Currency          string `yaml:"currency"`
}

// EventsConfig holds the NATS catalog change subscription.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Queue   string `yaml:"queue"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Providers   map[string]ProviderConfig   `yaml:"providers"`
	Vectorizers map[string]VectorizerConfig `yaml:"vectorizers"`
	BatchSize   int                         `yaml:"batch_size"`
	Workers     int                         `yaml:"workers"`
	Cache       CacheConfig                 `yaml:"cache"`
	Breaker     BreakerConfig               `yaml:"breaker"`
}

// CacheConfig holds the Redis embedding cache settings.
type CacheConfig struct {
	Enabled  bool `yaml:"enabled"`
	TTLHours int  `yaml:"ttl_hours"` // 0 = no expiry
}

// BreakerConfig holds retry and circuit breaker settings for the provider.
type BreakerConfig struct {
	RetryMaxAttempts      int     `yaml:"retry_max_attempts"`
	RetryInitialBackoffMs int     `yaml:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs     int     `yaml:"retry_max_backoff_ms"`
	MinRequests           uint32  `yaml:"min_requests"`
	FailureRatio          float64 `yaml:"failure_ratio"`
	OpenTimeoutSec        int     `yaml:"open_timeout_sec"`
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// VectorizerConfig holds vectorizer settings.
type VectorizerConfig struct {
	Provider            string `yaml:"provider"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	MaxBatchSize        int    `yaml:"max_batch_size"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// Vectorizer returns the vectorizer with the lexically first name and its provider.
func (c *EmbeddingConfig) Vectorizer() (VectorizerConfig, ProviderConfig, string) {
	names := make([]string, 0, len(c.Vectorizers))
	for name := range c.Vectorizers {
		names = append(names, name)
	}
	if len(names) == 0 {
		return VectorizerConfig{}, ProviderConfig{}, ""
	}
	slices.Sort(names)
	v := c.Vectorizers[names[0]]
	return v, c.Providers[v.Provider], v.Provider
}

// UsesRedis reports whether any component needs the Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Index.Driver == "redis" || c.Embedding.Cache.Enabled
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Index.Driver == "" {
		c.Index.Driver = "memory"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Index.RebuildOnStart == nil {
		c.Index.RebuildOnStart = ptr(true)
	}
	if c.Index.RetireDelaySec <= 0 {
		c.Index.RetireDelaySec = 30
	}
	if c.Catalog.Source == "" {
		c.Catalog.Source = "file"
	}
	if c.Catalog.Table == "" {
		c.Catalog.Table = "menu_menuitem"
	}
	if c.Retrieval.EmbedTimeoutMs <= 0 {
		c.Retrieval.EmbedTimeoutMs = 3000
	}
	if c.Retrieval.Currency == "" {
		c.Retrieval.Currency = "₹"
	}
	if c.Events.Subject == "" {
		c.Events.Subject = "menu.catalog.changed"
	}
	if c.Events.Queue == "" {
		c.Events.Queue = "menudex"
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Embedding.Workers <= 0 {
		c.Embedding.Workers = 4
	}
	if c.Embedding.Breaker.RetryMaxAttempts <= 0 {
		c.Embedding.Breaker.RetryMaxAttempts = 3
	}
	if c.Embedding.Breaker.RetryInitialBackoffMs <= 0 {
		c.Embedding.Breaker.RetryInitialBackoffMs = 200
	}
	if c.Embedding.Breaker.RetryMaxBackoffMs <= 0 {
		c.Embedding.Breaker.RetryMaxBackoffMs = 2000
	}
	if c.Embedding.Breaker.MinRequests == 0 {
		c.Embedding.Breaker.MinRequests = 5
	}
	if c.Embedding.Breaker.FailureRatio <= 0 {
		c.Embedding.Breaker.FailureRatio = 0.5
	}
	if c.Embedding.Breaker.OpenTimeoutSec <= 0 {
		c.Embedding.Breaker.OpenTimeoutSec = 30
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.RateLimitRPS < 0 {
		return fmt.Errorf("http.rate_limit_rps must not be negative")
	}

	switch c.Index.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("index.driver must be \"memory\" or \"redis\", got %q", c.Index.Driver)
	}
	if c.UsesRedis() && len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required for the redis index or the embedding cache")
	}

	switch c.Catalog.Source {
	case "file":
		if c.Catalog.Path == "" {
			return fmt.Errorf("catalog.path is required for the file source")
		}
	case "postgres":
		if c.Catalog.DSN == "" {
			return fmt.Errorf("catalog.dsn is required for the postgres source")
		}
	default:
		return fmt.Errorf("catalog.source must be \"file\" or \"postgres\", got %q", c.Catalog.Source)
	}

	if len(c.Embedding.Vectorizers) == 0 {
		return fmt.Errorf("embedding.vectorizers must define one vectorizer")
	}
	for name, v := range c.Embedding.Vectorizers {
		if _, ok := c.Embedding.Providers[v.Provider]; !ok {
			return fmt.Errorf("embedding.vectorizers.%s.provider %q is not defined", name, v.Provider)
		}
		if v.Model == "" {
			return fmt.Errorf("embedding.vectorizers.%s.model is required", name)
		}
	}
	if c.Embedding.Breaker.FailureRatio > 1 {
		return fmt.Errorf("embedding.breaker.failure_ratio must be in (0, 1]")
	}

	if c.Events.Enabled && c.Events.URL == "" {
		return fmt.Errorf("events.url is required when events are enabled")
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
