package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:    HTTPConfig{Port: 8080},
		Catalog: CatalogConfig{Path: "menu.json"},
		Embedding: EmbeddingConfig{
			Providers: map[string]ProviderConfig{
				"openai": {APIKey: "test-key"},
			},
			Vectorizers: map[string]VectorizerConfig{
				"menu": {Provider: "openai", Model: "text-embedding-3-small"},
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"negative rate limit", func(c *Config) { c.HTTP.RateLimitRPS = -1 }, "http.rate_limit_rps"},
		{"unknown index driver", func(c *Config) { c.Index.Driver = "qdrant" }, `index.driver must be "memory" or "redis", got "qdrant"`},
		{"redis index without addrs", func(c *Config) { c.Index.Driver = "redis" }, "database.addrs"},
		{"cache without addrs", func(c *Config) { c.Embedding.Cache.Enabled = true }, "database.addrs"},
		{"file source without path", func(c *Config) { c.Catalog.Path = "" }, "catalog.path"},
		{"postgres without dsn", func(c *Config) { c.Catalog.Source = "postgres" }, "catalog.dsn"},
		{"unknown source", func(c *Config) { c.Catalog.Source = "sqlite" }, "catalog.source"},
		{"no vectorizer", func(c *Config) { c.Embedding.Vectorizers = nil }, "embedding.vectorizers"},
		{"undefined provider", func(c *Config) {
			c.Embedding.Vectorizers["menu"] = VectorizerConfig{Provider: "nebius", Model: "m"}
		}, `embedding.vectorizers.menu.provider "nebius" is not defined`},
		{"missing model", func(c *Config) {
			c.Embedding.Vectorizers["menu"] = VectorizerConfig{Provider: "openai"}
		}, "embedding.vectorizers.menu.model"},
		{"failure ratio above one", func(c *Config) { c.Embedding.Breaker.FailureRatio = 1.5 }, "failure_ratio"},
		{"events without url", func(c *Config) { c.Events.Enabled = true }, "events.url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestValidate_RedisWithAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Index.Driver = "redis"
	cfg.Embedding.Cache.Enabled = true
	cfg.Database.Addrs = []string{"localhost:6379"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Index.Driver != "memory" {
		t.Errorf("expected Driver=memory, got %q", cfg.Index.Driver)
	}
	if cfg.Index.HNSWM != 16 || cfg.Index.HNSWEFConstruct != 200 {
		t.Errorf("unexpected HNSW defaults: m=%d ef=%d", cfg.Index.HNSWM, cfg.Index.HNSWEFConstruct)
	}
	if cfg.Index.RebuildOnStart == nil || !*cfg.Index.RebuildOnStart {
		t.Error("expected RebuildOnStart=true")
	}
	if cfg.Catalog.Source != "file" || cfg.Catalog.Table != "menu_menuitem" {
		t.Errorf("unexpected catalog defaults: %+v", cfg.Catalog)
	}
	if cfg.Retrieval.EmbedTimeoutMs != 3000 {
		t.Errorf("expected EmbedTimeoutMs=3000, got %d", cfg.Retrieval.EmbedTimeoutMs)
	}
	if cfg.Retrieval.InferPriceCeiling {
		t.Error("price inference must be opt-in")
	}
	if cfg.Index.RetireDelaySec != 30 {
		t.Errorf("expected RetireDelaySec=30, got %d", cfg.Index.RetireDelaySec)
	}
	if cfg.Retrieval.Currency != "₹" {
		t.Errorf("expected Currency=₹, got %q", cfg.Retrieval.Currency)
	}
	if cfg.Events.Subject != "menu.catalog.changed" || cfg.Events.Queue != "menudex" {
		t.Errorf("unexpected events defaults: %+v", cfg.Events)
	}
	if cfg.Embedding.BatchSize != 32 || cfg.Embedding.Workers != 4 {
		t.Errorf("unexpected embedding defaults: batch=%d workers=%d", cfg.Embedding.BatchSize, cfg.Embedding.Workers)
	}
	if cfg.Embedding.Breaker.RetryMaxAttempts != 3 {
		t.Errorf("expected RetryMaxAttempts=3, got %d", cfg.Embedding.Breaker.RetryMaxAttempts)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	off := false
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 90, ShutdownSec: 5},
		Index:     IndexConfig{Driver: "redis", HNSWM: 32, RebuildOnStart: &off},
		Retrieval: RetrievalConfig{InferPriceCeiling: true, Currency: "$"},
		Embedding: EmbeddingConfig{BatchSize: 8},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 || cfg.HTTP.WriteTimeoutSec != 90 {
		t.Errorf("timeouts overridden: %+v", cfg.HTTP)
	}
	if cfg.Index.Driver != "redis" || cfg.Index.HNSWM != 32 {
		t.Errorf("index overridden: %+v", cfg.Index)
	}
	if *cfg.Index.RebuildOnStart {
		t.Error("explicit rebuild_on_start=false was overridden")
	}
	if !cfg.Retrieval.InferPriceCeiling {
		t.Error("explicit infer_price_ceiling=true was overridden")
	}
	if cfg.Retrieval.Currency != "$" {
		t.Errorf("expected Currency=$, got %q", cfg.Retrieval.Currency)
	}
	if cfg.Embedding.BatchSize != 8 {
		t.Errorf("expected BatchSize=8, got %d", cfg.Embedding.BatchSize)
	}
}

func TestVectorizer_PicksFirstByName(t *testing.T) {
	c := EmbeddingConfig{
		Providers: map[string]ProviderConfig{
			"a": {BaseURL: "https://a"},
			"b": {BaseURL: "https://b"},
		},
		Vectorizers: map[string]VectorizerConfig{
			"zeta":  {Provider: "a", Model: "z"},
			"alpha": {Provider: "b", Model: "a"},
		},
	}
	v, p, name := c.Vectorizer()
	if v.Model != "a" || p.BaseURL != "https://b" || name != "b" {
		t.Errorf("got %+v %+v %q", v, p, name)
	}

	empty := EmbeddingConfig{}
	if _, _, name := empty.Vectorizer(); name != "" {
		t.Errorf("expected empty provider name, got %q", name)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("MENUDEX_TEST_KEY", "secret")

	got := string(expandEnvVars([]byte("key: ${MENUDEX_TEST_KEY}\nurl: ${MENUDEX_TEST_UNSET:-nats://localhost:4222}\nempty: ${MENUDEX_TEST_UNSET}")))
	want := "key: secret\nurl: nats://localhost:4222\nempty: "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoad_FromConfigDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := `
http:
  port: 9090
catalog:
  path: ./menu.json
embedding:
  providers:
    openai:
      api_key: ${MENUDEX_TEST_API_KEY}
  vectorizers:
    menu:
      provider: openai
      model: text-embedding-3-small
      dimensions: 1536
`
	if err := os.WriteFile(filepath.Join(dir, "config", "unittest.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MENUDEX_TEST_API_KEY", "sk-test")
	t.Chdir(dir)

	cfg, err := Load("unittest")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Embedding.Providers["openai"].APIKey != "sk-test" {
		t.Errorf("env var not expanded: %q", cfg.Embedding.Providers["openai"].APIKey)
	}
	if cfg.Index.Driver != "memory" {
		t.Errorf("defaults not applied: driver %q", cfg.Index.Driver)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config", "broken.yaml"), []byte("http:\n  port: 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	if _, err := Load("broken"); err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("expected invalid config error, got %v", err)
	}
	if _, err := Load("missing"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
