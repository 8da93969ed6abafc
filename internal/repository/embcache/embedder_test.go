package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func newCache(inner *stubEmbedder, kv *memKV, cfg Config) *CachedEmbedder {
	return New(inner, kv, cfg, nil, zap.NewNop())
}

func TestEmbed_MissThenHit(t *testing.T) {
	inner := &stubEmbedder{vec: []float32{0.1, 0.2, 0.3}, tokens: 10}
	kv := newMemKV()
	c := newCache(inner, kv, Config{})

	first, err := c.Embed(context.Background(), "paneer tikka")
	if err != nil {
		t.Fatalf("first Embed: %v", err)
	}
	if first.TotalTokens != 10 || kv.len() != 1 {
		t.Fatalf("miss should call provider and store: tokens=%d stored=%d", first.TotalTokens, kv.len())
	}

	second, err := c.Embed(context.Background(), "paneer tikka")
	if err != nil {
		t.Fatalf("second Embed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("hit should not reach the provider, calls=%d", inner.calls)
	}
	if second.TotalTokens != 0 || len(second.Embedding) != 3 || second.Embedding[1] != 0.2 {
		t.Errorf("hit = %+v", second)
	}
}

func TestEmbed_ProviderError(t *testing.T) {
	inner := &stubEmbedder{err: errors.New("provider down")}
	kv := newMemKV()

	if _, err := newCache(inner, kv, Config{}).Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected provider error")
	}
	if kv.len() != 0 {
		t.Error("failures must not be cached")
	}
}

func TestEmbed_StoreFailuresDegradeToProvider(t *testing.T) {
	inner := &stubEmbedder{vec: []float32{1}}
	kv := newMemKV()
	kv.readErr = errors.New("redis down")
	kv.writeErr = errors.New("redis down")

	res, err := newCache(inner, kv, Config{}).Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("cache failure must not fail the call: %v", err)
	}
	if len(res.Embedding) != 1 || inner.calls != 1 {
		t.Errorf("expected provider result, got %+v", res)
	}
}

func TestBatchEmbed_EmbedsOnlyMisses(t *testing.T) {
	inner := &stubEmbedder{vec: []float32{0.5}, tokens: 3}
	kv := newMemKV()
	c := newCache(inner, kv, Config{})
	kv.put(c.cacheKey("gulab jamun"), []float32{0.9})

	res, err := c.BatchEmbed(context.Background(), []string{"masala dosa", "gulab jamun", "cold coffee"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if inner.calls != 1 || strings.Join(inner.texts, ",") != "masala dosa,cold coffee" {
		t.Errorf("provider saw %v in %d calls", inner.texts, inner.calls)
	}
	if res.Embeddings[1][0] != 0.9 || res.Embeddings[0][0] != 0.5 || res.Embeddings[2][0] != 0.5 {
		t.Errorf("embeddings out of order: %v", res.Embeddings)
	}
	if res.TotalTokens != 6 {
		t.Errorf("tokens should cover misses only, got %d", res.TotalTokens)
	}
	if kv.len() != 3 {
		t.Errorf("misses should be stored, have %d keys", kv.len())
	}
}

func TestBatchEmbed_AllHitsSkipProvider(t *testing.T) {
	inner := &stubEmbedder{vec: []float32{0.1}}
	kv := newMemKV()
	c := newCache(inner, kv, Config{})
	kv.put(c.cacheKey("a"), []float32{0.9, 0.8})
	kv.put(c.cacheKey("b"), []float32{0.7, 0.6})

	res, err := c.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if inner.calls != 0 || res.TotalTokens != 0 || res.Embeddings[1][0] != 0.7 {
		t.Errorf("calls=%d res=%+v", inner.calls, res)
	}
}

func TestBatchEmbed_EdgeCases(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		res, err := newCache(&stubEmbedder{}, newMemKV(), Config{}).BatchEmbed(context.Background(), nil)
		if err != nil || res.Embeddings != nil {
			t.Fatalf("got %+v, %v", res, err)
		}
	})

	t.Run("lookup failure embeds everything", func(t *testing.T) {
		inner := &stubEmbedder{vec: []float32{0.3}}
		kv := newMemKV()
		kv.readErr = errors.New("redis down")
		res, err := newCache(inner, kv, Config{}).BatchEmbed(context.Background(), []string{"a", "b"})
		if err != nil || len(res.Embeddings) != 2 || len(inner.texts) != 2 {
			t.Fatalf("got %+v, %v (provider saw %v)", res, err, inner.texts)
		}
	})

	t.Run("corrupt entry is a miss", func(t *testing.T) {
		inner := &stubEmbedder{vec: []float32{0.3}}
		kv := newMemKV()
		c := newCache(inner, kv, Config{})
		kv.data[c.cacheKey("a")] = []byte{1, 2, 3}
		res, err := c.BatchEmbed(context.Background(), []string{"a"})
		if err != nil || res.Embeddings[0][0] != 0.3 || inner.calls != 1 {
			t.Fatalf("corrupt entry should be re-embedded: %+v, %v", res, err)
		}
	})

	t.Run("provider error", func(t *testing.T) {
		inner := &stubEmbedder{err: errors.New("api down")}
		if _, err := newCache(inner, newMemKV(), Config{}).BatchEmbed(context.Background(), []string{"a"}); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestCacheKey_NamespaceAndTTL(t *testing.T) {
	inner := &stubEmbedder{vec: []float32{0.1}}
	kv := newMemKV()
	c := newCache(inner, kv, Config{Namespace: "openai:text-embedding-3-small:1536", TTL: time.Hour})

	if _, err := c.Embed(context.Background(), "dal makhani"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	key := c.cacheKey("dal makhani")
	if !strings.HasPrefix(key, "menudex:emb:openai:text-embedding-3-small:1536:") {
		t.Errorf("key = %q", key)
	}
	if kv.ttl[key] != time.Hour {
		t.Errorf("ttl = %v, want 1h", kv.ttl[key])
	}
	if newCache(inner, kv, Config{}).cacheKey("dal makhani") == key {
		t.Error("namespaces must not share keys")
	}
}

func TestCacheMetrics(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	kv := newMemKV()
	c := New(&stubEmbedder{vec: []float32{0.1}}, kv, Config{}, counter, zap.NewNop())
	kv.put(c.cacheKey("hit"), []float32{0.9})

	if _, err := c.BatchEmbed(context.Background(), []string{"hit", "miss1", "miss2"}); err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 2 {
		t.Errorf("misses = %v, want 2", got)
	}
}

func TestHealthCheck_Delegates(t *testing.T) {
	c := newCache(&stubEmbedder{healthErr: errors.New("unreachable")}, newMemKV(), Config{})
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected inner health error")
	}
}
