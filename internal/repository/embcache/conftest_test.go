package embcache

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/menudex/internal/db"
	"github.com/kailas-cloud/menudex/internal/domain"
)

// stubEmbedder hands out vec for every text and counts provider calls.
type stubEmbedder struct {
	vec       []float32
	tokens    int // per text
	err       error
	healthErr error

	calls int
	texts []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	s.calls++
	s.texts = append(s.texts, text)
	if s.err != nil {
		return domain.EmbeddingResult{}, s.err
	}
	return domain.EmbeddingResult{Embedding: s.vec, PromptTokens: s.tokens, TotalTokens: s.tokens}, nil
}

func (s *stubEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	s.calls++
	s.texts = append(s.texts, texts...)
	if s.err != nil {
		return domain.BatchEmbeddingResult{}, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	n := s.tokens * len(texts)
	return domain.BatchEmbeddingResult{Embeddings: out, PromptTokens: n, TotalTokens: n}, nil
}

func (s *stubEmbedder) HealthCheck(context.Context) error { return s.healthErr }

// memKV is a map-backed cache store with injectable failures.
type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
	ttl  map[string]time.Duration

	readErr  error
	writeErr error
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte), ttl: make(map[string]time.Duration)}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) GetMulti(_ context.Context, keys []string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.data[k]
	}
	return out, nil
}

func (m *memKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.data[key] = value
	m.ttl[key] = ttl
	return nil
}

func (m *memKV) put(key string, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = []byte(db.EncodeVector(vec))
}

func (m *memKV) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
