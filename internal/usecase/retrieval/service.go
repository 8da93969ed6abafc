package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/menudex/internal/domain"
	"github.com/kailas-cloud/menudex/internal/domain/query"
	"github.com/kailas-cloud/menudex/internal/domain/search/request"
	"github.com/kailas-cloud/menudex/internal/domain/search/result"
	"github.com/kailas-cloud/menudex/internal/logger"
	"github.com/kailas-cloud/menudex/internal/metrics"
)

// DefaultEmbedTimeout bounds the query embedding call.
const DefaultEmbedTimeout = 3 * time.Second

// Reason classifies how a retrieval ended.
type Reason string

// Retrieval outcome reasons. Only ReasonOK carries results.
const (
	ReasonOK              Reason = "ok"
	ReasonNoCandidates    Reason = "no_candidates"
	ReasonEmptyIndex      Reason = "empty_index"
	ReasonProviderFailure Reason = "provider_failure"
	ReasonIndexFailure    Reason = "index_failure"
)

// Outcome is the result of one retrieval. Collaborator failures are reported
// through Reason and Err, never as a returned error.
type Outcome struct {
	Results    []result.Scored
	Reason     Reason
	Err        error
	Normalized string
	Signals    query.Signals
}

// Config tunes the retrieval pipeline.
type Config struct {
	EmbedTimeout time.Duration
	// InferPriceCeiling applies a price ceiling read from the query text
	// when the request carries none. Off by default.
	InferPriceCeiling bool
}

// Service runs the enhance, embed, query and rerank pipeline.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	index  Index
	embed  Embedder
	cfg    Config
	flight singleflight.Group
	logger *zap.Logger
}

// New creates a retrieval service.
func New(index Index, embed Embedder, cfg Config, logger *zap.Logger) *Service {
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = DefaultEmbedTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{index: index, embed: embed, cfg: cfg, logger: logger}
}

// Retrieve finds the menu items best matching req.
// Embedding runs on the expanded query; reranking sees the normalized query.
func (s *Service) Retrieve(ctx context.Context, req *request.Request) (out Outcome) {
	start := time.Now()
	stage := ReasonProviderFailure

	defer func() {
		if r := recover(); r != nil {
			out = Outcome{
				Reason:     stage,
				Err:        fmt.Errorf("panic during retrieval: %v", r),
				Normalized: out.Normalized,
				Signals:    out.Signals,
			}
		}
		s.observe(ctx, req, &out, time.Since(start))
	}()

	out.Normalized = query.Normalize(req.Query())
	out.Signals = query.ExtractSignals(out.Normalized)
	enhanced := query.Enhance(out.Normalized)

	maxPrice := req.MaxPrice()
	if maxPrice == nil && s.cfg.InferPriceCeiling {
		maxPrice = out.Signals.MaxPrice
	}

	vec, err := s.embedQuery(ctx, enhanced.Text)
	if err != nil {
		out.Reason, out.Err = ReasonProviderFailure, err
		return out
	}

	stage = ReasonIndexFailure
	candidates, err := s.index.Query(ctx, vec, req.SearchK(), req.Filters())
	if err != nil {
		if errors.Is(err, domain.ErrEmptyIndex) {
			out.Reason, out.Err = ReasonEmptyIndex, err
		} else {
			out.Reason, out.Err = ReasonIndexFailure, fmt.Errorf("query index: %w", err)
		}
		return out
	}

	// The reranker sees the folded query: "what desert" must match "Dessert" by name.
	out.Results = Rerank(out.Normalized, candidates, maxPrice, req.TopK())
	if len(out.Results) == 0 {
		out.Reason = ReasonNoCandidates
		return out
	}
	out.Reason = ReasonOK
	return out
}

// embedQuery embeds text under the configured timeout. Identical concurrent
// queries share one provider call; each caller can still abandon its wait.
func (s *Service) embedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()

	ch := s.flight.DoChan(text, func() (_ any, err error) {
		// DoChan runs this on its own goroutine, where a panic kills the process
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: panic: %v", domain.ErrEmbeddingProviderError, r)
			}
		}()
		// the shared call must not die with the first caller that leaves
		callCtx, callCancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.EmbedTimeout)
		defer callCancel()
		res, err := s.embed.Embed(callCtx, text)
		if err != nil {
			return nil, err
		}
		return res.Embedding, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: embed query: %w", domain.ErrEmbeddingProviderError, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, fmt.Errorf("embed query: %w", r.Err)
		}
		vec, _ := r.Val.([]float32)
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: empty query embedding", domain.ErrEmbeddingProviderError)
		}
		if !hasDirection(vec) {
			return nil, fmt.Errorf("%w: query embedding has no direction", domain.ErrEmbeddingProviderError)
		}
		return vec, nil
	}
}

// hasDirection reports whether vec is finite and not all zeros.
// Cosine similarity is undefined otherwise.
func hasDirection(vec []float32) bool {
	nonZero := false
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
		if v != 0 {
			nonZero = true
		}
	}
	return nonZero
}

func (s *Service) observe(ctx context.Context, req *request.Request, out *Outcome, took time.Duration) {
	metrics.RetrievalsTotal.WithLabelValues(string(out.Reason)).Inc()
	metrics.RetrievalDuration.Observe(took.Seconds())

	log := logger.FromContextOr(ctx, s.logger)
	fields := []zap.Field{
		zap.String("query", out.Normalized),
		zap.Int("top_k", req.TopK()),
		zap.Int("results", len(out.Results)),
		zap.Duration("duration", took),
	}

	switch out.Reason {
	case ReasonOK:
		log.Debug("Retrieval completed", fields...)
	case ReasonNoCandidates:
		log.Info("No candidates survived filtering", fields...)
	case ReasonEmptyIndex:
		log.Warn("Retrieval against empty index", fields...)
	case ReasonProviderFailure:
		log.Error("Query embedding failed", append(fields, zap.Error(out.Err))...)
	case ReasonIndexFailure:
		log.Error("Vector index query failed", append(fields, zap.Error(out.Err))...)
	}
}
