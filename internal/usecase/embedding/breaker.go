package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/menudex/internal/domain"
	"github.com/kailas-cloud/menudex/internal/metrics"
)

// BreakerConfig tunes retries and the circuit breaker around the provider.
type BreakerConfig struct {
	Name string

	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

func (c BreakerConfig) normalize() BreakerConfig {
	if c.Name == "" {
		c.Name = "embedding"
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = 1
	}
	if c.RetryMultiplier < 1 {
		c.RetryMultiplier = 2
	}
	if c.RetryMaxBackoff < c.RetryInitialBackoff {
		c.RetryMaxBackoff = c.RetryInitialBackoff
	}
	if c.MinRequests == 0 {
		c.MinRequests = 5
	}
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		c.FailureRatio = 0.5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxCalls == 0 {
		c.HalfOpenMaxCalls = 1
	}
	return c
}

// temporary is implemented by provider errors that may succeed on retry.
type temporary interface {
	Temporary() bool
}

// BreakerEmbedder retries transient provider failures and stops calling
// the provider while it keeps failing. Open-circuit errors wrap
// domain.ErrEmbeddingProviderError.
type BreakerEmbedder struct {
	inner   domain.Embedder
	cfg     BreakerConfig
	breaker *gobreaker.CircuitBreaker[domain.BatchEmbeddingResult]
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewBreakerEmbedder wraps inner with retry and a circuit breaker.
func NewBreakerEmbedder(inner domain.Embedder, cfg BreakerConfig, logger *zap.Logger) *BreakerEmbedder {
	cfg = cfg.normalize()
	b := &BreakerEmbedder{
		inner:  inner,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepCtx,
	}

	b.breaker = gobreaker.NewCircuitBreaker[domain.BatchEmbeddingResult](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxCalls,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// a caller giving up says nothing about provider health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Embedding circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.EmbeddingBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	metrics.EmbeddingBreakerState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))

	return b
}

// Embed runs a single embedding through the breaker.
func (b *BreakerEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := b.execute(ctx, func(ctx context.Context) (domain.BatchEmbeddingResult, error) {
		r, err := b.inner.Embed(ctx, text)
		if err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
		return domain.BatchEmbeddingResult{
			Embeddings:   [][]float32{r.Embedding},
			PromptTokens: r.PromptTokens,
			TotalTokens:  r.TotalTokens,
		}, nil
	})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed runs a batch through the breaker as one unit.
func (b *BreakerEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	return b.execute(ctx, func(ctx context.Context) (domain.BatchEmbeddingResult, error) {
		return domain.EmbedAll(ctx, b.inner, texts)
	})
}

// HealthCheck reports an open circuit as unhealthy before asking the provider.
func (b *BreakerEmbedder) HealthCheck(ctx context.Context) error {
	if b.breaker.State() == gobreaker.StateOpen {
		return fmt.Errorf("%w: circuit open", domain.ErrEmbeddingProviderError)
	}
	if hc, ok := b.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// State exposes the breaker state for status endpoints.
func (b *BreakerEmbedder) State() string { return b.breaker.State().String() }

func (b *BreakerEmbedder) execute(
	ctx context.Context, fn func(context.Context) (domain.BatchEmbeddingResult, error),
) (domain.BatchEmbeddingResult, error) {
	res, err := b.breaker.Execute(func() (domain.BatchEmbeddingResult, error) {
		return b.withRetry(ctx, fn)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
		}
		return domain.BatchEmbeddingResult{}, err
	}
	return res, nil
}

func (b *BreakerEmbedder) withRetry(
	ctx context.Context, fn func(context.Context) (domain.BatchEmbeddingResult, error),
) (domain.BatchEmbeddingResult, error) {
	backoff := b.cfg.RetryInitialBackoff

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.BatchEmbeddingResult{}, err
		}

		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		if attempt >= b.cfg.RetryMaxAttempts || !isTemporary(err) {
			return domain.BatchEmbeddingResult{}, err
		}

		wait := min(backoff, b.cfg.RetryMaxBackoff)
		b.logger.Warn("Retrying embedding request",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", b.cfg.RetryMaxAttempts),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if serr := b.sleep(ctx, wait); serr != nil {
			return domain.BatchEmbeddingResult{}, err
		}
		backoff = time.Duration(float64(backoff) * b.cfg.RetryMultiplier)
	}
}

func isTemporary(err error) bool {
	var t temporary
	return errors.As(err, &t) && t.Temporary()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
