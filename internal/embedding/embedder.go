/*
Package embedding maps free text to fixed-length vectors.

Lookup order for a text:

 1. in-process cache (ristretto, bounded, TTL)
 2. shared Redis tier, when configured
 3. the external provider, when configured
 4. the deterministic lexical embedding
 5. a text-seeded random vector, only if the lexical path breaks

Only results of the primary path are cached: provider vectors when a
provider is configured, lexical vectors otherwise. A provider outage
therefore never pins fallback vectors in the cache.

Embed never fails and always returns a vector of the configured dimension.
*/
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/khanglvm/event-hub/internal/metrics"
)

// Options configures an Embedder.
type Options struct {
	Dimension int

	// Provider is optional. Nil makes the lexical embedding primary.
	Provider Provider

	// Cache is required.
	Cache *Cache

	// Redis is optional.
	Redis *RedisCache

	// BatchWorkers bounds EmbedBatch fan-out.
	BatchWorkers int
}

// Embedder is safe for concurrent use.
type Embedder struct {
	dim      int
	provider Provider
	cache    *Cache
	redis    *RedisCache
	workers  int
	log      zerolog.Logger
}

// New creates an Embedder.
func New(opts Options, log zerolog.Logger) (*Embedder, error) {
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", opts.Dimension)
	}
	if opts.Cache == nil {
		return nil, errors.New("embedding cache is required")
	}
	if opts.BatchWorkers <= 0 {
		opts.BatchWorkers = 1
	}

	return &Embedder{
		dim:      opts.Dimension,
		provider: opts.Provider,
		cache:    opts.Cache,
		redis:    opts.Redis,
		workers:  opts.BatchWorkers,
		log:      log.With().Str("component", "embedding").Logger(),
	}, nil
}

// Dimension returns the vector length D.
func (e *Embedder) Dimension() int {
	return e.dim
}

// Cache exposes the in-process cache.
func (e *Embedder) Cache() *Cache {
	return e.cache
}

// Embed returns the vector for text. Callers must not mutate the result.
func (e *Embedder) Embed(ctx context.Context, text string) []float32 {
	key := CacheKey(text)

	if vec, ok := e.cache.Get(key); ok && len(vec) == e.dim {
		metrics.EmbeddingRequests.WithLabelValues(metrics.SourceCache).Inc()
		return vec
	}

	if e.redis != nil {
		vec, ok, err := e.redis.Get(ctx, key)
		if err != nil {
			e.log.Warn().Err(err).Msg("redis embedding lookup failed")
		} else if ok && len(vec) == e.dim {
			metrics.EmbeddingRequests.WithLabelValues(metrics.SourceRedis).Inc()
			e.cache.Set(key, vec)
			return vec
		}
	}

	if e.provider != nil {
		vec, err := e.fromProvider(ctx, text)
		if err == nil {
			metrics.EmbeddingRequests.WithLabelValues(metrics.SourceProvider).Inc()
			e.store(ctx, key, vec)
			return vec
		}
		e.log.Warn().Err(err).Str("provider", e.provider.Name()).Msg("provider failed, using lexical embedding")
	}

	vec, err := e.lexical(text)
	if err != nil {
		e.log.Error().Err(err).Msg("lexical embedding failed, using seeded random vector")
		metrics.EmbeddingRequests.WithLabelValues(metrics.SourceSeeded).Inc()
		return SeededEmbedding(text, e.dim)
	}

	metrics.EmbeddingRequests.WithLabelValues(metrics.SourceLexical).Inc()
	if e.provider == nil {
		e.store(ctx, key, vec)
	}
	return vec
}

// EmbedBatch embeds texts with bounded parallelism. Output order matches input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, text := range texts {
		g.Go(func() error {
			out[i] = e.Embed(ctx, text)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (e *Embedder) fromProvider(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) != e.dim {
		return nil, fmt.Errorf("%w: provider %s", ErrDimensionMismatch, e.provider.Name())
	}
	if !finite(vecs[0]) {
		return nil, fmt.Errorf("%w: provider %s returned non-finite values", ErrProviderUnavailable, e.provider.Name())
	}
	return vecs[0], nil
}

// lexical runs LexicalEmbedding, converting a panic or a bad vector into an error.
func (e *Embedder) lexical(text string) (vec []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			vec, err = nil, fmt.Errorf("lexical embedding panicked: %v", r)
		}
	}()

	vec = LexicalEmbedding(text, e.dim)
	if len(vec) != e.dim || !finite(vec) {
		return nil, errors.New("lexical embedding produced an invalid vector")
	}
	return vec, nil
}

func (e *Embedder) store(ctx context.Context, key string, vec []float32) {
	e.cache.Set(key, vec)
	if e.redis != nil {
		if err := e.redis.Set(ctx, key, vec); err != nil {
			e.log.Warn().Err(err).Msg("redis embedding write failed")
		}
	}
}

// Close releases the caches.
func (e *Embedder) Close() error {
	e.cache.Close()
	if e.redis != nil {
		return e.redis.Close()
	}
	return nil
}
