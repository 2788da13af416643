package embedder

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Provider configuration
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderJina   = "jina"
	ProviderLocal  = "local"

	DefaultCacheSize = 10000
	DefaultBatchSize = 32
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// embedFunc performs one provider call for a batch of texts and returns one
// vector per text in the same order.
type embedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// client holds what every remote provider shares: the cache, the request
// throttle, retries and dimension bookkeeping. Providers embed it and supply
// the embedFunc.
type client struct {
	provider  string
	model     string
	dimension atomic.Int64
	cache     *Cache
	limiter   *rate.Limiter
	retry     RetryConfig
	embed     embedFunc
}

func newClient(provider, model string, dimension int, cfg Config, embed embedFunc) *client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	var cache *Cache
	if cfg.CacheSize >= 0 {
		cache = NewCache(cfg.CacheSize)
	}

	c := &client{
		provider: provider,
		model:    model,
		cache:    cache,
		limiter:  rate.NewLimiter(limit, 1),
		retry:    DefaultRetryConfig(),
		embed:    embed,
	}
	c.dimension.Store(int64(dimension))
	return c
}

func (c *client) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	resp, err := c.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (c *client) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	var pending []string
	var slots []int
	for i, text := range req.Texts {
		key := ComputeHash(c.model, text)
		if c.cache != nil {
			if vec, ok := c.cache.Get(key); ok {
				embeddings[i] = c.embedding(vec, key)
				continue
			}
		}
		pending = append(pending, text)
		slots = append(slots, i)
	}

	if len(pending) > 0 {
		vectors, err := retryWithBackoff(ctx, c.provider, c.retry, func() ([][]float32, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return c.embed(ctx, pending)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrProviderFailed, c.provider, err)
		}
		if len(vectors) != len(pending) {
			return nil, fmt.Errorf("%w: %s returned %d vectors for %d texts",
				ErrProviderFailed, c.provider, len(vectors), len(pending))
		}

		for j, vec := range vectors {
			if err := c.checkDimension(len(vec)); err != nil {
				return nil, err
			}
			key := ComputeHash(c.model, pending[j])
			if c.cache != nil {
				c.cache.Set(key, vec)
			}
			embeddings[slots[j]] = c.embedding(vec, key)
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   c.provider,
		Model:      c.model,
	}, nil
}

func (c *client) embedding(vec []float32, key string) *Embedding {
	return &Embedding{
		Vector:    vec,
		Dimension: len(vec),
		Provider:  c.provider,
		Model:     c.model,
		Hash:      key,
	}
}

// checkDimension learns the dimension from the first vector when the model's
// size is not known up front and rejects vectors of any other size.
func (c *client) checkDimension(n int) error {
	if n == 0 {
		return fmt.Errorf("%w: %s returned an empty vector", ErrProviderFailed, c.provider)
	}
	if c.dimension.CompareAndSwap(0, int64(n)) {
		return nil
	}
	if want := c.dimension.Load(); want != int64(n) {
		return fmt.Errorf("%w: %s model %s returned %d, expected %d",
			ErrDimensionMismatch, c.provider, c.model, n, want)
	}
	return nil
}

func (c *client) Dimension() int {
	return int(c.dimension.Load())
}

func (c *client) Provider() string {
	return c.provider
}

func (c *client) Model() string {
	return c.model
}

func (c *client) Close() error {
	return nil
}
