package retriever

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/PR202111/GIT-PROJECT-reviewer/internal/embedder"
	"github.com/PR202111/GIT-PROJECT-reviewer/internal/storage"
	"github.com/PR202111/GIT-PROJECT-reviewer/pkg/types"
)

const (
	// DefaultK is the number of distinct results returned when the caller has no preference
	DefaultK = 10
	// OverFetchFactor is how many candidates are requested per wanted result
	OverFetchFactor = 3

	// DefaultCacheSize bounds the number of cached queries
	DefaultCacheSize = 1000
	// DefaultCacheTTL is how long a cached answer is served
	DefaultCacheTTL = 5 * time.Minute
)

// ErrEmptyQuery is returned for blank query text
var ErrEmptyQuery = errors.New("query text is empty")

// VectorStore is the part of the store the retriever reads from
type VectorStore interface {
	ActiveBuild(ctx context.Context) (*storage.Build, error)
	SearchVector(ctx context.Context, queryVector []float32, limit int) (*storage.SearchResult, error)
}

// cacheEntry represents cached results with expiration time
type cacheEntry struct {
	results   []types.Result
	expiresAt time.Time
}

// Retriever answers similarity queries with duplicate-free ranked results
type Retriever struct {
	store    VectorStore
	embedder embedder.Embedder

	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheTTL time.Duration
	cacheMu  sync.RWMutex
}

// Option configures a Retriever
type Option func(*Retriever)

// WithCacheTTL sets how long query results are cached. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Retriever) {
		r.cacheTTL = ttl
	}
}

// New creates a new Retriever
func New(store VectorStore, emb embedder.Embedder, opts ...Option) *Retriever {
	cache, err := lru.New[[32]byte, *cacheEntry](DefaultCacheSize)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	r := &Retriever{
		store:    store,
		embedder: emb,
		cache:    cache,
		cacheTTL: DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Query returns at most k distinct results for text, best match first.
//
// OverFetchFactor*k candidates are requested from the store and walked in
// rank order; a candidate whose whitespace-trimmed content was already seen
// is dropped. A short pool yields fewer than k results rather than an error.
func (r *Retriever) Query(ctx context.Context, text string, k int) ([]types.Result, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", types.ErrInvalidK, k)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}

	build, err := r.store.ActiveBuild(ctx)
	if errors.Is(err, storage.ErrNoActiveBuild) {
		return nil, types.ErrNoIndex
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrSearchFailed, err)
	}

	key := cacheKey(build.ID, text, k)
	if cached, ok := r.fromCache(key); ok {
		slog.Debug("query served from cache", "build", build.ID, "k", k)
		return cached, nil
	}

	emb, err := r.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", types.ErrSearchFailed, err)
	}

	res, err := r.store.SearchVector(ctx, emb.Vector, OverFetchFactor*k)
	if errors.Is(err, storage.ErrNoActiveBuild) {
		return nil, types.ErrNoIndex
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrSearchFailed, err)
	}

	results := Dedup(res.Hits, k)
	slog.Debug("query answered", "build", res.BuildID, "k", k,
		"candidates", len(res.Hits), "results", len(results))

	// A swap may have landed since the lookup; cache under the build searched.
	r.toCache(cacheKey(res.BuildID, text, k), results)
	return results, nil
}

// Dedup walks candidates in order and keeps the first k whose trimmed content
// has not been seen yet
func Dedup(candidates []storage.ScoredFragment, k int) []types.Result {
	seen := make(map[string]struct{}, len(candidates))
	results := make([]types.Result, 0, min(k, len(candidates)))

	for i := range candidates {
		if len(results) == k {
			break
		}
		c := &candidates[i]

		key := strings.TrimSpace(c.Content)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		results = append(results, toResult(c, len(results)+1))
	}
	return results
}

func toResult(c *storage.ScoredFragment, rank int) types.Result {
	function := types.NoFunction
	if c.FunctionName != nil {
		function = *c.FunctionName
	}
	return types.Result{
		Rank:         rank,
		SourcePath:   c.SourcePath,
		FileType:     c.FileType,
		FunctionName: function,
		ChunkIndex:   c.ChunkIndex,
		Score:        c.Score,
		Content:      c.Content,
	}
}

// fromCache returns a copy of a live cache entry
func (r *Retriever) fromCache(key [32]byte) ([]types.Result, bool) {
	if r.cacheTTL <= 0 {
		return nil, false
	}

	r.cacheMu.RLock()
	entry, found := r.cache.Get(key)
	if !found {
		r.cacheMu.RUnlock()
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		r.cacheMu.RUnlock()

		r.cacheMu.Lock()
		r.cache.Remove(key)
		r.cacheMu.Unlock()
		return nil, false
	}
	results := append([]types.Result(nil), entry.results...)
	r.cacheMu.RUnlock()

	return results, true
}

func (r *Retriever) toCache(key [32]byte, results []types.Result) {
	if r.cacheTTL <= 0 {
		return
	}
	entry := &cacheEntry{
		results:   append([]types.Result(nil), results...),
		expiresAt: time.Now().Add(r.cacheTTL),
	}

	r.cacheMu.Lock()
	r.cache.Add(key, entry)
	r.cacheMu.Unlock()
}

// InvalidateCache drops every cached answer
func (r *Retriever) InvalidateCache() {
	r.cacheMu.Lock()
	r.cache.Purge()
	r.cacheMu.Unlock()
}

// cacheKey scopes a query to a build, so a new build never serves stale answers
func cacheKey(buildID, text string, k int) [32]byte {
	var data strings.Builder
	data.WriteString(buildID)
	data.WriteString("|")
	data.WriteString(strconv.Itoa(k))
	data.WriteString("|")
	data.WriteString(text)
	return sha256.Sum256([]byte(data.String()))
}
