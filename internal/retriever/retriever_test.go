package retriever

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PR202111/GIT-PROJECT-reviewer/internal/embedder"
	"github.com/PR202111/GIT-PROJECT-reviewer/internal/storage"
	"github.com/PR202111/GIT-PROJECT-reviewer/pkg/types"
)

// fakeStore returns a fixed candidate pool in the given order
type fakeStore struct {
	build     *storage.Build
	buildErr  error
	pool      []storage.ScoredFragment
	searchErr error

	// swapOnSearch becomes the active build right before the next search reads
	swapOnSearch *storage.Build

	mu         sync.Mutex
	lastLimit  int
	searchCall int
}

func (f *fakeStore) ActiveBuild(context.Context) (*storage.Build, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	return f.active(), nil
}

func (f *fakeStore) active() *storage.Build {
	if f.build == nil {
		return &storage.Build{ID: "build-1"}
	}
	return f.build
}

func (f *fakeStore) SearchVector(_ context.Context, _ []float32, limit int) (*storage.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	f.searchCall++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if f.swapOnSearch != nil {
		f.build = f.swapOnSearch
		f.swapOnSearch = nil
	}
	if limit > len(f.pool) {
		limit = len(f.pool)
	}
	return &storage.SearchResult{BuildID: f.active().ID, Hits: f.pool[:limit]}, nil
}

func candidate(content, path string, fn *string, score float64) storage.ScoredFragment {
	return storage.ScoredFragment{
		Fragment: storage.Fragment{
			SourcePath:   path,
			FileName:     path,
			FileType:     "python",
			FunctionName: fn,
			Content:      content,
		},
		Score: score,
	}
}

func strPtr(s string) *string { return &s }

func newTestRetriever(store VectorStore, opts ...Option) *Retriever {
	return New(store, embedder.NewLocalProvider(nil), opts...)
}

func TestQuery_DedupKeepsFirstOccurrence(t *testing.T) {
	store := &fakeStore{pool: []storage.ScoredFragment{
		candidate("A", "a.py", strPtr("f"), 0.9),
		candidate("B", "b.py", nil, 0.8),
		candidate("  A\n", "a_copy.py", strPtr("f"), 0.7),
		candidate("C", "c.py", nil, 0.6),
	}}
	r := newTestRetriever(store)

	results, err := r.Query(context.Background(), "find a", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].Content)
	assert.Equal(t, "B", results[1].Content)
	assert.Equal(t, 6, store.lastLimit, "over-fetches 3*k")
}

func TestQuery_ShortPoolIsNotAnError(t *testing.T) {
	store := &fakeStore{pool: []storage.ScoredFragment{
		candidate("A", "a.py", nil, 0.9),
		candidate("A", "a.py", nil, 0.9),
		candidate("B", "b.py", nil, 0.8),
	}}
	r := newTestRetriever(store)

	results, err := r.Query(context.Background(), "anything", 5)
	require.NoError(t, err)
	require.Len(t, results, 2, "never padded")
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 2, results[1].Rank)
}

func TestQuery_ResultFields(t *testing.T) {
	frag := candidate("[File: a.py] [Function: f]\ndef f(): pass", "/repo/a.py", strPtr("f"), 0.75)
	frag.ChunkIndex = 2
	store := &fakeStore{pool: []storage.ScoredFragment{frag, candidate("plain", "/repo/n.txt", nil, 0.5)}}
	r := newTestRetriever(store)

	results, err := r.Query(context.Background(), "f", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, types.Result{
		Rank:         1,
		SourcePath:   "/repo/a.py",
		FileType:     "python",
		FunctionName: "f",
		ChunkIndex:   2,
		Score:        0.75,
		Content:      "[File: a.py] [Function: f]\ndef f(): pass",
	}, results[0])
	assert.Equal(t, types.NoFunction, results[1].FunctionName)
}

func TestQuery_InvalidInput(t *testing.T) {
	r := newTestRetriever(&fakeStore{})

	_, err := r.Query(context.Background(), "x", 0)
	assert.ErrorIs(t, err, types.ErrInvalidK)

	_, err = r.Query(context.Background(), "   ", 3)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestQuery_NoIndex(t *testing.T) {
	r := newTestRetriever(&fakeStore{buildErr: storage.ErrNoActiveBuild})

	_, err := r.Query(context.Background(), "x", 3)
	assert.ErrorIs(t, err, types.ErrNoIndex)
}

func TestQuery_EngineFailurePropagates(t *testing.T) {
	cause := errors.New("disk I/O error")
	store := &fakeStore{searchErr: cause}
	r := newTestRetriever(store)

	results, err := r.Query(context.Background(), "x", 3)
	assert.Nil(t, results)
	assert.ErrorIs(t, err, types.ErrSearchFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, store.searchCall, "no retry")
}

func TestQuery_CachedPerBuild(t *testing.T) {
	store := &fakeStore{pool: []storage.ScoredFragment{candidate("A", "a.py", nil, 1)}}
	r := newTestRetriever(store)
	ctx := context.Background()

	_, err := r.Query(ctx, "x", 1)
	require.NoError(t, err)
	_, err = r.Query(ctx, "x", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, store.searchCall)

	store.build = &storage.Build{ID: "build-2"}
	_, err = r.Query(ctx, "x", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, store.searchCall, "new build misses the cache")

	r.InvalidateCache()
	_, err = r.Query(ctx, "x", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, store.searchCall)
}

func TestQuery_CachesUnderSearchedBuild(t *testing.T) {
	store := &fakeStore{
		pool:         []storage.ScoredFragment{candidate("A", "a.py", nil, 1)},
		swapOnSearch: &storage.Build{ID: "build-2"},
	}
	r := newTestRetriever(store)
	ctx := context.Background()

	// build-1 is active at lookup time, build-2 by the time the store is searched
	_, err := r.Query(ctx, "x", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, store.searchCall)

	_, err = r.Query(ctx, "x", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, store.searchCall, "answer is cached under the build it was read from")

	store.mu.Lock()
	store.build = &storage.Build{ID: "build-1"}
	store.mu.Unlock()
	_, err = r.Query(ctx, "x", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, store.searchCall, "nothing was cached under the stale build")
}

func TestQuery_NoIndexAtSearchTime(t *testing.T) {
	store := &fakeStore{searchErr: storage.ErrNoActiveBuild}
	r := newTestRetriever(store)

	_, err := r.Query(context.Background(), "x", 1)
	assert.ErrorIs(t, err, types.ErrNoIndex)
}

func TestQuery_CacheDisabled(t *testing.T) {
	store := &fakeStore{pool: []storage.ScoredFragment{candidate("A", "a.py", nil, 1)}}
	r := newTestRetriever(store, WithCacheTTL(0))

	for i := 0; i < 3; i++ {
		_, err := r.Query(context.Background(), "x", 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, store.searchCall)
}

func TestQuery_CacheExpires(t *testing.T) {
	store := &fakeStore{pool: []storage.ScoredFragment{candidate("A", "a.py", nil, 1)}}
	r := newTestRetriever(store, WithCacheTTL(time.Millisecond))

	_, err := r.Query(context.Background(), "x", 1)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = r.Query(context.Background(), "x", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, store.searchCall)
}

func TestQuery_AgainstSQLiteStore(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	build := &storage.Build{RootPath: "/repo"}
	require.NoError(t, store.CreateBuild(ctx, build))
	texts := []string{
		"[File: db.py] [Function: connect]\ndef connect(url): return open_database(url)",
		"[File: db.py] [Function: connect]\ndef connect(url): return open_database(url)",
		"[File: ui.py] [Function: render]\ndef render(page): draw(page)",
	}
	for i, text := range texts {
		f := &storage.Fragment{BuildID: build.ID, Ordinal: i, SourcePath: "/repo/x.py", FileName: "x.py",
			FileType: "python", Content: text}
		require.NoError(t, store.InsertFragment(ctx, f))
		require.NoError(t, store.InsertEmbedding(ctx, &storage.Embedding{
			FragmentID: f.ID, Vector: embedder.HashingVector(text, embedder.LocalDimension)}))
	}
	require.NoError(t, store.FinishBuild(ctx, build.ID))

	r := newTestRetriever(store)
	results, err := r.Query(ctx, "connect database url", 3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, results[0].Content, "def connect")
	assert.Contains(t, results[1].Content, "def render")
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestDedup_StopsAtK(t *testing.T) {
	pool := []storage.ScoredFragment{
		candidate("A", "a", nil, 1), candidate("B", "b", nil, 1), candidate("C", "c", nil, 1),
	}
	assert.Len(t, Dedup(pool, 2), 2)
	assert.Len(t, Dedup(pool, 10), 3)
	assert.Empty(t, Dedup(nil, 3))
}
