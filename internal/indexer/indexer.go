package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PR202111/GIT-PROJECT-reviewer/internal/chunker"
	"github.com/PR202111/GIT-PROJECT-reviewer/internal/embedder"
	"github.com/PR202111/GIT-PROJECT-reviewer/internal/loader"
	"github.com/PR202111/GIT-PROJECT-reviewer/internal/segmenter"
	"github.com/PR202111/GIT-PROJECT-reviewer/internal/storage"
	"github.com/PR202111/GIT-PROJECT-reviewer/pkg/types"
)

const (
	// DefaultBatchSize is the number of fragments per embedding request and per write transaction
	DefaultBatchSize = 32
)

// Indexer coordinates the indexing pipeline: load -> segment -> chunk -> embed -> store
type Indexer struct {
	loader    *loader.Loader
	segmenter *segmenter.Segmenter
	chunker   *chunker.Chunker
	embedder  embedder.Embedder
	storage   storage.Storage
	tokens    func(string) int

	lock IndexLock

	// Worker pool configuration
	workers   int
	batchSize int
}

// Option configures an Indexer
type Option func(*Indexer)

// WithWorkers sets the number of concurrent embedding requests
func WithWorkers(n int) Option {
	return func(idx *Indexer) {
		if n > 0 {
			idx.workers = n
		}
	}
}

// WithBatchSize sets the number of fragments per embedding batch
func WithBatchSize(n int) Option {
	return func(idx *Indexer) {
		if n > 0 {
			idx.batchSize = min(n, embedder.MaxBatchSize)
		}
	}
}

// WithLoader replaces the default repository loader
func WithLoader(l *loader.Loader) Option {
	return func(idx *Indexer) {
		idx.loader = l
	}
}

// WithTokenCounter replaces the tiktoken based token counter
func WithTokenCounter(count func(string) int) Option {
	return func(idx *Indexer) {
		if count != nil {
			idx.tokens = count
		}
	}
}

// Statistics contains statistics about one index build
type Statistics struct {
	BuildID         string        `json:"build_id"`
	RootPath        string        `json:"root_path"`
	Documents       int           `json:"documents"`
	CodeDocuments   int           `json:"code_documents"`
	ParseFallbacks  int           `json:"parse_fallbacks"`
	Segments        int           `json:"segments"`
	FragmentsStored int           `json:"fragments_stored"`
	SplitFragments  int           `json:"split_fragments"`
	Tokens          int           `json:"tokens"`
	Duration        time.Duration `json:"duration_ns"`
}

// New creates a new Indexer. The chunker decides fragment sizes; the embedder
// and storage receive every fragment of a build.
func New(store storage.Storage, emb embedder.Embedder, ch *chunker.Chunker, opts ...Option) *Indexer {
	idx := &Indexer{
		loader:    loader.New(),
		segmenter: segmenter.New(),
		chunker:   ch,
		embedder:  emb,
		storage:   store,
		tokens:    NewTokenCounter().Count,
		workers:   runtime.NumCPU(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexRepository builds a fresh index of rootPath. The new build only
// replaces the active one once every fragment is embedded and stored; on any
// failure the partial build is discarded and the previous index keeps serving.
func (idx *Indexer) IndexRepository(ctx context.Context, rootPath string) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, types.ErrIndexingInProgress
	}
	defer idx.lock.Release()

	start := time.Now()
	stats := &Statistics{RootPath: rootPath}

	docs, err := idx.loader.Load(ctx, rootPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrIndexFailed, err)
	}
	stats.Documents = len(docs)

	fragments := idx.Fragments(ctx, docs, stats)

	build := &storage.Build{
		RootPath:  rootPath,
		Provider:  idx.embedder.Provider(),
		Model:     idx.embedder.Model(),
		Dimension: idx.embedder.Dimension(),
	}
	if err := idx.storage.CreateBuild(ctx, build); err != nil {
		if errors.Is(err, storage.ErrBuildInProgress) {
			// another process writes to the same database
			return nil, fmt.Errorf("%w: %w", types.ErrIndexingInProgress, err)
		}
		return nil, fmt.Errorf("%w: %w", types.ErrIndexFailed, err)
	}
	stats.BuildID = build.ID

	slog.Info("index build started", "build", build.ID, "path", rootPath,
		"documents", len(docs), "fragments", len(fragments))

	if err := idx.buildIndex(ctx, build.ID, fragments, stats); err != nil {
		// The caller's context may be what failed the run; cleanup still has to happen.
		if failErr := idx.storage.FailBuild(context.WithoutCancel(ctx), build.ID, err); failErr != nil {
			slog.Error("failed to discard partial build", "build", build.ID, "error", failErr)
		}
		slog.Warn("index build failed", "build", build.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", types.ErrIndexFailed, err)
	}

	stats.Duration = time.Since(start)
	slog.Info("index build finished", "build", build.ID, "fragments", stats.FragmentsStored,
		"tokens", stats.Tokens, "duration", stats.Duration)

	return stats, nil
}

// Fragments runs segmentation and chunking over the loaded documents and
// returns the fragments in the order they will be stored. stats may be nil.
func (idx *Indexer) Fragments(ctx context.Context, docs []types.RawDocument, stats *Statistics) []types.Fragment {
	if stats == nil {
		stats = &Statistics{}
	}

	var out []types.Fragment
	for _, doc := range docs {
		segments := []types.Fragment{doc.Fragment()}
		if doc.Type.IsCode() {
			stats.CodeDocuments++
			var parsed bool
			segments, parsed = idx.segmenter.Segment(ctx, doc)
			if !parsed {
				stats.ParseFallbacks++
			}
		}
		stats.Segments += len(segments)

		for _, seg := range segments {
			chunks := idx.chunker.Split(seg)
			if len(chunks) > 1 {
				stats.SplitFragments++
			}
			out = append(out, chunks...)
		}
	}
	return out
}

// buildIndex embeds and stores all fragments into the given build, then makes
// it the active build
func (idx *Indexer) buildIndex(ctx context.Context, buildID string, fragments []types.Fragment, stats *Statistics) error {
	texts := make([]string, len(fragments))
	for i := range fragments {
		texts[i] = fragments[i].IndexedContent()
	}

	vectors, err := idx.embedAll(ctx, texts)
	if err != nil {
		return err
	}

	for i := 0; i < len(fragments); i += idx.batchSize {
		end := min(i+idx.batchSize, len(fragments))
		tokens, err := idx.storeBatch(ctx, buildID, i, fragments[i:end], texts[i:end], vectors[i:end])
		if err != nil {
			return err
		}
		stats.Tokens += tokens
		stats.FragmentsStored += end - i
	}

	if err := idx.storage.FinishBuild(ctx, buildID); err != nil {
		return fmt.Errorf("failed to activate build: %w", err)
	}
	return nil
}

// embedAll embeds texts in batches using a bounded worker pool. Each vector
// lands at the index of its text regardless of completion order.
func (idx *Indexer) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var done atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	for i := 0; i < len(texts); i += idx.batchSize {
		start, end := i, min(i+idx.batchSize, len(texts))

		g.Go(func() error {
			resp, err := idx.embedder.GenerateBatch(gctx, embedder.BatchEmbeddingRequest{Texts: texts[start:end]})
			if err != nil {
				return fmt.Errorf("failed to embed fragments %d-%d: %w", start, end-1, err)
			}
			if len(resp.Embeddings) != end-start {
				return fmt.Errorf("embedder returned %d vectors for %d fragments", len(resp.Embeddings), end-start)
			}
			for j, emb := range resp.Embeddings {
				if emb == nil || len(emb.Vector) == 0 {
					return fmt.Errorf("empty embedding for fragment %d", start+j)
				}
				vectors[start+j] = emb.Vector
			}
			slog.Debug("embedded batch", "from", start, "to", end, "done", done.Add(int32(end-start)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := checkDimensions(vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

// storeBatch writes a batch of fragments with their embeddings in one transaction
func (idx *Indexer) storeBatch(ctx context.Context, buildID string, offset int,
	fragments []types.Fragment, texts []string, vectors [][]float32) (int, error) {

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tokens := 0
	for i := range fragments {
		frag := &fragments[i]
		if err := frag.Validate(); err != nil {
			return 0, fmt.Errorf("invalid fragment %d: %w", offset+i, err)
		}
		record := &storage.Fragment{
			BuildID:      buildID,
			Ordinal:      offset + i,
			SourcePath:   frag.SourcePath,
			FileName:     frag.FileName,
			FileType:     string(frag.FileType),
			FunctionName: frag.FunctionName,
			Content:      texts[i],
			ContentHash:  frag.ContentHash(),
			TokenCount:   idx.tokens(texts[i]),
		}
		if frag.ChunkIndex != nil {
			record.ChunkIndex = *frag.ChunkIndex
		}

		if err := tx.InsertFragment(ctx, record); err != nil {
			return 0, fmt.Errorf("failed to store fragment %s: %w", frag.SourcePath, err)
		}
		if err := tx.InsertEmbedding(ctx, &storage.Embedding{FragmentID: record.ID, Vector: vectors[i]}); err != nil {
			return 0, fmt.Errorf("failed to store embedding for %s: %w", frag.SourcePath, err)
		}
		tokens += record.TokenCount
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return tokens, nil
}

// checkDimensions verifies that all vectors of a build share one dimension
func checkDimensions(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	want := len(vectors[0])
	for i, v := range vectors {
		if len(v) != want {
			return fmt.Errorf("%w: fragment %d has %d, expected %d",
				embedder.ErrDimensionMismatch, i, len(v), want)
		}
	}
	return nil
}
