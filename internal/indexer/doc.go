// Package indexer coordinates the end-to-end indexing pipeline for a repository.
//
// A run loads every recognized document, segments Python sources along
// top-level function boundaries, chunks oversized fragments, prefixes each
// fragment with its identity header and hands the result to the embedder and
// the store.
//
// # Basic Usage
//
//	ch, _ := chunker.New()
//	idx := indexer.New(store, emb, ch, indexer.WithWorkers(4))
//
//	stats, err := idx.IndexRepository(ctx, "/path/to/repo")
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("Stored %d fragments in %v\n", stats.FragmentsStored, stats.Duration)
//
// # Builds
//
// Every run is a full rebuild into a new storage build. The build becomes
// visible to queries only after all fragments and embeddings are written, so
// queries running during a rebuild keep seeing the previous index. Any embed
// or store error fails the run: the partial build is deleted and the error is
// returned wrapped in types.ErrIndexFailed.
//
// # Concurrency
//
// Embedding batches run on a bounded errgroup worker pool. Fragment ordinals
// are assigned from load order before any request is sent, so the stored
// order never depends on which batch finishes first. Writes happen
// sequentially, one transaction per batch.
//
// Only one run per Indexer may be active; a concurrent call returns
// types.ErrIndexingInProgress immediately.
package indexer
