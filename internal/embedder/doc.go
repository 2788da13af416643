// Package embedder turns fragment text into vectors.
//
// Providers:
//   - ollama: a local Ollama server (default, model mxbai-embed-large)
//   - openai: the OpenAI embeddings API through go-openai
//   - jina: the Jina embeddings API, which speaks the OpenAI protocol
//   - local: deterministic hashed bag-of-words vectors, no network
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: "ollama"})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "[File: app.py] [Function: main]\ndef main(): ...",
//	})
//
// Remote providers share one client that caches vectors in an LRU keyed by
// model and text, throttles calls with a token bucket when RequestsPerSecond
// is set, and retries transient failures with exponential backoff. Client
// errors (HTTP 4xx other than 429) are not retried.
//
// The vector dimension of a model the package does not know is learned from
// the first response; later vectors of another size fail with
// ErrDimensionMismatch.
package embedder
