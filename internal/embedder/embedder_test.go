package embedder

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestComputeHash(t *testing.T) {
	a := ComputeHash("model-a", "hello world")
	if a != ComputeHash("model-a", "hello world") {
		t.Errorf("ComputeHash() not consistent")
	}
	if a == ComputeHash("model-b", "hello world") {
		t.Errorf("ComputeHash() should differ between models")
	}
	if len(a) != 64 {
		t.Errorf("ComputeHash() length = %d, want 64", len(a))
	}
}

func TestValidateBatchRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     BatchEmbeddingRequest
		wantErr error
	}{
		{name: "valid", req: BatchEmbeddingRequest{Texts: []string{"a", "b"}}},
		{name: "no texts", req: BatchEmbeddingRequest{}, wantErr: ErrInvalidInput},
		{name: "empty text", req: BatchEmbeddingRequest{Texts: []string{"a", ""}}, wantErr: ErrInvalidInput},
		{name: "too large", req: BatchEmbeddingRequest{Texts: make([]string, MaxBatchSize+1)}, wantErr: ErrBatchTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchRequest(tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateBatchRequest() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCache_GetReturnsCopy(t *testing.T) {
	cache := NewCache(2)
	src := []float32{1, 2, 3}
	cache.Set("k", src)
	src[1] = 99

	got, ok := cache.Get("k")
	if !ok {
		t.Fatal("expected cache hit")
	}
	got[0] = 42

	again, _ := cache.Get("k")
	if again[0] != 1 || again[1] != 2 {
		t.Errorf("cached vector was mutated: %v", again)
	}
}

func TestCache_EvictionAndStats(t *testing.T) {
	cache := NewCache(2)
	cache.Set("a", []float32{1})
	cache.Set("b", []float32{2})
	cache.Set("c", []float32{3})

	if _, ok := cache.Get("a"); ok {
		t.Errorf("oldest entry should have been evicted")
	}
	if _, ok := cache.Get("c"); !ok {
		t.Errorf("newest entry missing")
	}

	stats := cache.Stats()
	if stats.Size != 2 || stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Stats() = %+v, want size 2, 1 hit, 1 miss", stats)
	}

	cache.Clear()
	if cache.Stats().Size != 0 {
		t.Errorf("Size after Clear = %d", cache.Stats().Size)
	}
}

func TestRetryConfig_Delay(t *testing.T) {
	rc := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 350 * time.Millisecond, Multiplier: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 350 * time.Millisecond, 350 * time.Millisecond}
	for i, w := range want {
		if got := rc.delay(i + 1); got != w {
			t.Errorf("delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestClient_CachesVectors(t *testing.T) {
	var calls atomic.Int32
	c := newClient("fake", "m", 0, Config{}, func(_ context.Context, texts []string) ([][]float32, error) {
		calls.Add(1)
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{float32(i + 1), 0}
		}
		return out, nil
	})

	ctx := context.Background()
	if _, err := c.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"x", "y"}}); err != nil {
		t.Fatalf("GenerateBatch() error = %v", err)
	}
	resp, err := c.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"y", "x"}})
	if err != nil {
		t.Fatalf("GenerateBatch() error = %v", err)
	}

	if calls.Load() != 1 {
		t.Errorf("provider called %d times, want 1", calls.Load())
	}
	if resp.Embeddings[0].Vector[0] != 2 || resp.Embeddings[1].Vector[0] != 1 {
		t.Errorf("cached vectors returned in wrong order: %v %v", resp.Embeddings[0].Vector, resp.Embeddings[1].Vector)
	}
	if c.Dimension() != 2 {
		t.Errorf("Dimension() = %d, want learned 2", c.Dimension())
	}
}

func TestClient_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newClient("fake", "m", 0, Config{CacheSize: -1}, func(_ context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("connection reset")
		}
		return [][]float32{{1}}, nil
	})
	c.retry = fastRetry()

	if _, err := c.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"}); err != nil {
		t.Fatalf("GenerateEmbedding() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("provider called %d times, want 3", calls.Load())
	}
}

func TestClient_DoesNotRetryRejectedRequests(t *testing.T) {
	var calls atomic.Int32
	c := newClient("fake", "m", 0, Config{}, func(_ context.Context, texts []string) ([][]float32, error) {
		calls.Add(1)
		return nil, errRejected
	})
	c.retry = fastRetry()

	_, err := c.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
	if !errors.Is(err, ErrProviderFailed) {
		t.Errorf("error = %v, want ErrProviderFailed", err)
	}
	if calls.Load() != 1 {
		t.Errorf("provider called %d times, want 1", calls.Load())
	}
}

func TestClient_DimensionMismatch(t *testing.T) {
	c := newClient("fake", "m", 3, Config{}, func(_ context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 2}}, nil
	})

	_, err := c.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("error = %v, want ErrDimensionMismatch", err)
	}
}

func TestClient_BatchTooLarge(t *testing.T) {
	c := newClient("fake", "m", 1, Config{}, nil)
	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = "t"
	}

	_, err := c.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: texts})
	if !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("error = %v, want ErrBatchTooLarge", err)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := retryWithBackoff(ctx, "fake", fastRetry(), func() (int, error) {
		return 0, errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
