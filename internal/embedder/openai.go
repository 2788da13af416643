package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultJinaBaseURL = "https://api.jina.ai/v1"
)

var openAIDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"jina-embeddings-v3":     1024,
}

// OpenAIProvider embeds text through an OpenAI compatible embeddings API.
// Jina is served by the same provider with a different base URL.
type OpenAIProvider struct {
	*client
	api *openai.Client
}

// NewOpenAIProvider creates an embedder for the OpenAI embeddings API
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	return newOpenAICompatible(ProviderOpenAI, cfg)
}

// NewJinaProvider creates an embedder for the Jina embeddings API
func NewJinaProvider(cfg Config) (*OpenAIProvider, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultJinaModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultJinaBaseURL
	}
	return newOpenAICompatible(ProviderJina, cfg)
}

func newOpenAICompatible(name string, cfg Config) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, name)
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.timeout()}

	p := &OpenAIProvider{api: openai.NewClientWithConfig(apiCfg)}
	p.client = newClient(name, cfg.Model, openAIDimensions[cfg.Model], cfg, p.embedAll)
	return p, nil
}

func (p *OpenAIProvider) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: texts,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 &&
			apiErr.HTTPStatusCode != http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %w", errRejected, err)
		}
		return nil, err
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i := range data {
		v := make([]float32, len(data[i].Embedding))
		for k, x := range data[i].Embedding {
			v[k] = float32(x)
		}
		vectors[i] = v
	}
	return vectors, nil
}
