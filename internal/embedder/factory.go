package embedder

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Environment variables read by NewFromEnv
const (
	EnvProvider     = "REVIEWER_EMBEDDING_PROVIDER"
	EnvModel        = "REVIEWER_EMBEDDING_MODEL"
	EnvOllamaHost   = "OLLAMA_HOST"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvOpenAIBase   = "OPENAI_BASE_URL"
	EnvJinaAPIKey   = "JINA_API_KEY"
)

// DefaultTimeout bounds a single provider HTTP request
const DefaultTimeout = 30 * time.Second

// Config holds embedder configuration
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string

	// CacheSize is the number of cached embeddings. Zero selects the
	// default, a negative value disables caching.
	CacheSize int

	// RequestsPerSecond throttles provider calls. Zero means unlimited.
	RequestsPerSecond float64

	Timeout time.Duration
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOllama:
		return NewOllamaProvider(cfg)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg)
	case ProviderJina:
		return NewJinaProvider(cfg)
	case ProviderLocal:
		var cache *Cache
		if cfg.CacheSize >= 0 {
			cache = NewCache(cfg.CacheSize)
		}
		return NewLocalProvider(cache), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

// NewFromEnv creates an embedder from environment variables.
// Priority:
// 1. REVIEWER_EMBEDDING_PROVIDER (ollama, openai, jina, local)
// 2. OPENAI_API_KEY or JINA_API_KEY present
// 3. Ollama on OLLAMA_HOST or localhost
func NewFromEnv() (Embedder, error) {
	return New(ConfigFromEnv(Config{}))
}

// ConfigFromEnv fills empty fields of base from the environment.
func ConfigFromEnv(base Config) Config {
	if base.Provider == "" {
		base.Provider = DetectProvider()
	}
	if base.Model == "" {
		base.Model = os.Getenv(EnvModel)
	}

	switch base.Provider {
	case ProviderOllama:
		if base.BaseURL == "" {
			base.BaseURL = ollamaHost()
		}
	case ProviderOpenAI:
		if base.APIKey == "" {
			base.APIKey = os.Getenv(EnvOpenAIAPIKey)
		}
		if base.BaseURL == "" {
			base.BaseURL = os.Getenv(EnvOpenAIBase)
		}
	case ProviderJina:
		if base.APIKey == "" {
			base.APIKey = os.Getenv(EnvJinaAPIKey)
		}
	}
	return base
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return strings.ToLower(provider)
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	return ProviderOllama
}

// ollamaHost reads OLLAMA_HOST, which Ollama itself accepts without a scheme.
func ollamaHost() string {
	host := os.Getenv(EnvOllamaHost)
	if host == "" {
		return ""
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host
}
