package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/PR202111/GIT-PROJECT-reviewer/internal/agent"
	"github.com/PR202111/GIT-PROJECT-reviewer/internal/embedder"
)

// Environment overrides, applied after the config file
const (
	EnvRepoPath  = "REVIEWER_REPO_PATH"
	EnvDBPath    = "REVIEWER_DB_PATH"
	EnvLogLevel  = "REVIEWER_LOG_LEVEL"
	EnvChatModel = "REVIEWER_CHAT_MODEL"
)

// Defaults
const (
	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 200
	DefaultK              = 10
	DefaultProvider       = embedder.ProviderOllama
	DefaultEmbeddingModel = "mxbai-embed-large"
	DefaultDebounce       = 1500 * time.Millisecond
)

// Token counters selectable with index.tokenizer
const (
	TokenizerTiktoken = "tiktoken"
	TokenizerEstimate = "estimate"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// ChunkerConfig configures the recursive text splitter.
type ChunkerConfig struct {
	Size    int `yaml:"size" toml:"size"`
	Overlap int `yaml:"overlap" toml:"overlap"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider" toml:"provider"`
	Model             string  `yaml:"model" toml:"model"`
	BaseURL           string  `yaml:"base_url,omitempty" toml:"base_url,omitempty"`
	APIKey            string  `yaml:"api_key,omitempty" toml:"api_key,omitempty"`
	CacheSize         int     `yaml:"cache_size,omitempty" toml:"cache_size,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty" toml:"requests_per_second,omitempty"`
	TimeoutSecs       int     `yaml:"timeout_secs,omitempty" toml:"timeout_secs,omitempty"`
}

// IndexConfig tunes index builds.
type IndexConfig struct {
	Workers   int    `yaml:"workers,omitempty" toml:"workers,omitempty"`
	BatchSize int    `yaml:"batch_size,omitempty" toml:"batch_size,omitempty"`
	Tokenizer string `yaml:"tokenizer" toml:"tokenizer"`
}

// RetrievalConfig tunes queries.
type RetrievalConfig struct {
	K            int `yaml:"k" toml:"k"`
	CacheTTLSecs int `yaml:"cache_ttl_secs,omitempty" toml:"cache_ttl_secs,omitempty"`
}

// AgentConfig selects the chat model used by the agent.
type AgentConfig struct {
	Provider string `yaml:"provider" toml:"provider"`
	Model    string `yaml:"model,omitempty" toml:"model,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty" toml:"base_url,omitempty"`
	APIKey   string `yaml:"api_key,omitempty" toml:"api_key,omitempty"`
	MaxSteps int    `yaml:"max_steps" toml:"max_steps"`
}

// WatchConfig tunes the file watcher.
type WatchConfig struct {
	DebounceMillis int `yaml:"debounce_ms" toml:"debounce_ms"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Config is the root configuration.
type Config struct {
	RepoPath  string          `yaml:"repo_path" toml:"repo_path"`
	DBPath    string          `yaml:"db_path" toml:"db_path"`
	Chunker   ChunkerConfig   `yaml:"chunker" toml:"chunker"`
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`
	Index     IndexConfig     `yaml:"index" toml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval" toml:"retrieval"`
	Agent     AgentConfig     `yaml:"agent" toml:"agent"`
	Watch     WatchConfig     `yaml:"watch" toml:"watch"`
	Log       LogConfig       `yaml:"log" toml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		RepoPath: ".",
		DBPath:   DefaultDBPath(),
		Chunker:  ChunkerConfig{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap},
		Embedding: EmbeddingConfig{
			Provider: DefaultProvider,
			Model:    DefaultEmbeddingModel,
		},
		Index:     IndexConfig{Tokenizer: TokenizerTiktoken},
		Retrieval: RetrievalConfig{K: DefaultK, CacheTTLSecs: 300},
		Agent: AgentConfig{
			Provider: embedder.ProviderOllama,
			MaxSteps: agent.DefaultMaxSteps,
		},
		Watch: WatchConfig{DebounceMillis: int(DefaultDebounce / time.Millisecond)},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// DefaultDBPath is ~/.reviewer/index.db, or a relative path when the home
// directory is unknown.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".reviewer", "index.db")
	}
	return filepath.Join(home, ".reviewer", "index.db")
}

// Load reads the file at path over the defaults and applies environment
// overrides. An empty path or a missing file yields the defaults.
// The format is chosen by extension: .toml for TOML, anything else YAML.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := unmarshal(path, data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.DBPath = expandHome(cfg.DBPath)
	cfg.RepoPath = expandHome(cfg.RepoPath)
	return cfg, nil
}

// LoadEnvFiles loads .env style files into the process environment.
// Variables already set win, and missing files are skipped.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Save writes the configuration to path in the format its extension selects.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if isTOML(path) {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func (c *Config) applyEnv() {
	setString(&c.RepoPath, EnvRepoPath)
	setString(&c.DBPath, EnvDBPath)
	setString(&c.Log.Level, EnvLogLevel)
	setString(&c.Agent.Model, EnvChatModel)

	if p := os.Getenv(embedder.EnvProvider); p != "" {
		c.Embedding.Provider = strings.ToLower(p)
	}
	setString(&c.Embedding.Model, embedder.EnvModel)

	if host := ollamaHost(); host != "" {
		if c.Embedding.Provider == embedder.ProviderOllama {
			c.Embedding.BaseURL = host
		}
		if c.Agent.Provider == embedder.ProviderOllama {
			c.Agent.BaseURL = host
		}
	}
	if key := os.Getenv(embedder.EnvOpenAIAPIKey); key != "" {
		if c.Embedding.Provider == embedder.ProviderOpenAI && c.Embedding.APIKey == "" {
			c.Embedding.APIKey = key
		}
		if c.Agent.Provider == embedder.ProviderOpenAI && c.Agent.APIKey == "" {
			c.Agent.APIKey = key
		}
	}
	if base := os.Getenv(embedder.EnvOpenAIBase); base != "" {
		if c.Embedding.Provider == embedder.ProviderOpenAI {
			c.Embedding.BaseURL = base
		}
		if c.Agent.Provider == embedder.ProviderOpenAI {
			c.Agent.BaseURL = base
		}
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func ollamaHost() string {
	host := os.Getenv(embedder.EnvOllamaHost)
	if host == "" {
		return ""
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Validate checks the configuration for values the pipeline cannot use.
func (c *Config) Validate() error {
	var errs []error
	if c.Chunker.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunker.size must be positive, got %d", c.Chunker.Size))
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		errs = append(errs, fmt.Errorf("chunker.overlap must be in [0, %d), got %d", c.Chunker.Size, c.Chunker.Overlap))
	}
	if c.Retrieval.K < 1 {
		errs = append(errs, fmt.Errorf("retrieval.k must be at least 1, got %d", c.Retrieval.K))
	}
	switch c.Embedding.Provider {
	case embedder.ProviderOllama, embedder.ProviderOpenAI, embedder.ProviderJina, embedder.ProviderLocal:
	default:
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider))
	}
	switch c.Agent.Provider {
	case embedder.ProviderOllama, embedder.ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("unknown agent provider %q", c.Agent.Provider))
	}
	if c.Agent.MaxSteps < 1 {
		errs = append(errs, fmt.Errorf("agent.max_steps must be at least 1, got %d", c.Agent.MaxSteps))
	}
	switch c.Index.Tokenizer {
	case TokenizerTiktoken, TokenizerEstimate:
	default:
		errs = append(errs, fmt.Errorf("unknown tokenizer %q", c.Index.Tokenizer))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is empty"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// EmbedderConfig converts the embedding section for embedder.New.
// Credentials not set in the file come from the environment.
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.ConfigFromEnv(embedder.Config{
		Provider:          c.Embedding.Provider,
		Model:             c.Embedding.Model,
		BaseURL:           c.Embedding.BaseURL,
		APIKey:            c.Embedding.APIKey,
		CacheSize:         c.Embedding.CacheSize,
		RequestsPerSecond: c.Embedding.RequestsPerSecond,
		Timeout:           time.Duration(c.Embedding.TimeoutSecs) * time.Second,
	})
}

// Debounce returns the watcher debounce interval.
func (c *Config) Debounce() time.Duration {
	if c.Watch.DebounceMillis <= 0 {
		return DefaultDebounce
	}
	return time.Duration(c.Watch.DebounceMillis) * time.Millisecond
}

// CacheTTL returns the retriever cache lifetime. Zero disables caching.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Retrieval.CacheTTLSecs) * time.Second
}

// String renders the configuration as YAML with secrets masked.
func (c *Config) String() string {
	masked := *c
	masked.Embedding.APIKey = mask(masked.Embedding.APIKey)
	masked.Agent.APIKey = mask(masked.Agent.APIKey)
	data, err := yaml.Marshal(&masked)
	if err != nil {
		return "config: " + strconv.Quote(err.Error())
	}
	return string(data)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
