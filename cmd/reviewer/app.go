package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/PR202111/GIT-PROJECT-reviewer/internal/agent"
	"github.com/PR202111/GIT-PROJECT-reviewer/internal/chunker"
	"github.com/PR202111/GIT-PROJECT-reviewer/internal/config"
	"github.com/PR202111/GIT-PROJECT-reviewer/internal/embedder"
	"github.com/PR202111/GIT-PROJECT-reviewer/internal/indexer"
	"github.com/PR202111/GIT-PROJECT-reviewer/internal/retriever"
	"github.com/PR202111/GIT-PROJECT-reviewer/internal/storage"
	"github.com/PR202111/GIT-PROJECT-reviewer/internal/tools"
)

// app holds the wired pipeline for one command invocation.
type app struct {
	cfg       *config.Config
	repoPath  string
	store     *storage.SQLiteStorage
	embedder  embedder.Embedder
	indexer   *indexer.Indexer
	retriever *retriever.Retriever
	table     *tools.Table
}

func newApp(cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", cfg.DBPath, err)
	}

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("embedder: %w", err)
	}

	ch, err := chunker.New(chunker.WithChunkSize(cfg.Chunker.Size), chunker.WithOverlap(cfg.Chunker.Overlap))
	if err != nil {
		_ = store.Close()
		_ = emb.Close()
		return nil, err
	}

	idxOpts := []indexer.Option{indexer.WithWorkers(runtime.NumCPU())}
	if cfg.Index.Workers > 0 {
		idxOpts = append(idxOpts, indexer.WithWorkers(cfg.Index.Workers))
	}
	if cfg.Index.BatchSize > 0 {
		idxOpts = append(idxOpts, indexer.WithBatchSize(cfg.Index.BatchSize))
	}
	if cfg.Index.Tokenizer == config.TokenizerEstimate {
		idxOpts = append(idxOpts, indexer.WithTokenCounter(indexer.EstimateTokens))
	}

	a := &app{
		cfg:       cfg,
		store:     store,
		embedder:  emb,
		indexer:   indexer.New(store, emb, ch, idxOpts...),
		retriever: retriever.New(store, emb, retriever.WithCacheTTL(cfg.CacheTTL())),
	}

	a.repoPath, err = filepath.Abs(cfg.RepoPath)
	if err != nil {
		a.repoPath = cfg.RepoPath
	}
	a.table = tools.New(tools.Deps{
		Retriever: a.retriever,
		Indexer:   a.indexer,
		Status:    store,
		RepoPath:  a.repoPath,
		DefaultK:  cfg.Retrieval.K,
	})

	slog.Debug("pipeline ready", "db", cfg.DBPath, "provider", emb.Provider(), "model", emb.Model(),
		"storage", storage.BuildMode)
	return a, nil
}

// chatModel builds the agent's model from the agent config section.
func (a *app) chatModel() (agent.Model, error) {
	c := a.cfg.Agent
	switch c.Provider {
	case embedder.ProviderOpenAI:
		return agent.NewOpenAIModel(agent.OpenAIConfig{APIKey: c.APIKey, BaseURL: c.BaseURL, Model: c.Model})
	case embedder.ProviderOllama:
		return agent.NewOllamaModel(agent.OllamaConfig{BaseURL: c.BaseURL, Model: c.Model}), nil
	}
	return nil, fmt.Errorf("unsupported agent provider %q", c.Provider)
}

func (a *app) Close() error {
	return errors.Join(a.embedder.Close(), a.store.Close())
}

// runWithApp builds the pipeline, runs fn and closes it again.
func runWithApp(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(opts.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("close pipeline", "error", err)
		}
	}()
	return fn(cmd.Context(), a)
}
