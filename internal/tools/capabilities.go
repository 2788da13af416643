package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/PR202111/GIT-PROJECT-reviewer/internal/indexer"
	"github.com/PR202111/GIT-PROJECT-reviewer/internal/retriever"
	"github.com/PR202111/GIT-PROJECT-reviewer/internal/storage"
	"github.com/PR202111/GIT-PROJECT-reviewer/pkg/types"
)

// Querier answers similarity queries
type Querier interface {
	Query(ctx context.Context, text string, k int) ([]types.Result, error)
}

// Builder rebuilds the index of a repository
type Builder interface {
	IndexRepository(ctx context.Context, rootPath string) (*indexer.Statistics, error)
}

// StatusSource reports on the store
type StatusSource interface {
	GetStatus(ctx context.Context) (*storage.Status, error)
}

// Deps are the dependencies injected into the capability handlers. A
// capability whose dependency is nil is left out of the table.
type Deps struct {
	Retriever Querier
	Indexer   Builder
	Status    StatusSource

	// RepoPath is indexed when index_repository is called without a path
	RepoPath string
	// DefaultK is used when query_repository is called without k
	DefaultK int
}

// New builds the capability table with handlers bound to deps
func New(deps Deps) *Table {
	if deps.DefaultK < 1 {
		deps.DefaultK = retriever.DefaultK
	}
	one := 1
	var repoDefault any
	if deps.RepoPath != "" {
		repoDefault = deps.RepoPath
	}

	var caps []Capability
	if deps.Retriever != nil {
		caps = append(caps, Capability{
			Name: QueryRepository,
			Description: "Search the indexed repository for code and documentation relevant to a " +
				"natural language query. Returns the best matching fragments with file, type and function.",
			Params: []Param{
				{Name: "query", Type: TypeString, Required: true,
					Description: "What to look for, in natural language or keywords"},
				{Name: "k", Type: TypeInteger, Default: deps.DefaultK, Minimum: &one,
					Description: "Number of distinct results to return"},
			},
			Handler: queryHandler(deps.Retriever),
		})
	}
	if deps.Indexer != nil {
		caps = append(caps, Capability{
			Name:        IndexRepository,
			Description: "Rebuild the search index of a repository. Queries keep using the previous index until the rebuild completes.",
			Params: []Param{
				{Name: "path", Type: TypeString, Default: repoDefault,
					Description: "Repository root directory; defaults to the configured repository"},
			},
			Handler: indexHandler(deps.Indexer),
		})
	}
	if deps.Status != nil {
		caps = append(caps, Capability{
			Name:        IndexStatus,
			Description: "Report which index build is active and how many fragments it holds.",
			Handler:     statusHandler(deps.Status),
		})
	}

	return NewTable(caps...)
}

func queryHandler(r Querier) Handler {
	return func(ctx context.Context, args Args) (string, error) {
		results, err := r.Query(ctx, args.String("query"), args.Int("k"))
		if err != nil {
			return "", err
		}
		return retriever.Format(results), nil
	}
}

func indexHandler(b Builder) Handler {
	return func(ctx context.Context, args Args) (string, error) {
		path := args.String("path")
		if path == "" {
			return "", fmt.Errorf("%w: %s: no repository path given or configured", ErrInvalidArgs, IndexRepository)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrInvalidArgs, IndexRepository, err)
		}

		stats, err := b.IndexRepository(ctx, abs)
		if err != nil {
			return "", err
		}
		return formatJSON(map[string]any{
			"indexed":          true,
			"build_id":         stats.BuildID,
			"path":             stats.RootPath,
			"documents":        stats.Documents,
			"code_documents":   stats.CodeDocuments,
			"parse_fallbacks":  stats.ParseFallbacks,
			"fragments_stored": stats.FragmentsStored,
			"split_fragments":  stats.SplitFragments,
			"tokens":           stats.Tokens,
			"duration_ms":      stats.Duration.Milliseconds(),
		}), nil
	}
}

func statusHandler(s StatusSource) Handler {
	return func(ctx context.Context, _ Args) (string, error) {
		status, err := s.GetStatus(ctx)
		if err != nil {
			return "", err
		}

		response := map[string]any{
			"indexed":         status.Active != nil,
			"schema_version":  status.SchemaVersion,
			"builds":          status.Builds,
			"total_fragments": status.TotalFragments,
			"database":        status.DatabasePath,
		}
		if b := status.Active; b != nil {
			active := map[string]any{
				"id":         b.ID,
				"path":       b.RootPath,
				"provider":   b.Provider,
				"model":      b.Model,
				"dimension":  b.Dimension,
				"fragments":  b.FragmentCount,
				"started_at": b.StartedAt.Format(time.RFC3339),
			}
			if b.FinishedAt != nil {
				active["finished_at"] = b.FinishedAt.Format(time.RFC3339)
			}
			response["active_build"] = active
		} else {
			response["message"] = "Repository not indexed. Use index_repository to build the index."
		}
		return formatJSON(response), nil
	}
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]any) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// IsUserError reports whether err was caused by the caller rather than the system
func IsUserError(err error) bool {
	return errors.Is(err, ErrInvalidArgs) || errors.Is(err, ErrUnknownCapability) ||
		errors.Is(err, types.ErrInvalidK) || errors.Is(err, retriever.ErrEmptyQuery)
}
