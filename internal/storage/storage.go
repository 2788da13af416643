package storage

import (
	"context"
	"time"
)

// Storage is the persistent vector store behind the index. Writes always
// target a build; reads only ever see the active build.
type Storage interface {
	// Build lifecycle
	CreateBuild(ctx context.Context, build *Build) error
	GetBuild(ctx context.Context, id string) (*Build, error)
	ActiveBuild(ctx context.Context) (*Build, error)
	ListBuilds(ctx context.Context) ([]*Build, error)
	FinishBuild(ctx context.Context, id string) error
	FailBuild(ctx context.Context, id string, cause error) error

	// Fragment and embedding writes
	InsertFragment(ctx context.Context, fragment *Fragment) error
	InsertEmbedding(ctx context.Context, embedding *Embedding) error

	// Reads
	CountFragments(ctx context.Context, buildID string) (int, error)
	ListFragments(ctx context.Context, buildID string) ([]*Fragment, error)
	SearchVector(ctx context.Context, queryVector []float32, limit int) (*SearchResult, error)
	GetStatus(ctx context.Context) (*Status, error)

	// Transactions
	BeginTx(ctx context.Context) (Tx, error)

	Close() error
}

// Tx batches fragment writes of one build
type Tx interface {
	InsertFragment(ctx context.Context, fragment *Fragment) error
	InsertEmbedding(ctx context.Context, embedding *Embedding) error
	Commit() error
	Rollback() error
}

// BuildStatus tracks where a build is in its lifecycle
type BuildStatus string

const (
	BuildBuilding BuildStatus = "building"
	BuildReady    BuildStatus = "ready"
	BuildFailed   BuildStatus = "failed"
)

// Build is one full indexing run over a repository
type Build struct {
	ID            string      `json:"id"`
	RootPath      string      `json:"root_path"`
	Status        BuildStatus `json:"status"`
	Provider      string      `json:"provider"`
	Model         string      `json:"model"`
	Dimension     int         `json:"dimension"`
	FragmentCount int         `json:"fragment_count"`
	Error         string      `json:"error,omitempty"`
	StartedAt     time.Time   `json:"started_at"`
	FinishedAt    *time.Time  `json:"finished_at,omitempty"`
}

// Fragment is a stored fragment. Content is the indexed text, header included.
type Fragment struct {
	ID           int64
	BuildID      string
	Ordinal      int // position within the build, used to break score ties
	SourcePath   string
	FileName     string
	FileType     string
	FunctionName *string
	ChunkIndex   int
	Content      string
	ContentHash  [32]byte
	TokenCount   int
}

// Embedding is the vector of a stored fragment
type Embedding struct {
	FragmentID int64
	Vector     []float32
}

// ScoredFragment is a vector search hit
type ScoredFragment struct {
	Fragment
	Score float64
}

// SearchResult holds the hits of one search and the build they were read from
type SearchResult struct {
	BuildID string
	Hits    []ScoredFragment
}

// Status summarizes the store
type Status struct {
	SchemaVersion  string `json:"schema_version"`
	Active         *Build `json:"active_build"`
	Builds         int    `json:"builds"`
	TotalFragments int    `json:"total_fragments"`
	DatabasePath   string `json:"database_path"`
}
