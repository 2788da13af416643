package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PR202111/GIT-PROJECT-reviewer/internal/indexer"
	"github.com/PR202111/GIT-PROJECT-reviewer/internal/storage"
	"github.com/PR202111/GIT-PROJECT-reviewer/pkg/types"
)

type fakeQuerier struct {
	gotText string
	gotK    int
	results []types.Result
	err     error
}

func (f *fakeQuerier) Query(_ context.Context, text string, k int) ([]types.Result, error) {
	f.gotText, f.gotK = text, k
	return f.results, f.err
}

type fakeBuilder struct {
	gotPath string
	err     error
}

func (f *fakeBuilder) IndexRepository(_ context.Context, root string) (*indexer.Statistics, error) {
	f.gotPath = root
	if f.err != nil {
		return nil, f.err
	}
	return &indexer.Statistics{BuildID: "b1", RootPath: root, Documents: 3, FragmentsStored: 7,
		Duration: 1500 * time.Millisecond}, nil
}

type fakeStatus struct {
	status *storage.Status
}

func (f *fakeStatus) GetStatus(context.Context) (*storage.Status, error) {
	return f.status, nil
}

func TestNew_AllCapabilities(t *testing.T) {
	table := New(Deps{Retriever: &fakeQuerier{}, Indexer: &fakeBuilder{}, Status: &fakeStatus{}})

	names := make([]string, 0)
	for _, c := range table.List() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{QueryRepository, IndexRepository, IndexStatus}, names)
}

func TestNew_SkipsMissingDeps(t *testing.T) {
	table := New(Deps{Retriever: &fakeQuerier{}})

	require.Len(t, table.List(), 1)
	_, ok := table.Get(IndexRepository)
	assert.False(t, ok)
}

func TestCall_QueryRepository(t *testing.T) {
	q := &fakeQuerier{results: []types.Result{
		{Rank: 1, SourcePath: "/r/a.py", FileType: "python", FunctionName: "f", Content: "def f(): pass"},
	}}
	table := New(Deps{Retriever: q, DefaultK: 4})

	out, err := table.Call(context.Background(), QueryRepository, map[string]any{"query": "f"})
	require.NoError(t, err)
	assert.Equal(t, 4, q.gotK, "default k applied")
	assert.Contains(t, out, "--- Result 1 ---")
	assert.Contains(t, out, "Function: f")

	// JSON numbers arrive as float64
	_, err = table.Call(context.Background(), QueryRepository, map[string]any{"query": "f", "k": float64(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, q.gotK)
}

func TestCall_QueryRepositoryEmpty(t *testing.T) {
	table := New(Deps{Retriever: &fakeQuerier{}})

	out, err := table.Call(context.Background(), QueryRepository, map[string]any{"query": "nothing"})
	require.NoError(t, err)
	assert.Equal(t, "No results found.", out)
}

func TestCall_InvalidArguments(t *testing.T) {
	table := New(Deps{Retriever: &fakeQuerier{}})
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing query", map[string]any{}},
		{"blank query", map[string]any{"query": "  "}},
		{"query not a string", map[string]any{"query": 3}},
		{"fractional k", map[string]any{"query": "x", "k": 1.5}},
		{"k below minimum", map[string]any{"query": "x", "k": 0}},
		{"unknown parameter", map[string]any{"query": "x", "limit": 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := table.Call(ctx, QueryRepository, tt.args)
			assert.ErrorIs(t, err, ErrInvalidArgs)
			assert.True(t, IsUserError(err))
		})
	}
}

func TestCall_UnknownCapability(t *testing.T) {
	_, err := New(Deps{}).Call(context.Background(), "drop_tables", nil)
	assert.ErrorIs(t, err, ErrUnknownCapability)
}

func TestCall_HandlerErrorPropagates(t *testing.T) {
	cause := errors.New("engine down")
	table := New(Deps{Retriever: &fakeQuerier{err: cause}})

	_, err := table.Call(context.Background(), QueryRepository, map[string]any{"query": "x"})
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsUserError(err))
}

func TestCall_IndexRepository(t *testing.T) {
	b := &fakeBuilder{}
	table := New(Deps{Indexer: b, RepoPath: "/srv/repo"})

	out, err := table.Call(context.Background(), IndexRepository, nil)
	require.NoError(t, err)
	assert.Equal(t, "/srv/repo", b.gotPath, "configured repository by default")

	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "b1", resp["build_id"])
	assert.Equal(t, float64(7), resp["fragments_stored"])
	assert.Equal(t, float64(1500), resp["duration_ms"])
}

func TestCall_IndexRepositoryWithoutPath(t *testing.T) {
	table := New(Deps{Indexer: &fakeBuilder{}})

	_, err := table.Call(context.Background(), IndexRepository, nil)
	assert.ErrorIs(t, err, ErrInvalidArgs)
}

func TestCall_IndexStatus(t *testing.T) {
	finished := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	status := &fakeStatus{status: &storage.Status{
		SchemaVersion: "1.0.0",
		Builds:        1,
		Active: &storage.Build{ID: "b1", RootPath: "/r", FragmentCount: 9,
			StartedAt: finished.Add(-time.Minute), FinishedAt: &finished},
	}}
	table := New(Deps{Status: status})

	out, err := table.Call(context.Background(), IndexStatus, nil)
	require.NoError(t, err)

	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, true, resp["indexed"])
	active := resp["active_build"].(map[string]any)
	assert.Equal(t, "b1", active["id"])
	assert.Equal(t, "2026-01-02T03:04:05Z", active["finished_at"])

	status.status = &storage.Status{SchemaVersion: "1.0.0"}
	out, err = table.Call(context.Background(), IndexStatus, nil)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, false, resp["indexed"])
}

func TestCapability_Schema(t *testing.T) {
	table := New(Deps{Retriever: &fakeQuerier{}, DefaultK: 5})
	c, ok := table.Get(QueryRepository)
	require.True(t, ok)

	schema := c.Schema()
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"query"}, schema["required"])

	props := schema["properties"].(map[string]any)
	k := props["k"].(map[string]any)
	assert.Equal(t, "integer", k["type"])
	assert.Equal(t, 5, k["default"])
	assert.Equal(t, 1, k["minimum"])
	assert.Equal(t, []string{"query"}, c.RequiredParams())
}

func TestTable_Subset(t *testing.T) {
	table := New(Deps{Retriever: &fakeQuerier{}, Indexer: &fakeBuilder{}, Status: &fakeStatus{}})

	sub := table.Subset(IndexStatus, QueryRepository, "missing")
	caps := sub.List()
	require.Len(t, caps, 2)
	assert.Equal(t, IndexStatus, caps[0].Name)
	assert.Equal(t, QueryRepository, caps[1].Name)
}
