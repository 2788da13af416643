package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PR202111/GIT-PROJECT-reviewer/internal/tools"
	"github.com/PR202111/GIT-PROJECT-reviewer/pkg/types"
)

func testTable(handler tools.Handler) *tools.Table {
	one := 1
	return tools.NewTable(tools.Capability{
		Name:        tools.QueryRepository,
		Description: "search",
		Params: []tools.Param{
			{Name: "query", Type: tools.TypeString, Required: true},
			{Name: "k", Type: tools.TypeInteger, Default: 10, Minimum: &one},
		},
		Handler: handler,
	})
}

func callRequest(name string, args any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func TestToolFor(t *testing.T) {
	table := testTable(nil)
	c, _ := table.Get(tools.QueryRepository)

	tool := toolFor(c)
	assert.Equal(t, tools.QueryRepository, tool.Name)
	assert.Equal(t, "object", tool.InputSchema.Type)
	assert.Equal(t, []string{"query"}, tool.InputSchema.Required)
	assert.Contains(t, tool.InputSchema.Properties, "query")
	assert.Contains(t, tool.InputSchema.Properties, "k")
}

func TestHandler_Success(t *testing.T) {
	var gotK int
	s := NewServer(testTable(func(_ context.Context, args tools.Args) (string, error) {
		gotK = args.Int("k")
		return "result for " + args.String("query"), nil
	}), "test")

	result, err := s.handlerFor(tools.QueryRepository)(context.Background(),
		callRequest(tools.QueryRepository, map[string]any{"query": "config", "k": float64(3)}))
	require.NoError(t, err)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "result for config", text.Text)
	assert.Equal(t, 3, gotK)
}

func TestHandler_ErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		args     any
		err      error
		wantCode int
	}{
		{"bad argument shape", []any{"x"}, nil, ErrorCodeInvalidParams},
		{"missing query", map[string]any{}, nil, ErrorCodeInvalidParams},
		{"invalid k", map[string]any{"query": "x", "k": -1}, nil, ErrorCodeInvalidParams},
		{"not indexed", map[string]any{"query": "x"}, types.ErrNoIndex, ErrorCodeNotIndexed},
		{"busy", map[string]any{"query": "x"}, types.ErrIndexingInProgress, ErrorCodeIndexingInProgress},
		{"search failed", map[string]any{"query": "x"},
			fmt.Errorf("%w: connection refused", types.ErrSearchFailed), ErrorCodeSearchFailed},
		{"other", map[string]any{"query": "x"}, errors.New("boom"), ErrorCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(testTable(func(context.Context, tools.Args) (string, error) {
				return "", tt.err
			}), "test")

			_, err := s.handlerFor(tools.QueryRepository)(context.Background(),
				callRequest(tools.QueryRepository, tt.args))
			require.Error(t, err)

			var mcpErr *MCPError
			require.True(t, errors.As(err, &mcpErr))
			assert.Equal(t, tt.wantCode, mcpErr.Code)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestNewServer_RegistersEveryCapability(t *testing.T) {
	table := tools.New(tools.Deps{Retriever: nopQuerier{}, Status: nil})
	s := NewServer(table, "test")
	assert.NotNil(t, s.mcp)
	assert.Len(t, s.table.List(), 1)
}

type nopQuerier struct{}

func (nopQuerier) Query(context.Context, string, int) ([]types.Result, error) { return nil, nil }
