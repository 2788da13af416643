package mcp

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/PR202111/GIT-PROJECT-reviewer/internal/tools"
)

const (
	// ServerName is the MCP server name
	ServerName = "repo-reviewer"
)

// Server exposes a capability table over MCP
type Server struct {
	mcp   *server.MCPServer
	table *tools.Table
}

// NewServer creates an MCP server with one tool per capability
func NewServer(table *tools.Table, version string) *Server {
	mcpServer := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		mcp:   mcpServer,
		table: table,
	}
	s.registerTools()
	return s
}

// Serve runs the server on stdin/stdout until ctx is done or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	return s.Listen(ctx, os.Stdin, os.Stdout)
}

// Listen runs the server over the given streams
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	slog.Info("mcp server listening", "tools", len(s.table.List()))
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// registerTools registers every capability of the table as an MCP tool
func (s *Server) registerTools() {
	for _, c := range s.table.List() {
		s.mcp.AddTool(toolFor(c), s.handlerFor(c.Name))
	}
}

// toolFor derives the MCP tool definition from a capability
func toolFor(c tools.Capability) mcp.Tool {
	schema := c.Schema()
	properties, _ := schema["properties"].(map[string]any)
	return mcp.Tool{
		Name:        c.Name,
		Description: c.Description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: properties,
			Required:   c.RequiredParams(),
		},
	}
}

// handlerFor returns the MCP handler dispatching to a capability
func (s *Server) handlerFor(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args map[string]any
		switch raw := request.Params.Arguments.(type) {
		case nil:
		case map[string]any:
			args = raw
		default:
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
		}

		out, err := s.table.Call(ctx, name, args)
		if err != nil {
			slog.Warn("tool call failed", "tool", name, "error", err)
			return nil, toMCPError(err)
		}
		return mcp.NewToolResultText(out), nil
	}
}
