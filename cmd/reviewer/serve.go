package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/PR202111/GIT-PROJECT-reviewer/internal/mcp"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the index to AI assistants over MCP (stdio)",
		Long: `Starts a Model Context Protocol server on stdin/stdout exposing the
query_repository, index_repository and index_status tools.

Example client configuration:
  {
    "mcpServers": {
      "reviewer": {
        "command": "/path/to/reviewer",
        "args": ["serve", "--db", "/path/to/index.db"]
      }
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, opts, func(ctx context.Context, a *app) error {
				slog.Info("MCP server ready, listening on stdio", "version", version, "db", opts.cfg.DBPath)
				err := mcp.NewServer(a.table, version).Listen(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
				if ctx.Err() != nil {
					slog.Info("MCP server stopped")
					return nil
				}
				return err
			})
		},
	}
}
