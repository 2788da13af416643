package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/PR202111/GIT-PROJECT-reviewer/internal/config"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	dbPath     string
	logLevel   string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "reviewer",
		Short: "Index a code repository and answer questions about it",
		Long: `reviewer builds a semantic index of a repository's Python sources,
notebooks, READMEs and text files, then answers similarity queries against it.

The index can be queried from the command line, served to AI assistants over
MCP (stdio), or used by a tool-calling chat agent.

Examples:
  reviewer index ./myproject
  reviewer query "where is the config parsed?" -k 5
  reviewer serve
  reviewer chat`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (.yaml or .toml)")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "index database path (default ~/.reviewer/index.db)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(
		newIndexCmd(opts),
		newQueryCmd(opts),
		newServeCmd(opts),
		newChatCmd(opts),
		newWatchCmd(opts),
		newStatusCmd(opts),
		newEmbedCheckCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads configuration, applies flag overrides and installs the logger.
// Logs go to stderr; stdout is reserved for results and the MCP transport.
func (o *globalOptions) load(cmd *cobra.Command) error {
	if err := config.LoadEnvFiles(".env"); err != nil {
		return err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	slog.SetDefault(logger)

	o.cfg = cfg
	return nil
}
