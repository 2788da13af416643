package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

func newIndexCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Build a fresh index of a repository",
		Long: `Loads every recognized file under the repository, splits Python sources into
functions, chunks and embeds all fragments, and atomically replaces the active
index. The previous index keeps serving queries if the build fails.

The path defaults to repo_path from the configuration.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := opts.cfg.RepoPath
			if len(args) == 1 {
				root = args[0]
			}
			abs, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", root, err)
			}

			return runWithApp(cmd, opts, func(ctx context.Context, a *app) error {
				stats, err := a.indexer.IndexRepository(ctx, abs)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(stats)
				}

				st := newStyles(out)
				fmt.Fprintln(out, st.ok.Render("Index built"))
				fmt.Fprintln(out, st.field("Build", stats.BuildID))
				fmt.Fprintln(out, st.field("Repository", stats.RootPath))
				fmt.Fprintln(out, st.field("Documents", fmt.Sprintf("%d (%d code)", stats.Documents, stats.CodeDocuments)))
				fmt.Fprintln(out, st.field("Segments", stats.Segments))
				fmt.Fprintln(out, st.field("Fragments", fmt.Sprintf("%d (%d split)", stats.FragmentsStored, stats.SplitFragments)))
				fmt.Fprintln(out, st.field("Tokens", stats.Tokens))
				if stats.ParseFallbacks > 0 {
					fmt.Fprintln(out, st.warn.Render(fmt.Sprintf("%d Python files could not be parsed and were chunked whole", stats.ParseFallbacks)))
				}
				fmt.Fprintln(out, st.field("Duration", stats.Duration.Round(time.Millisecond)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output statistics as JSON")
	return cmd
}
