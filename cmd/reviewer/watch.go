package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/PR202111/GIT-PROJECT-reviewer/internal/indexer"
	"github.com/PR202111/GIT-PROJECT-reviewer/internal/watcher"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Rebuild the index whenever repository files change",
		Args:  cobra.MaximumNArgs(1),
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
				if !skipInitial {
					stats, err := a.indexer.IndexRepository(ctx, abs)
					if err != nil {
						return err
					}
					slog.Info("initial index built", "build", stats.BuildID, "fragments", stats.FragmentsStored)
				}

				out := cmd.OutOrStdout()
				st := newStyles(out)
				w, err := watcher.New(abs, a.indexer,
					watcher.WithDebounce(opts.cfg.Debounce()),
					watcher.OnBuild(func(stats *indexer.Statistics, err error) {
						if err != nil {
							fmt.Fprintln(out, st.err.Render("rebuild failed:"), err)
							return
						}
						fmt.Fprintln(out, st.ok.Render("rebuilt"), st.muted.Render(fmt.Sprintf("%d fragments in %s",
							stats.FragmentsStored, stats.Duration)))
					}),
				)
				if err != nil {
					return err
				}
				if err := w.Start(ctx); err != nil {
					return err
				}
				defer w.Stop()

				fmt.Fprintln(out, st.muted.Render("watching "+abs+" (Ctrl-C to stop)"))
				<-ctx.Done()
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&skipInitial, "no-initial", false, "do not build the index before watching")
	return cmd
}
