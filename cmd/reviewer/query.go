package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PR202111/GIT-PROJECT-reviewer/internal/retriever"
)

func newQueryCmd(opts *globalOptions) *cobra.Command {
	var (
		k      int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Find the fragments most similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("k") {
				k = opts.cfg.Retrieval.K
			}
			text := strings.Join(args, " ")

			return runWithApp(cmd, opts, func(ctx context.Context, a *app) error {
				results, err := a.retriever.Query(ctx, text, k)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if asJSON {
					data, err := json.MarshalIndent(results, "", "  ")
					if err != nil {
						return fmt.Errorf("marshal results: %w", err)
					}
					_, err = fmt.Fprintln(out, string(data))
					return err
				}
				_, err = fmt.Fprint(out, retriever.Format(results))
				return err
			})
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of results (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}
