package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active index build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, opts, func(ctx context.Context, a *app) error {
				status, err := a.store.GetStatus(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(status)
				}

				st := newStyles(out)
				fmt.Fprintln(out, st.field("Database", status.DatabasePath))
				fmt.Fprintln(out, st.field("Schema", status.SchemaVersion))
				if status.Active == nil {
					fmt.Fprintln(out, st.warn.Render("No index has been built yet. Run `reviewer index`."))
					return nil
				}
				b := status.Active
				fmt.Fprintln(out, st.field("Build", b.ID))
				fmt.Fprintln(out, st.field("Repository", b.RootPath))
				fmt.Fprintln(out, st.field("Embeddings", fmt.Sprintf("%s/%s (%d dims)", b.Provider, b.Model, b.Dimension)))
				fmt.Fprintln(out, st.field("Fragments", b.FragmentCount))
				if b.FinishedAt != nil {
					fmt.Fprintln(out, st.field("Built", b.FinishedAt.Local().Format(time.RFC3339)))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output status as JSON")
	return cmd
}
