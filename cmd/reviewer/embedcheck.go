package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/PR202111/GIT-PROJECT-reviewer/internal/embedder"
)

const embedCheckSample = `def add(a, b):
    """Add two numbers."""
    return a + b
`

func newEmbedCheckCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "embed-check",
		Short: "Verify the configured embedding provider works",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			emb, err := embedder.New(opts.cfg.EmbedderConfig())
			if err != nil {
				return err
			}
			defer func() { _ = emb.Close() }()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			st := newStyles(out)

			if p, ok := emb.(interface{ Ping(context.Context) error }); ok {
				if err := p.Ping(ctx); err != nil {
					return fmt.Errorf("%s unreachable: %w", emb.Provider(), err)
				}
			}

			start := time.Now()
			e, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: embedCheckSample})
			if err != nil {
				return err
			}

			fmt.Fprintln(out, st.ok.Render("Embedding provider OK"))
			fmt.Fprintln(out, st.field("Provider", e.Provider))
			fmt.Fprintln(out, st.field("Model", e.Model))
			fmt.Fprintln(out, st.field("Dimension", e.Dimension))
			fmt.Fprintln(out, st.field("Latency", time.Since(start).Round(time.Millisecond)))
			return nil
		},
	}
}
