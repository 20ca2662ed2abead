package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <path>...",
		Short: "Show indexing state for files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, path := range args {
				st, err := a.coord.Status(ctx, path)
				if err != nil {
					a.out.Errorf("%s: %v", path, err)
					continue
				}
				if !st.Indexed {
					a.out.Dim(path + ": not indexed")
					continue
				}
				a.out.Header(path)
				a.out.Printf("  hash:         %s\n", st.ContentHash)
				a.out.Printf("  last indexed: %s\n", st.LastIndexed)
				a.out.Printf("  chunks:       %d\n", st.ChunkCount)
			}
			return nil
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.store.Stats(ctx)
			if err != nil {
				return err
			}

			a.out.Header("Index")
			a.out.Printf("  files:     %d\n", stats.FileCount)
			a.out.Printf("  chunks:    %d\n", stats.ChunkCount)
			a.out.Printf("  embedded:  %d\n", stats.EmbeddedCount)
			a.out.Newline()
			a.out.Header("Embeddings")
			a.out.Printf("  provider:  %s\n", a.provider)
			a.out.Printf("  model:     %s\n", a.embedder.ModelName())
			a.out.Printf("  dims:      %d\n", a.embedder.Dimensions())
			if a.fallback {
				a.out.Warning("configured provider unreachable, static fallback active")
			}
			a.out.Newline()
			a.out.Printf("  vectors:   %d (%d orphaned)\n", a.vectors.Count(), a.vectors.Orphans())
			a.out.Dim(fmt.Sprintf("  data dir:  %s", a.cfg.Paths.DataDir))
			return nil
		},
	}
}
