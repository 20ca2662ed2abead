package cmd

import (
	"github.com/spf13/cobra"
)

func newIndexCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [path...]",
		Short: "Index memory files",
		Long: `Index the given files, or the whole corpus when no paths are given.
Paths are relative to the memory directory. Unchanged files are
skipped based on content hash.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.fallback {
				a.out.Warning("embedding provider unreachable, using static embeddings")
			}

			if len(args) == 0 {
				res, err := a.coord.ReindexAll(ctx, true)
				if err != nil {
					return err
				}
				a.saveVectors()
				a.out.Successf("indexed %d files (%d chunks), %d unchanged, %d failed",
					res.Indexed, res.Chunks, res.Skipped, res.Failed)
				return nil
			}

			total := 0
			for _, path := range args {
				n, err := a.coord.IndexFile(ctx, path)
				if err != nil {
					a.out.Errorf("%s: %v", path, err)
					continue
				}
				if n == 0 {
					a.out.Dim(path + ": unchanged")
					continue
				}
				a.out.Successf("%s: %d chunks", path, n)
				total += n
			}
			a.saveVectors()
			if total > 0 {
				a.out.Dim("run 'sentinel search' to query the index")
			}
			return nil
		},
	}
	return cmd
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <path>...",
		Short: "Remove files from the index",
		Long: `Remove the given files from the index. The files themselves are not
touched; removing a path that was never indexed is not an error.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, path := range args {
				if err := a.coord.RemoveFile(ctx, path); err != nil {
					a.out.Errorf("%s: %v", path, err)
					continue
				}
				a.out.Successf("removed %s", path)
			}
			a.saveVectors()
			return nil
		},
	}
}
