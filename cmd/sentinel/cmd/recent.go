package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moyger/sentinel/internal/output"
)

func newRecentCmd(opts *rootOptions) *cobra.Command {
	var days, limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show recently updated memory chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			chunks, err := a.engine.Recent(ctx, days, limit)
			if err != nil {
				return err
			}
			if len(chunks) == 0 {
				a.out.Dim(fmt.Sprintf("nothing indexed in the last %d days", days))
				return nil
			}

			for _, c := range chunks {
				a.out.Header(fmt.Sprintf("%s  %s", c.UpdatedAt.Format("2006-01-02"), c.FilePath))
				if c.Heading != "" {
					a.out.Dim("  " + c.Heading)
				}
				a.out.Println("  " + output.Snippet(c.Content, 160))
				a.out.Newline()
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 7, "look back this many days")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum chunks to show")

	return cmd
}
