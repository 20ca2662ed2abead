package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	senterrors "github.com/moyger/sentinel/internal/errors"
)

func newDistillCmd(opts *rootOptions) *cobra.Command {
	var (
		dateStr string
		apply   bool
	)

	cmd := &cobra.Command{
		Use:   "distill [logfile]",
		Short: "Extract durable facts from a daily log",
		Long: `Distill a daily log into memory file update proposals. Without a
path the log for --date (default today) is read from daily/ under the
memory directory. Proposals are printed for review; --apply writes
them, backing up each touched file first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			date := time.Now()
			if dateStr != "" {
				date, err = time.Parse("2006-01-02", dateStr)
				if err != nil {
					return senterrors.InputError(
						fmt.Sprintf("invalid date %q, want YYYY-MM-DD", dateStr), err)
				}
			}

			logPath := filepath.Join(a.cfg.Paths.MemoryDir, "daily", date.Format("2006-01-02")+".md")
			if len(args) == 1 {
				logPath = args[0]
			}
			logText, err := os.ReadFile(logPath)
			if err != nil {
				if os.IsNotExist(err) {
					return senterrors.New(senterrors.ErrCodeFileNotFound,
						fmt.Sprintf("no daily log at %s", logPath), err)
				}
				return err
			}

			res := a.distiller().Distill(string(logText), date)

			if len(res.Proposals) == 0 && len(res.Topics) == 0 {
				a.out.Dim("nothing to distill")
				return nil
			}

			a.out.Header(fmt.Sprintf("Distilled %s: %d facts, %d proposals",
				res.Date.Format("2006-01-02"), len(res.Facts), len(res.Proposals)))
			for _, p := range res.Proposals {
				a.out.Printf("  %s › %s (%s, %.0f%%)\n",
					p.FilePath, p.Section, p.Action, p.Confidence*100)
				a.out.Dim("    " + p.Content)
			}
			if len(res.Topics) > 0 {
				a.out.Printf("  topics: %v\n", res.Topics)
			}

			if !apply {
				a.out.Newline()
				a.out.Dim("dry run; pass --apply to write these changes")
				return nil
			}

			applier := a.applier()
			if err := applier.Apply(res.Proposals); err != nil {
				return err
			}
			created, err := applier.CreateTopics(res.Topics)
			if err != nil {
				return err
			}
			a.out.Successf("applied %d proposals, created %d topic files",
				len(res.Proposals), len(created))

			// Reindex the touched memory files so search sees them.
			if _, err := a.coord.ReindexAll(ctx, false); err != nil {
				a.out.Warningf("reindex after distill: %v", err)
			} else {
				a.saveVectors()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "log date (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&apply, "apply", false, "write proposals instead of printing them")

	return cmd
}
