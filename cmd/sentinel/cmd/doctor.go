package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/moyger/sentinel/internal/preflight"
)

func newDoctorCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment and index health",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			checker := preflight.New(a.cfg.Paths.MemoryDir, a.cfg.Paths.DataDir)
			checker.Embedder = a.embedder
			checker.Store = a.store

			results := checker.RunAll(ctx)

			a.out.Header("Sentinel environment check")
			a.out.Newline()
			for _, r := range results {
				switch r.Status {
				case preflight.StatusPass:
					a.out.Successf("%s: %s", r.Name, r.Message)
				case preflight.StatusWarn:
					a.out.Warningf("%s: %s", r.Name, r.Message)
				default:
					a.out.Errorf("%s: %s", r.Name, r.Message)
				}
			}

			if preflight.HasCriticalFailures(results) {
				return errors.New("environment check failed")
			}
			return nil
		},
	}
}
