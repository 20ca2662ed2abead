package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/moyger/sentinel/configs"
	"github.com/moyger/sentinel/internal/config"
	"github.com/moyger/sentinel/internal/output"
)

// coreFiles are the identity files a fresh memory directory starts
// with. Existing files are never overwritten.
var coreFiles = map[string]string{
	"soul.md":   "# Soul\n\n## Values & Principles\n\n## Voice\n\n",
	"user.md":   "# User\n\n## Preferences\n\n## Context\n\n",
	"memory.md": "# Memory\n\n## Projects\n\n## Lessons\n\n",
}

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a memory directory skeleton",
		Long: `Create the memory directory layout: core identity files, daily/ and
topics/ subdirectories, and an annotated sentinel.yaml. Existing files
are left alone, so init is safe to re-run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.memoryDir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				dir = config.NewConfig().Paths.MemoryDir
			}

			out := output.New(os.Stdout)

			for _, sub := range []string{"daily", "topics"} {
				if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
					return fmt.Errorf("create %s: %w", sub, err)
				}
			}

			created := 0
			for name, content := range coreFiles {
				path := filepath.Join(dir, name)
				if _, err := os.Stat(path); err == nil {
					continue
				}
				if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", name, err)
				}
				created++
			}

			cfgPath := filepath.Join(dir, "sentinel.yaml")
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				if err := os.WriteFile(cfgPath, []byte(configs.ConfigTemplate), 0o644); err != nil {
					return fmt.Errorf("write sentinel.yaml: %w", err)
				}
				created++
			}

			if created == 0 {
				out.Dim(dir + " already initialized")
				return nil
			}
			out.Successf("initialized memory directory at %s", dir)
			out.Dim("edit sentinel.yaml to adjust settings, then run 'sentinel index'")
			return nil
		},
	}
}
