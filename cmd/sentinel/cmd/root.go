// Package cmd implements the sentinel command line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/moyger/sentinel/internal/profiling"
	"github.com/moyger/sentinel/pkg/version"
)

type rootOptions struct {
	memoryDir   string
	debug       bool
	cpuProfile  string
	heapProfile string
}

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "sentinel",
		Short: "Personal memory indexing and retrieval",
		Long: `Sentinel indexes a directory of markdown notes into a local
search index and answers hybrid lexical and semantic queries over it.

The index lives entirely on the local machine. Embeddings come from a
local Ollama instance when one is reachable and fall back to a
deterministic hash embedder otherwise.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	profiler := profiling.NewProfiler()
	var stopCPU func()

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if opts.cpuProfile == "" {
			return nil
		}
		var err error
		stopCPU, err = profiler.StartCPU(opts.cpuProfile)
		return err
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if stopCPU != nil {
			stopCPU()
		}
		if opts.heapProfile != "" {
			return profiler.WriteHeap(opts.heapProfile)
		}
		return nil
	}

	rootCmd.PersistentFlags().StringVarP(&opts.memoryDir, "memory-dir", "m", "",
		"memory corpus root (default from config)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false,
		"enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.cpuProfile, "cpu-profile", "",
		"write a CPU profile to this file")
	rootCmd.PersistentFlags().StringVar(&opts.heapProfile, "heap-profile", "",
		"write a heap profile to this file on exit")

	rootCmd.AddCommand(
		newInitCmd(opts),
		newIndexCmd(opts),
		newRemoveCmd(opts),
		newSearchCmd(opts),
		newRecentCmd(opts),
		newDistillCmd(opts),
		newStatusCmd(opts),
		newStatsCmd(opts),
		newDoctorCmd(opts),
		newWatchCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)

	rootCmd.SetVersionTemplate("{{.Version}}\n")

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
