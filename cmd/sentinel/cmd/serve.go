package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "github.com/moyger/sentinel/internal/mcp"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve memory tools over MCP",
		Long: `Expose search, recency, indexing, and distillation as MCP tools on
stdio for agent clients. Runs until the client disconnects or the
process is interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.saveVectors()

			srv, err := mcpserver.NewServer(a.engine, a.coord, a.distiller(), a.applier(), a.logger)
			if err != nil {
				return err
			}

			a.logger.Info("mcp server starting",
				"transport", transport,
				"memory_dir", a.cfg.Paths.MemoryDir)
			return srv.Serve(ctx, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "MCP transport (stdio)")

	return cmd
}
