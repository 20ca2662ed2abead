// Package mcp exposes the memory index to AI clients over the Model
// Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/moyger/sentinel/internal/distill"
	"github.com/moyger/sentinel/internal/index"
	"github.com/moyger/sentinel/internal/search"
	"github.com/moyger/sentinel/pkg/version"
)

// Server bridges MCP clients with the search engine, the index
// coordinator, and the distiller.
type Server struct {
	mcp       *mcp.Server
	engine    *search.Engine
	coord     *index.Coordinator
	distiller *distill.Engine
	applier   *distill.Applier
	logger    *slog.Logger
}

// NewServer wires the tools onto an MCP server instance.
func NewServer(engine *search.Engine, coord *index.Coordinator, distiller *distill.Engine, applier *distill.Applier, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if coord == nil {
		return nil, errors.New("index coordinator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine:    engine,
		coord:     coord,
		distiller: distiller,
		applier:   applier,
		logger:    logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "Sentinel",
			Version: version.Short(),
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory_search",
		Description: "Search the personal memory corpus. Combines keyword and semantic ranking; responses flag degraded (keyword-only) operation.",
	}, s.memorySearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "recent_context",
		Description: "Retrieve memory chunks updated in the last N days, newest first. Use to load recent context at the start of a session.",
	}, s.recentContextHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "distill_log",
		Description: "Extract durable facts from a daily log and propose memory file updates. Proposals are returned for review; set apply to write them.",
	}, s.distillLogHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Report a file's indexing state: content hash, last indexed time, and chunk count.",
	}, s.indexStatusHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_file",
		Description: "Index or reindex one memory file. Unchanged content is skipped cheaply.",
	}, s.indexFileHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "remove_file",
		Description: "Remove a file's chunks from the memory index.",
	}, s.removeFileHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", 6))
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Serve runs the server over the given transport until the context
// ends. Only stdio is supported.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error",
				slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// parseDate accepts YYYY-MM-DD, defaulting to today.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	return time.Parse("2006-01-02", s)
}
