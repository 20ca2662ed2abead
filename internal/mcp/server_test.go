package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyger/sentinel/internal/chunk"
	"github.com/moyger/sentinel/internal/distill"
	"github.com/moyger/sentinel/internal/embed"
	"github.com/moyger/sentinel/internal/index"
	"github.com/moyger/sentinel/internal/search"
	"github.com/moyger/sentinel/internal/store"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	memDir := t.TempDir()
	s, err := store.Open(filepath.Join(memDir, ".data"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	embedder := embed.NewStaticEmbedder()
	vectors, err := store.NewVectorIndex(store.VectorStoreConfig{Dimensions: embedder.Dimensions()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	chunker, err := chunk.NewWindowChunker(chunk.DefaultWindowWords, chunk.DefaultOverlapWords)
	require.NoError(t, err)

	coord, err := index.NewCoordinator(index.Config{
		MemoryDir: memDir,
		Store:     s,
		Vectors:   vectors,
		Chunker:   chunker,
		Embedder:  embedder,
	})
	require.NoError(t, err)

	engine, err := search.NewEngine(s, vectors, embedder, search.Config{}, nil)
	require.NoError(t, err)

	srv, err := NewServer(engine, coord, distill.NewEngine(distill.FileKnownFacts(memDir)), distill.NewApplier(memDir, nil), nil)
	require.NoError(t, err)
	return srv, memDir
}

func writeNote(t *testing.T, dir, relPath, content string) {
	t.Helper()
	abs := filepath.Join(dir, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(nil, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestIndexFileAndStatusTools(t *testing.T) {
	srv, memDir := newTestServer(t)
	ctx := context.Background()

	writeNote(t, memDir, "topics/go.md", "goroutines and channels make concurrency tractable")

	_, indexOut, err := srv.indexFileHandler(ctx, nil, IndexFileInput{Path: "topics/go.md"})
	require.NoError(t, err)
	assert.Equal(t, 1, indexOut.ChunkCount)

	_, statusOut, err := srv.indexStatusHandler(ctx, nil, StatusInput{Path: "topics/go.md"})
	require.NoError(t, err)
	assert.True(t, statusOut.Indexed)
	assert.Equal(t, 1, statusOut.ChunkCount)
	assert.NotEmpty(t, statusOut.ContentHash)
	assert.NotEmpty(t, statusOut.LastIndexed)
}

func TestIndexFileTool_RequiresPath(t *testing.T) {
	srv, _ := newTestServer(t)

	_, _, err := srv.indexFileHandler(context.Background(), nil, IndexFileInput{})
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestMemorySearchTool(t *testing.T) {
	srv, memDir := newTestServer(t)
	ctx := context.Background()

	writeNote(t, memDir, "topics/db.md", "postgres replication uses write ahead logging")
	_, _, err := srv.indexFileHandler(ctx, nil, IndexFileInput{Path: "topics/db.md"})
	require.NoError(t, err)

	_, out, err := srv.memorySearchHandler(ctx, nil, SearchInput{Query: "postgres replication"})
	require.NoError(t, err)
	assert.Equal(t, "hybrid", out.Mode)
	assert.False(t, out.Degraded)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, "topics/db.md", out.Results[0].FilePath)
	assert.Equal(t, "topic", out.Results[0].FileType)
}

func TestMemorySearchTool_RequiresQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	_, _, err := srv.memorySearchHandler(context.Background(), nil, SearchInput{})
	assert.Error(t, err)
}

func TestRecentContextTool(t *testing.T) {
	srv, memDir := newTestServer(t)
	ctx := context.Background()

	writeNote(t, memDir, "daily/2026-08-31.md", "worked on the release today")
	_, _, err := srv.indexFileHandler(ctx, nil, IndexFileInput{Path: "daily/2026-08-31.md"})
	require.NoError(t, err)

	_, out, err := srv.recentContextHandler(ctx, nil, RecentInput{Days: 7})
	require.NoError(t, err)
	require.NotEmpty(t, out.Chunks)
	assert.Equal(t, "daily/2026-08-31.md", out.Chunks[0].FilePath)
	assert.Equal(t, "journal", out.Chunks[0].FileType)
}

func TestDistillLogTool(t *testing.T) {
	srv, _ := newTestServer(t)

	_, out, err := srv.distillLogHandler(context.Background(), nil, DistillInput{
		LogText: "I prefer dark mode.",
		Date:    "2026-08-30",
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-08-30", out.Date)
	assert.Equal(t, 1, out.FactCount)
	require.Len(t, out.Proposals, 1)
	assert.Equal(t, "user.md", out.Proposals[0].FilePath)
	assert.False(t, out.Applied)
}

func TestDistillLogTool_ApplyWritesFiles(t *testing.T) {
	srv, memDir := newTestServer(t)
	writeNote(t, memDir, "user.md", "# User\n\n## Preferences\n")

	_, out, err := srv.distillLogHandler(context.Background(), nil, DistillInput{
		LogText: "I prefer dark mode.",
		Apply:   true,
	})
	require.NoError(t, err)
	assert.True(t, out.Applied)

	content, err := os.ReadFile(filepath.Join(memDir, "user.md"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "- dark mode")
}

func TestRemoveFileTool(t *testing.T) {
	srv, memDir := newTestServer(t)
	ctx := context.Background()

	writeNote(t, memDir, "gone.md", "temporary note")
	_, _, err := srv.indexFileHandler(ctx, nil, IndexFileInput{Path: "gone.md"})
	require.NoError(t, err)

	_, out, err := srv.removeFileHandler(ctx, nil, RemoveFileInput{Path: "gone.md"})
	require.NoError(t, err)
	assert.True(t, out.Removed)

	_, statusOut, err := srv.indexStatusHandler(ctx, nil, StatusInput{Path: "gone.md"})
	require.NoError(t, err)
	assert.False(t, statusOut.Indexed)
}

func TestServe_RejectsUnknownTransport(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Error(t, srv.Serve(context.Background(), "websocket"))
}
