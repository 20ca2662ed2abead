package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyger/sentinel/internal/chunk"
	"github.com/moyger/sentinel/internal/distill"
	"github.com/moyger/sentinel/internal/embed"
	"github.com/moyger/sentinel/internal/index"
	"github.com/moyger/sentinel/internal/search"
	"github.com/moyger/sentinel/internal/store"
)

// These tests run the full pipeline: files on disk, through the
// coordinator, into the store and vector index, out through search.

type env struct {
	memoryDir string
	store     *store.SQLiteStore
	vectors   *store.VectorIndex
	coord     *index.Coordinator
	engine    *search.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()

	memoryDir := t.TempDir()
	embedder := embed.NewStaticEmbedder()

	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	vectors, err := store.NewVectorIndex(store.VectorStoreConfig{
		Dimensions: embedder.Dimensions(),
	})
	require.NoError(t, err)

	chunker, err := chunk.NewWindowChunker(chunk.DefaultWindowWords, chunk.DefaultOverlapWords)
	require.NoError(t, err)

	coord, err := index.NewCoordinator(index.Config{
		MemoryDir: memoryDir,
		Store:     s,
		Vectors:   vectors,
		Chunker:   chunker,
		Embedder:  embedder,
	})
	require.NoError(t, err)

	engine, err := search.NewEngine(s, vectors, embedder, search.Config{}, nil)
	require.NoError(t, err)

	return &env{
		memoryDir: memoryDir,
		store:     s,
		vectors:   vectors,
		coord:     coord,
		engine:    engine,
	}
}

func (e *env) write(t *testing.T, relPath, content string) {
	t.Helper()
	full := filepath.Join(e.memoryDir, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestIndexThenHybridSearch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.write(t, "topics/databases.md",
		"# Databases\n\nSQLite WAL mode allows readers to proceed while a single writer commits.\n")
	e.write(t, "topics/golang.md",
		"# Go\n\nGoroutines are cheap, channels carry ownership between them.\n")

	for _, path := range []string{"topics/databases.md", "topics/golang.md"} {
		n, err := e.coord.IndexFile(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	resp, err := e.engine.Search(ctx, "sqlite wal writer", search.Options{})
	require.NoError(t, err)

	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "topics/databases.md", resp.Results[0].Chunk.FilePath)
	assert.Equal(t, search.ModeHybrid, resp.Mode)
	assert.False(t, resp.Degraded)
}

func TestEditedFileIsReindexedAndSearchable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.write(t, "topics/tools.md", "# Tools\n\nNothing noteworthy yet.\n")
	_, err := e.coord.IndexFile(ctx, "topics/tools.md")
	require.NoError(t, err)

	e.write(t, "topics/tools.md", "# Tools\n\nRipgrep is the fastest way to grep a large tree.\n")
	n, err := e.coord.IndexFile(ctx, "topics/tools.md")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	resp, err := e.engine.Search(ctx, "ripgrep grep tree", search.Options{Mode: search.ModeLexical})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Contains(t, resp.Results[0].Chunk.Content, "Ripgrep")

	// The old content must be gone from the index.
	resp, err = e.engine.Search(ctx, "noteworthy", search.Options{Mode: search.ModeLexical})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestRemovedFileDisappearsFromSearch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.write(t, "topics/temp.md", "# Temp\n\nEphemeral scratch notes about kubernetes ingress.\n")
	_, err := e.coord.IndexFile(ctx, "topics/temp.md")
	require.NoError(t, err)

	require.NoError(t, e.coord.RemoveFile(ctx, "topics/temp.md"))

	resp, err := e.engine.Search(ctx, "kubernetes ingress", search.Options{Mode: search.ModeLexical})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 0, e.vectors.Count())
}

func TestVectorSidecarSurvivesSaveAndLoad(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.write(t, "topics/espresso.md", "# Espresso\n\nGrind finer when shots run fast and sour.\n")
	_, err := e.coord.IndexFile(ctx, "topics/espresso.md")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	require.NoError(t, e.vectors.Save(path))

	reloaded, err := store.NewVectorIndex(store.VectorStoreConfig{
		Dimensions: e.vectors.Dimensions(),
	})
	require.NoError(t, err)
	require.NoError(t, reloaded.Load(path))
	assert.Equal(t, e.vectors.Count(), reloaded.Count())

	engine, err := search.NewEngine(e.store, reloaded, embed.NewStaticEmbedder(), search.Config{}, nil)
	require.NoError(t, err)

	resp, err := engine.Search(ctx, "espresso grind", search.Options{Mode: search.ModeVector})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results)
}

func TestDistillThenApplyThenSearch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.write(t, "user.md", "# User\n\n## Preferences\n\n- terse commit messages\n")

	logText := "# 2026-08-30\n\nI prefer dark mode for every editor.\n"
	date, err := time.Parse("2006-01-02", "2026-08-30")
	require.NoError(t, err)
	res := distill.NewEngine(distill.FileKnownFacts(e.memoryDir)).Distill(logText, date)
	require.Len(t, res.Proposals, 1)

	applier := distill.NewApplier(e.memoryDir, nil)
	require.NoError(t, applier.Apply(res.Proposals))

	_, err = e.coord.IndexFile(ctx, "user.md")
	require.NoError(t, err)

	resp, err := e.engine.Search(ctx, "dark mode", search.Options{Mode: search.ModeLexical})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "user.md", resp.Results[0].Chunk.FilePath)
	assert.Equal(t, chunk.FileTypeCore, resp.Results[0].Chunk.FileType)
}
