package index

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyger/sentinel/internal/chunk"
	"github.com/moyger/sentinel/internal/embed"
	senterrors "github.com/moyger/sentinel/internal/errors"
	"github.com/moyger/sentinel/internal/store"
)

// countingEmbedder counts batch calls to prove hash-skip avoids the
// embedder entirely.
type countingEmbedder struct {
	inner      embed.Embedder
	batchCalls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batchCalls.Add(1)
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) Dimensions() int                { return c.inner.Dimensions() }
func (c *countingEmbedder) ModelName() string              { return c.inner.ModelName() }
func (c *countingEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }
func (c *countingEmbedder) Close() error                   { return c.inner.Close() }

type coordFixture struct {
	dir      string
	store    *store.SQLiteStore
	vectors  *store.VectorIndex
	embedder *countingEmbedder
	coord    *Coordinator
}

func newCoordFixture(t *testing.T) *coordFixture {
	t.Helper()

	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, ".data"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	inner := embed.NewStaticEmbedder()
	embedder := &countingEmbedder{inner: inner}

	vectors, err := store.NewVectorIndex(store.VectorStoreConfig{Dimensions: inner.Dimensions()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	chunker, err := chunk.NewWindowChunker(chunk.DefaultWindowWords, chunk.DefaultOverlapWords)
	require.NoError(t, err)

	coord, err := NewCoordinator(Config{
		MemoryDir: dir,
		Store:     s,
		Vectors:   vectors,
		Chunker:   chunker,
		Embedder:  embedder,
		Exclude:   []string{"**/.*", "**/*~"},
	})
	require.NoError(t, err)

	return &coordFixture{dir: dir, store: s, vectors: vectors, embedder: embedder, coord: coord}
}

func (f *coordFixture) writeFile(t *testing.T, relPath, content string) {
	t.Helper()
	abs := filepath.Join(f.dir, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestIndexFile_ChunksAndEmbeds(t *testing.T) {
	f := newCoordFixture(t)
	ctx := context.Background()

	f.writeFile(t, "topics/go.md", "goroutines share memory by communicating over channels")

	n, err := f.coord.IndexFile(ctx, "topics/go.md")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(1), f.embedder.batchCalls.Load())

	file, err := f.store.GetFile(ctx, "topics/go.md")
	require.NoError(t, err)
	require.NotNil(t, file)
	assert.Equal(t, 1, file.ChunkCount)
	assert.Equal(t, 1, f.vectors.Count())
}

func TestIndexFile_UnchangedContentSkipsEmbedder(t *testing.T) {
	f := newCoordFixture(t)
	ctx := context.Background()

	f.writeFile(t, "notes.md", "stable content that does not change")

	n1, err := f.coord.IndexFile(ctx, "notes.md")
	require.NoError(t, err)
	require.Equal(t, int64(1), f.embedder.batchCalls.Load())

	n2, err := f.coord.IndexFile(ctx, "notes.md")
	require.NoError(t, err)
	assert.Equal(t, n1, n2)
	// No embedding work on the second pass
	assert.Equal(t, int64(1), f.embedder.batchCalls.Load())
}

func TestIndexFile_InconsistentIndexForcesReindex(t *testing.T) {
	f := newCoordFixture(t)
	ctx := context.Background()

	f.writeFile(t, "notes.md", "lexical rows can vanish out of band")
	_, err := f.coord.IndexFile(ctx, "notes.md")
	require.NoError(t, err)
	require.Equal(t, int64(1), f.embedder.batchCalls.Load())

	// Drop the FTS rows behind the store's back, leaving the file
	// record and chunk rows in place. The content hash still matches,
	// but the hash-skip must not trust a broken index.
	db, err := sql.Open("sqlite", filepath.Join(f.dir, ".data", "index.db"))
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "DELETE FROM chunk_fts")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	results, err := f.store.SearchLexical(ctx, "lexical rows", 10, nil)
	require.NoError(t, err)
	require.Empty(t, results)

	_, err = f.coord.IndexFile(ctx, "notes.md")
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.embedder.batchCalls.Load())

	results, err = f.store.SearchLexical(ctx, "lexical rows", 10, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestIndexFile_ChangedContentReindexes(t *testing.T) {
	f := newCoordFixture(t)
	ctx := context.Background()

	f.writeFile(t, "notes.md", "first draft")
	_, err := f.coord.IndexFile(ctx, "notes.md")
	require.NoError(t, err)

	f.writeFile(t, "notes.md", "second draft with different words")
	_, err = f.coord.IndexFile(ctx, "notes.md")
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.embedder.batchCalls.Load())

	results, err := f.store.SearchLexical(ctx, "second draft", 10, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestIndexFile_MissingFile(t *testing.T) {
	f := newCoordFixture(t)

	_, err := f.coord.IndexFile(context.Background(), "absent.md")
	require.Error(t, err)
	assert.Equal(t, senterrors.ErrCodeFileNotFound, senterrors.GetCode(err))
}

func TestRemoveFile_PurgesStoreAndVectors(t *testing.T) {
	f := newCoordFixture(t)
	ctx := context.Background()

	f.writeFile(t, "gone.md", "content that will be removed")
	_, err := f.coord.IndexFile(ctx, "gone.md")
	require.NoError(t, err)
	require.Equal(t, 1, f.vectors.Count())

	require.NoError(t, f.coord.RemoveFile(ctx, "gone.md"))

	file, err := f.store.GetFile(ctx, "gone.md")
	require.NoError(t, err)
	assert.Nil(t, file)
	assert.Equal(t, 0, f.vectors.Count())
}

func TestStatus(t *testing.T) {
	f := newCoordFixture(t)
	ctx := context.Background()

	st, err := f.coord.Status(ctx, "unknown.md")
	require.NoError(t, err)
	assert.False(t, st.Indexed)

	f.writeFile(t, "known.md", "indexed content")
	_, err = f.coord.IndexFile(ctx, "known.md")
	require.NoError(t, err)

	st, err = f.coord.Status(ctx, "known.md")
	require.NoError(t, err)
	assert.True(t, st.Indexed)
	assert.Equal(t, 1, st.ChunkCount)
	assert.NotEmpty(t, st.ContentHash)
	assert.NotEmpty(t, st.LastIndexed)
}

func TestStatus_LastIndexedIsIndexTimeNotModTime(t *testing.T) {
	f := newCoordFixture(t)
	ctx := context.Background()

	f.writeFile(t, "old.md", "written long ago, indexed today")
	past := time.Now().Add(-90 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(f.dir, "old.md"), past, past))

	_, err := f.coord.IndexFile(ctx, "old.md")
	require.NoError(t, err)

	st, err := f.coord.Status(ctx, "old.md")
	require.NoError(t, err)
	indexedAt, err := time.Parse("2006-01-02T15:04:05Z07:00", st.LastIndexed)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), indexedAt, time.Minute)
}

func TestReindexAll_WalksAndPrunes(t *testing.T) {
	f := newCoordFixture(t)
	ctx := context.Background()

	f.writeFile(t, "soul.md", "identity file content")
	f.writeFile(t, "daily/2026-08-30.md", "journal entry content")
	f.writeFile(t, "topics/go.md", "topic note content")
	f.writeFile(t, "ignore.txt", "not markdown")
	f.writeFile(t, ".hidden/secret.md", "hidden content")

	res, err := f.coord.ReindexAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Indexed)
	assert.Zero(t, res.Failed)

	// A file deleted from disk is pruned on the next full pass
	require.NoError(t, os.Remove(filepath.Join(f.dir, "topics/go.md")))
	_, err = f.coord.ReindexAll(ctx, false)
	require.NoError(t, err)

	file, err := f.store.GetFile(ctx, "topics/go.md")
	require.NoError(t, err)
	assert.Nil(t, file)
}

func TestMatches(t *testing.T) {
	f := newCoordFixture(t)

	assert.True(t, f.coord.Matches("daily/2026-08-30.md"))
	assert.True(t, f.coord.Matches("soul.md"))
	assert.False(t, f.coord.Matches("notes.txt"))
	assert.False(t, f.coord.Matches("drafts/note.md~"))
	assert.False(t, f.coord.Matches(".obsidian/workspace.md"))
}

func TestHashContent_Deterministic(t *testing.T) {
	a := hashContent([]byte("same"))
	b := hashContent([]byte("same"))
	c := hashContent([]byte("different"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
	assert.False(t, strings.ContainsAny(a, "ABCDEF"))
}
