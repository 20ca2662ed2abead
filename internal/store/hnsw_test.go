package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyger/sentinel/internal/chunk"
)

func newTestVectorIndex(t *testing.T, dims int) *VectorIndex {
	t.Helper()
	v, err := NewVectorIndex(VectorStoreConfig{Dimensions: dims})
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

func TestVectorIndex_AddAndSearch(t *testing.T) {
	v := newTestVectorIndex(t, 3)
	ctx := context.Background()

	err := v.Add(ctx,
		[]string{"north", "east", "up"},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}})
	require.NoError(t, err)
	assert.Equal(t, 3, v.Count())

	results, err := v.Search(ctx, []float32{0.95, 0.05, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "north", results[0].ChunkID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 0.05)
}

func TestVectorIndex_DimensionMismatch(t *testing.T) {
	v := newTestVectorIndex(t, 3)
	ctx := context.Background()

	err := v.Add(ctx, []string{"bad"}, [][]float32{{1, 2}})
	require.Error(t, err)
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})

	_, err = v.Search(ctx, []float32{1, 2, 3, 4}, 1)
	require.Error(t, err)
}

func TestVectorIndex_EmptySearch(t *testing.T) {
	v := newTestVectorIndex(t, 3)

	results, err := v.Search(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorIndex_DeleteIsLazy(t *testing.T) {
	v := newTestVectorIndex(t, 3)
	ctx := context.Background()

	require.NoError(t, v.Add(ctx,
		[]string{"keep", "drop"},
		[][]float32{{1, 0, 0}, {0.9, 0.1, 0}}))
	require.NoError(t, v.Delete(ctx, []string{"drop"}))

	assert.False(t, v.Contains("drop"))
	assert.Equal(t, 1, v.Count())
	assert.Equal(t, 1, v.Orphans())

	results, err := v.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "drop", r.ChunkID)
	}
}

func TestVectorIndex_ReAddReplacesVector(t *testing.T) {
	v := newTestVectorIndex(t, 3)
	ctx := context.Background()

	require.NoError(t, v.Add(ctx, []string{"a"}, [][]float32{{1, 0, 0}}))
	require.NoError(t, v.Add(ctx, []string{"a"}, [][]float32{{0, 1, 0}}))
	assert.Equal(t, 1, v.Count())

	results, err := v.Search(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 0.01)
}

func TestVectorIndex_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")
	ctx := context.Background()

	v1 := newTestVectorIndex(t, 3)
	require.NoError(t, v1.Add(ctx,
		[]string{"x", "y"},
		[][]float32{{1, 0, 0}, {0, 1, 0}}))
	require.NoError(t, v1.Save(path))

	dims, err := SavedIndexDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 3, dims)

	v2 := newTestVectorIndex(t, 3)
	require.NoError(t, v2.Load(path))
	assert.Equal(t, 2, v2.Count())

	results, err := v2.Search(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].ChunkID)
}

func TestSavedIndexDimensions_MissingIsZero(t *testing.T) {
	dims, err := SavedIndexDimensions(filepath.Join(t.TempDir(), "absent.hnsw"))
	require.NoError(t, err)
	assert.Equal(t, 0, dims)
}

func TestVectorIndex_RebuildFromStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c1 := testChunk("r.md", 0, "alpha content")
	c2 := testChunk("r.md", 1, "beta content")
	c1.UpdatedAt = time.Now().UTC()
	vectors := map[string][]float32{
		c1.ID: {1, 0, 0},
		c2.ID: {0, 1, 0},
	}
	require.NoError(t, s.ReplaceFile(ctx, testFile("r.md"),
		[]*chunk.Chunk{c1, c2}, vectors, "static"))

	v := newTestVectorIndex(t, 3)
	added, err := v.RebuildFrom(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 2, v.Count())

	results, err := v.Search(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, c2.ID, results[0].ChunkID)
}

func TestNormalizeInPlace(t *testing.T) {
	v := []float32{3, 4}
	normalizeInPlace(v)
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)

	zero := []float32{0, 0}
	normalizeInPlace(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}
