// Package store persists the memory index: chunk metadata, the FTS5
// lexical index, and embedding vectors live in one SQLite database so
// per-file replacement is a single transaction. The HNSW graph is a
// rebuildable cache derived from the embeddings table.
package store

import (
	"fmt"
	"time"

	"github.com/moyger/sentinel/internal/chunk"
)

// IndexedFile records the indexing state of one memory file.
type IndexedFile struct {
	Path        string
	ContentHash string
	LastIndexed time.Time
	ChunkCount  int
}

// LexicalResult is a single FTS5 BM25 search result.
type LexicalResult struct {
	ChunkID string
	// Score is the negated bm25() value; higher is better.
	Score float64
	// MatchedTerms are the sanitized query terms that were matched.
	MatchedTerms []string
}

// VectorResult is a single nearest-neighbor result.
type VectorResult struct {
	ChunkID  string
	Distance float32
	// Score maps distance to [0,1]; higher is better.
	Score float32
}

// Embedding pairs a chunk with its stored vector.
type Embedding struct {
	ChunkID string
	Model   string
	Vector  []float32
}

// SearchRecord is one row of the search diagnostic log.
type SearchRecord struct {
	Query       string
	Mode        string
	ResultCount int
	Degraded    bool
	Took        time.Duration
	At          time.Time
}

// Stats summarizes index contents.
type Stats struct {
	FileCount     int
	ChunkCount    int
	EmbeddedCount int
}

// VectorStoreConfig configures the HNSW vector store.
type VectorStoreConfig struct {
	Dimensions int
	// Metric is "cos" (default) or "l2".
	Metric string
	// M is the HNSW connectivity parameter.
	M int
	// EfSearch is the search expansion factor.
	EfSearch int
}

// ErrDimensionMismatch is returned when a vector's dimensionality does
// not match the store configuration.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// chunkColumns is the column list shared by chunk scans.
const chunkColumns = "id, path, file_type, ordinal, content, token_count, heading, created_at, updated_at"

// scanTarget is implemented by *sql.Row and *sql.Rows.
type scanTarget interface {
	Scan(dest ...any) error
}

func scanChunk(row scanTarget) (*chunk.Chunk, error) {
	var c chunk.Chunk
	var fileType string
	var createdAt, updatedAt int64
	if err := row.Scan(&c.ID, &c.FilePath, &fileType, &c.Ordinal, &c.Content,
		&c.TokenCount, &c.Heading, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.FileType = chunk.FileType(fileType)
	c.CreatedAt = time.Unix(0, createdAt).UTC()
	c.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &c, nil
}
