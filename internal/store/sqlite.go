package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/moyger/sentinel/internal/chunk"
	senterrors "github.com/moyger/sentinel/internal/errors"
)

const (
	dbFileName   = "index.db"
	lockFileName = "sentinel.lock"
)

// SQLiteStore is the index store of record. Chunk rows, their FTS5
// entries, and their embedding vectors are written in one transaction,
// so readers always see a complete per-file chunk set.
type SQLiteStore struct {
	db       *sql.DB
	dataDir  string
	fileLock *flock.Flock
}

// Open opens (or creates) the index store under dataDir. A process
// lock guards the directory; a second opener fails with a concurrency
// conflict instead of corrupting the database.
func Open(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	fileLock := flock.New(filepath.Join(dataDir, lockFileName))
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire data dir lock: %w", err)
	}
	if !locked {
		return nil, senterrors.ConflictError(
			fmt.Sprintf("another sentinel process holds %s", dataDir), nil)
	}

	// Pragmas go in the DSN so every pooled connection gets them;
	// PRAGMA statements issued over database/sql only reach one.
	dsn := "file:" + filepath.Join(dataDir, dbFileName) + "?" + strings.Join([]string{
		"_pragma=journal_mode(WAL)",
		"_pragma=busy_timeout(5000)",
		"_pragma=synchronous(NORMAL)",
		"_pragma=foreign_keys(1)",
		"_pragma=cache_size(-65536)",
		"_pragma=temp_store(MEMORY)",
	}, "&")
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = fileLock.Unlock()
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{db: db, dataDir: dataDir, fileLock: fileLock}
	if err := s.init(); err != nil {
		_ = db.Close()
		_ = fileLock.Unlock()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		path         TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		last_indexed INTEGER NOT NULL,
		chunk_count  INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id          TEXT PRIMARY KEY,
		path        TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
		file_type   TEXT NOT NULL,
		ordinal     INTEGER NOT NULL,
		content     TEXT NOT NULL,
		token_count INTEGER NOT NULL,
		heading     TEXT NOT NULL DEFAULT '',
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_path ON chunks(path);
	CREATE INDEX IF NOT EXISTS idx_chunks_updated ON chunks(updated_at DESC);

	CREATE VIRTUAL TABLE IF NOT EXISTS chunk_fts USING fts5(
		content,
		chunk_id UNINDEXED,
		tokenize='unicode61'
	);

	CREATE TABLE IF NOT EXISTS embeddings (
		chunk_id TEXT PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
		model    TEXT NOT NULL,
		dims     INTEGER NOT NULL,
		vector   BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS search_history (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		query        TEXT NOT NULL,
		mode         TEXT NOT NULL,
		result_count INTEGER NOT NULL,
		degraded     INTEGER NOT NULL,
		took_ms      INTEGER NOT NULL,
		at           INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// ReplaceFile atomically replaces all index entries for a file: old
// chunk, FTS, and embedding rows go and the new set arrives in one
// transaction. vectors may omit chunks whose embedding failed; those
// chunks stay lexically searchable.
func (s *SQLiteStore) ReplaceFile(ctx context.Context, file *IndexedFile, chunks []*chunk.Chunk, vectors map[string][]float32, model string) error {
	if file == nil || file.Path == "" {
		return senterrors.InputError("file record with path is required", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunk_fts WHERE chunk_id IN (SELECT id FROM chunks WHERE path = ?)`, file.Path); err != nil {
		return fmt.Errorf("delete fts rows: %w", err)
	}
	// Embedding rows cascade with their chunks.
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE path = ?`, file.Path); err != nil {
		return fmt.Errorf("delete chunk rows: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO files (path, content_hash, last_indexed, chunk_count)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			content_hash = excluded.content_hash,
			last_indexed = excluded.last_indexed,
			chunk_count = excluded.chunk_count`,
		file.Path, file.ContentHash, file.LastIndexed.UnixNano(), len(chunks)); err != nil {
		return fmt.Errorf("upsert file row: %w", err)
	}

	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (`+chunkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.FilePath, string(c.FileType), c.Ordinal, c.Content,
			c.TokenCount, c.Heading, c.CreatedAt.UnixNano(), c.UpdatedAt.UnixNano()); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunk_fts (content, chunk_id) VALUES (?, ?)`, c.Content, c.ID); err != nil {
			return fmt.Errorf("insert fts row for %s: %w", c.ID, err)
		}
		if vec, ok := vectors[c.ID]; ok {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO embeddings (chunk_id, model, dims, vector) VALUES (?, ?, ?, ?)`,
				c.ID, model, len(vec), encodeVector(vec)); err != nil {
				return fmt.Errorf("insert embedding for %s: %w", c.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace of %s: %w", file.Path, err)
	}
	return nil
}

// RemoveFile drops a file and all its index entries. Removing an
// unknown path is a no-op.
func (s *SQLiteStore) RemoveFile(ctx context.Context, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunk_fts WHERE chunk_id IN (SELECT id FROM chunks WHERE path = ?)`, path); err != nil {
		return fmt.Errorf("delete fts rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete chunk rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete file row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remove of %s: %w", path, err)
	}
	return nil
}

// GetFile returns the indexing record for a path, or nil when the path
// has never been indexed.
func (s *SQLiteStore) GetFile(ctx context.Context, path string) (*IndexedFile, error) {
	var f IndexedFile
	var lastIndexed int64
	err := s.db.QueryRowContext(ctx,
		`SELECT path, content_hash, last_indexed, chunk_count FROM files WHERE path = ?`, path).
		Scan(&f.Path, &f.ContentHash, &lastIndexed, &f.ChunkCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query file %s: %w", path, err)
	}
	f.LastIndexed = time.Unix(0, lastIndexed).UTC()
	return &f, nil
}

// ListFiles returns all indexed file records.
func (s *SQLiteStore) ListFiles(ctx context.Context) ([]*IndexedFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, content_hash, last_indexed, chunk_count FROM files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []*IndexedFile
	for rows.Next() {
		var f IndexedFile
		var lastIndexed int64
		if err := rows.Scan(&f.Path, &f.ContentHash, &lastIndexed, &f.ChunkCount); err != nil {
			return nil, err
		}
		f.LastIndexed = time.Unix(0, lastIndexed).UTC()
		files = append(files, &f)
	}
	return files, rows.Err()
}

// ChunkIDsByPath returns the IDs of a file's chunks in ordinal order.
func (s *SQLiteStore) ChunkIDsByPath(ctx context.Context, path string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM chunks WHERE path = ? ORDER BY ordinal`, path)
	if err != nil {
		return nil, fmt.Errorf("query chunk ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetChunks fetches chunks by ID, preserving the requested order.
// Unknown IDs are skipped.
func (s *SQLiteStore) GetChunks(ctx context.Context, ids []string) ([]*chunk.Chunk, error) {
	if len(ids) == 0 {
		return []*chunk.Chunk{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*chunk.Chunk, len(ids))
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]*chunk.Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

// ChunksSince returns chunks updated at or after the cutoff, newest
// first. limit <= 0 means no limit.
func (s *SQLiteStore) ChunksSince(ctx context.Context, cutoff time.Time, limit int) ([]*chunk.Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE updated_at >= ? ORDER BY updated_at DESC, ordinal ASC`
	args := []any{cutoff.UnixNano()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []*chunk.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// SearchLexical runs a BM25 query over the FTS5 index. Raw input is
// sanitized to plain terms; terms are OR-combined for recall over
// short personal notes. Malformed input yields empty results, never an
// engine error.
func (s *SQLiteStore) SearchLexical(ctx context.Context, query string, limit int, fileTypes []chunk.FileType) ([]*LexicalResult, error) {
	terms := SanitizeQuery(query)
	if len(terms) == 0 {
		return []*LexicalResult{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	match := strings.Join(terms, " OR ")

	sqlQuery := `
		SELECT f.chunk_id, bm25(chunk_fts) AS score
		FROM chunk_fts f
		JOIN chunks c ON c.id = f.chunk_id
		WHERE chunk_fts MATCH ?`
	args := []any{match}

	if len(fileTypes) > 0 {
		placeholders := strings.Repeat("?,", len(fileTypes)-1) + "?"
		sqlQuery += ` AND c.file_type IN (` + placeholders + `)`
		for _, ft := range fileTypes {
			args = append(args, string(ft))
		}
	}
	sqlQuery += ` ORDER BY score LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		// Residual FTS5 parse errors are treated as no results.
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []*LexicalResult{}, nil
		}
		return nil, senterrors.QueryError("lexical search failed", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*LexicalResult
	for rows.Next() {
		var r LexicalResult
		if err := rows.Scan(&r.ChunkID, &r.Score); err != nil {
			return nil, err
		}
		// bm25() is negative where lower is better.
		r.Score = -r.Score
		r.MatchedTerms = terms
		results = append(results, &r)
	}
	return results, rows.Err()
}

// AllEmbeddings streams every stored vector, used to rebuild the HNSW
// graph when its sidecar is missing or stale.
func (s *SQLiteStore) AllEmbeddings(ctx context.Context, fn func(e *Embedding) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT chunk_id, model, vector FROM embeddings`)
	if err != nil {
		return fmt.Errorf("query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var e Embedding
		var blob []byte
		if err := rows.Scan(&e.ChunkID, &e.Model, &blob); err != nil {
			return err
		}
		e.Vector = decodeVector(blob)
		if err := fn(&e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CheckIntegrity verifies that a file's chunk rows, FTS rows, and
// recorded chunk count agree. A mismatch reports index corruption and
// the caller should force a reindex of the path.
func (s *SQLiteStore) CheckIntegrity(ctx context.Context, path string) error {
	file, err := s.GetFile(ctx, path)
	if err != nil {
		return err
	}
	if file == nil {
		return nil
	}

	var chunkRows, ftsRows int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE path = ?`, path).Scan(&chunkRows); err != nil {
		return fmt.Errorf("count chunk rows: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunk_fts WHERE chunk_id IN (SELECT id FROM chunks WHERE path = ?)`, path).Scan(&ftsRows); err != nil {
		return fmt.Errorf("count fts rows: %w", err)
	}

	if chunkRows != file.ChunkCount || ftsRows != chunkRows {
		return senterrors.CorruptionError(path, fmt.Errorf(
			"recorded %d chunks, found %d chunk rows and %d fts rows",
			file.ChunkCount, chunkRows, ftsRows))
	}
	return nil
}

// RecordSearch appends to the search diagnostic log.
func (s *SQLiteStore) RecordSearch(ctx context.Context, rec *SearchRecord) error {
	degraded := 0
	if rec.Degraded {
		degraded = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_history (query, mode, result_count, degraded, took_ms, at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Query, rec.Mode, rec.ResultCount, degraded, rec.Took.Milliseconds(), rec.At.UnixNano())
	return err
}

// RecentSearches returns the latest diagnostic log rows, newest first.
func (s *SQLiteStore) RecentSearches(ctx context.Context, limit int) ([]*SearchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT query, mode, result_count, degraded, took_ms, at
		 FROM search_history ORDER BY at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []*SearchRecord
	for rows.Next() {
		var r SearchRecord
		var degraded int
		var tookMS, at int64
		if err := rows.Scan(&r.Query, &r.Mode, &r.ResultCount, &degraded, &tookMS, &at); err != nil {
			return nil, err
		}
		r.Degraded = degraded != 0
		r.Took = time.Duration(tookMS) * time.Millisecond
		r.At = time.Unix(0, at).UTC()
		records = append(records, &r)
	}
	return records, rows.Err()
}

// Stats returns index-wide counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&st.FileCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&st.ChunkCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&st.EmbeddedCount); err != nil {
		return nil, err
	}
	return &st, nil
}

// Close checkpoints the WAL, closes the database, and releases the
// directory lock.
func (s *SQLiteStore) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	err := s.db.Close()
	if s.fileLock != nil {
		_ = s.fileLock.Unlock()
	}
	return err
}

// encodeVector packs a float32 slice into little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector unpacks little-endian bytes into a float32 slice.
func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
