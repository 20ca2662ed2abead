// Package index coordinates file indexing: chunking, embedding, and
// atomic store replacement, with content hashing to skip unchanged
// files.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"

	"github.com/moyger/sentinel/internal/chunk"
	"github.com/moyger/sentinel/internal/embed"
	senterrors "github.com/moyger/sentinel/internal/errors"
	"github.com/moyger/sentinel/internal/store"
)

// DefaultMaxFileSize caps indexable file size at 10MB. Notes larger
// than that are almost certainly not notes.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// Config contains the coordinator's dependencies and settings.
type Config struct {
	// MemoryDir is the root of the note corpus. Paths in the index
	// are relative to it.
	MemoryDir string

	Store    *store.SQLiteStore
	Vectors  *store.VectorIndex
	Chunker  chunk.Chunker
	Embedder embed.Embedder

	// Include and Exclude are doublestar patterns applied to
	// relative paths during corpus walks.
	Include []string
	Exclude []string

	// MaxFileSize defaults to DefaultMaxFileSize when zero.
	MaxFileSize int64

	Logger *slog.Logger
}

// Status reports a file's indexing state.
type Status struct {
	Path        string
	Indexed     bool
	ContentHash string
	LastIndexed string
	ChunkCount  int
}

// Result summarizes a corpus reindex.
type Result struct {
	Indexed int
	Skipped int
	Failed  int
	Chunks  int
}

// Coordinator indexes files into the store. Per-path locks allow
// concurrent indexing of distinct files while serializing writers of
// the same file.
type Coordinator struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCoordinator validates dependencies and builds a coordinator.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Store == nil || cfg.Chunker == nil {
		return nil, senterrors.InternalError("index coordinator requires a store and a chunker", nil)
	}
	if cfg.MemoryDir == "" {
		return nil, senterrors.InputError("memory directory is required", nil)
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if len(cfg.Include) == 0 {
		cfg.Include = []string{"**/*.md"}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:    cfg,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// pathLock returns the mutex guarding one relative path.
func (c *Coordinator) pathLock(relPath string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[relPath]
	if !ok {
		l = &sync.Mutex{}
		c.locks[relPath] = l
	}
	return l
}

// IndexFile chunks, embeds, and stores one file. When the content
// hash matches the stored record the file is skipped without calling
// the embedder. Returns the file's chunk count.
func (c *Coordinator) IndexFile(ctx context.Context, relPath string) (int, error) {
	lock := c.pathLock(relPath)
	lock.Lock()
	defer lock.Unlock()

	absPath := filepath.Join(c.cfg.MemoryDir, relPath)
	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, senterrors.New(senterrors.ErrCodeFileNotFound, relPath, err)
		}
		return 0, senterrors.New(senterrors.ErrCodeFilePermission, relPath, err)
	}
	if info.Size() > c.cfg.MaxFileSize {
		return 0, senterrors.New(senterrors.ErrCodeFileTooLarge, relPath, nil)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return 0, senterrors.New(senterrors.ErrCodeFilePermission, relPath, err)
	}

	hash := hashContent(content)
	existing, err := c.cfg.Store.GetFile(ctx, relPath)
	if err != nil {
		return 0, err
	}
	if existing != nil && existing.ContentHash == hash {
		if err := c.cfg.Store.CheckIntegrity(ctx, relPath); err == nil {
			c.logger.Debug("content unchanged, skipping",
				slog.String("path", relPath))
			return existing.ChunkCount, nil
		}
		// Referential mismatch between the file record, chunk rows,
		// and FTS rows. Fall through and rebuild the file.
		c.logger.Warn("index inconsistent, rebuilding file",
			slog.String("path", relPath))
	}

	chunks, err := c.cfg.Chunker.Chunk(ctx, &chunk.FileInput{Path: relPath, Content: content})
	if err != nil {
		return 0, err
	}

	vectors := c.embedChunks(ctx, relPath, chunks)

	oldIDs, err := c.cfg.Store.ChunkIDsByPath(ctx, relPath)
	if err != nil {
		return 0, err
	}

	file := &store.IndexedFile{
		Path:        relPath,
		ContentHash: hash,
		LastIndexed: time.Now().UTC(),
	}
	model := ""
	if c.cfg.Embedder != nil {
		model = c.cfg.Embedder.ModelName()
	}
	if err := c.cfg.Store.ReplaceFile(ctx, file, chunks, vectors, model); err != nil {
		return 0, senterrors.New(senterrors.ErrCodeIndexFailed, relPath, err)
	}

	c.updateVectorIndex(ctx, oldIDs, chunks, vectors)

	c.logger.Info("indexed file",
		slog.String("path", relPath),
		slog.Int("chunks", len(chunks)),
		slog.Int("embedded", len(vectors)))
	return len(chunks), nil
}

// embedChunks returns vectors for as many chunks as the embedder can
// serve. Failures leave chunks lexical-only rather than failing the
// index pass.
func (c *Coordinator) embedChunks(ctx context.Context, relPath string, chunks []*chunk.Chunk) map[string][]float32 {
	if c.cfg.Embedder == nil || len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vecs, err := c.cfg.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		c.logger.Warn("embedding failed, indexing lexical-only",
			slog.String("path", relPath),
			slog.String("error", err.Error()))
		return nil
	}

	vectors := make(map[string][]float32, len(chunks))
	for i, ch := range chunks {
		if i < len(vecs) && len(vecs[i]) > 0 {
			vectors[ch.ID] = vecs[i]
		}
	}
	return vectors
}

// updateVectorIndex swaps a file's vectors in the HNSW sidecar. The
// sidecar is a cache; failures are logged and left for the next
// rebuild.
func (c *Coordinator) updateVectorIndex(ctx context.Context, oldIDs []string, chunks []*chunk.Chunk, vectors map[string][]float32) {
	if c.cfg.Vectors == nil {
		return
	}
	if err := c.cfg.Vectors.Delete(ctx, oldIDs); err != nil {
		c.logger.Warn("vector delete failed", slog.String("error", err.Error()))
	}
	if len(vectors) == 0 {
		return
	}
	ids := make([]string, 0, len(vectors))
	vecs := make([][]float32, 0, len(vectors))
	for _, ch := range chunks {
		if v, ok := vectors[ch.ID]; ok {
			ids = append(ids, ch.ID)
			vecs = append(vecs, v)
		}
	}
	if err := c.cfg.Vectors.Add(ctx, ids, vecs); err != nil {
		c.logger.Warn("vector add failed", slog.String("error", err.Error()))
	}
}

// RemoveFile drops a file from the index and the vector sidecar.
func (c *Coordinator) RemoveFile(ctx context.Context, relPath string) error {
	lock := c.pathLock(relPath)
	lock.Lock()
	defer lock.Unlock()

	oldIDs, err := c.cfg.Store.ChunkIDsByPath(ctx, relPath)
	if err != nil {
		return err
	}
	if err := c.cfg.Store.RemoveFile(ctx, relPath); err != nil {
		return err
	}
	if c.cfg.Vectors != nil && len(oldIDs) > 0 {
		if err := c.cfg.Vectors.Delete(ctx, oldIDs); err != nil {
			c.logger.Warn("vector delete failed", slog.String("error", err.Error()))
		}
	}
	c.logger.Info("removed file from index", slog.String("path", relPath))
	return nil
}

// Status reports whether and when a path was indexed.
func (c *Coordinator) Status(ctx context.Context, relPath string) (*Status, error) {
	file, err := c.cfg.Store.GetFile(ctx, relPath)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return &Status{Path: relPath}, nil
	}
	return &Status{
		Path:        relPath,
		Indexed:     true,
		ContentHash: file.ContentHash,
		LastIndexed: file.LastIndexed.Format("2006-01-02T15:04:05Z07:00"),
		ChunkCount:  file.ChunkCount,
	}, nil
}

// ReindexAll walks the corpus and indexes every matching file.
// showProgress renders a terminal progress bar.
func (c *Coordinator) ReindexAll(ctx context.Context, showProgress bool) (*Result, error) {
	paths, err := c.ScanCorpus()
	if err != nil {
		return nil, err
	}

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.Default(int64(len(paths)), "indexing")
	}

	res := &Result{}
	for _, relPath := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n, err := c.IndexFile(ctx, relPath)
		if err != nil {
			c.logger.Warn("reindex failed for file",
				slog.String("path", relPath),
				slog.String("error", err.Error()))
			res.Failed++
		} else {
			res.Indexed++
			res.Chunks += n
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	// Drop index records for files that no longer exist on disk.
	known := make(map[string]bool, len(paths))
	for _, p := range paths {
		known[p] = true
	}
	files, err := c.cfg.Store.ListFiles(ctx)
	if err != nil {
		return res, err
	}
	for _, f := range files {
		if !known[f.Path] {
			if err := c.RemoveFile(ctx, f.Path); err != nil {
				c.logger.Warn("failed to prune deleted file",
					slog.String("path", f.Path),
					slog.String("error", err.Error()))
			}
		}
	}

	return res, nil
}

// ScanCorpus returns the relative paths of all files matching the
// include patterns and none of the exclude patterns, sorted.
func (c *Coordinator) ScanCorpus() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(c.cfg.MemoryDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != c.cfg.MemoryDir {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(c.cfg.MemoryDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if c.Matches(rel) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// Matches reports whether a relative path belongs to the corpus.
func (c *Coordinator) Matches(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, pattern := range c.cfg.Exclude {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return false
		}
	}
	for _, pattern := range c.cfg.Include {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
	}
	return false
}

// hashContent returns the sha256 hex digest of file content.
func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
