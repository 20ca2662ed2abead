package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/moyger/sentinel/internal/chunk"
	"github.com/moyger/sentinel/internal/config"
	"github.com/moyger/sentinel/internal/distill"
	"github.com/moyger/sentinel/internal/embed"
	"github.com/moyger/sentinel/internal/index"
	"github.com/moyger/sentinel/internal/logging"
	"github.com/moyger/sentinel/internal/output"
	"github.com/moyger/sentinel/internal/search"
	"github.com/moyger/sentinel/internal/store"
)

// vectorFileName is the HNSW sidecar file under the data directory.
const vectorFileName = "vectors.hnsw"

// app wires the subsystems a subcommand needs. Build one with newApp
// and always defer Close.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	out      *output.Writer
	store    *store.SQLiteStore
	vectors  *store.VectorIndex
	embedder embed.Embedder
	provider string
	fallback bool
	coord    *index.Coordinator
	engine   *search.Engine

	vectorPath string
	logCleanup func()
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	dir := opts.memoryDir
	if dir == "" {
		dir = config.NewConfig().Paths.MemoryDir
		if v := os.Getenv("SENTINEL_MEMORY_DIR"); v != "" {
			dir = v
		}
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if opts.memoryDir != "" {
		cfg.Paths.MemoryDir = opts.memoryDir
	}
	if opts.debug {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// newApp opens the store, builds the embedder, and loads or rebuilds
// the vector sidecar. The store holds an exclusive lock until Close.
func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logPath := cfg.Logging.FilePath
	if logPath == "" {
		logPath = logging.DefaultLogPath()
	}
	logger, logCleanup, err := logging.Setup(logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      logPath,
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: opts.debug,
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:        cfg,
		logger:     logger,
		out:        output.New(os.Stdout),
		vectorPath: filepath.Join(cfg.Paths.DataDir, vectorFileName),
		logCleanup: logCleanup,
	}

	a.store, err = store.Open(cfg.Paths.DataDir)
	if err != nil {
		a.Close()
		return nil, err
	}

	res, err := embed.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.embedder = res.Embedder
	a.provider = res.Provider
	a.fallback = res.Fallback

	if err := a.openVectors(ctx); err != nil {
		a.Close()
		return nil, err
	}

	chunker, err := chunk.NewWindowChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.coord, err = index.NewCoordinator(index.Config{
		MemoryDir: cfg.Paths.MemoryDir,
		Store:     a.store,
		Vectors:   a.vectors,
		Chunker:   chunker,
		Embedder:  a.embedder,
		Include:   cfg.Paths.Include,
		Exclude:   cfg.Paths.Exclude,
		Logger:    logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.engine, err = search.NewEngine(a.store, a.vectors, a.embedder, search.Config{
		Weights: search.Weights{
			Lexical: cfg.Search.LexicalWeight,
			Vector:  cfg.Search.VectorWeight,
		},
		Fallback: a.fallback,
	}, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// openVectors loads the saved sidecar when its dimensionality matches
// the active embedder, otherwise rebuilds it from stored embeddings.
func (a *app) openVectors(ctx context.Context) error {
	dims := a.embedder.Dimensions()

	vectors, err := store.NewVectorIndex(store.VectorStoreConfig{Dimensions: dims})
	if err != nil {
		return err
	}
	a.vectors = vectors

	saved, err := store.SavedIndexDimensions(a.vectorPath)
	if err == nil && saved == dims {
		if err := vectors.Load(a.vectorPath); err == nil {
			return nil
		}
		a.logger.Warn("vector sidecar unreadable, rebuilding",
			slog.String("path", a.vectorPath))
	}

	n, err := vectors.RebuildFrom(ctx, a.store)
	if err != nil {
		return err
	}
	if n > 0 {
		a.logger.Info("vector index rebuilt from store", slog.Int("vectors", n))
	}
	return nil
}

// saveVectors persists the sidecar. Called by commands that changed
// the index; failure is logged, not fatal, since the sidecar can be
// rebuilt from the store.
func (a *app) saveVectors() {
	if a.vectors == nil {
		return
	}
	if err := a.vectors.Save(a.vectorPath); err != nil {
		a.logger.Warn("save vector index", slog.String("error", err.Error()))
	}
}

func (a *app) distiller() *distill.Engine {
	return distill.NewEngine(distill.FileKnownFacts(a.cfg.Paths.MemoryDir))
}

func (a *app) applier() *distill.Applier {
	return distill.NewApplier(a.cfg.Paths.MemoryDir, a.logger)
}

func (a *app) Close() {
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.vectors != nil {
		_ = a.vectors.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logCleanup != nil {
		a.logCleanup()
	}
}
