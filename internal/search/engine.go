package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/moyger/sentinel/internal/chunk"
	"github.com/moyger/sentinel/internal/embed"
	senterrors "github.com/moyger/sentinel/internal/errors"
	"github.com/moyger/sentinel/internal/store"
)

// Engine runs searches over the index store. The vector side is
// optional: with no embedder or an empty vector index the engine
// serves lexical results and flags the response as degraded.
type Engine struct {
	store    *store.SQLiteStore
	vectors  *store.VectorIndex
	embedder embed.Embedder
	// fallback marks the embedder as a stand-in for the configured
	// provider. Vector results still flow but responses are degraded.
	fallback bool
	weights  Weights
	logger   *slog.Logger
}

// Config configures a search engine.
type Config struct {
	Weights Weights
	// Fallback marks the embedder as a degraded substitute.
	Fallback bool
}

// NewEngine builds a search engine. The store is required; vectors and
// embedder may be nil for lexical-only operation.
func NewEngine(s *store.SQLiteStore, vectors *store.VectorIndex, embedder embed.Embedder, cfg Config, logger *slog.Logger) (*Engine, error) {
	if s == nil {
		return nil, senterrors.InternalError("search engine requires a store", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := cfg.Weights
	if w.Lexical == 0 && w.Vector == 0 {
		w = DefaultWeights()
	}
	return &Engine{
		store:    s,
		vectors:  vectors,
		embedder: embedder,
		fallback: cfg.Fallback,
		weights:  w,
		logger:   logger,
	}, nil
}

// Search runs a query and returns ranked chunks. Hybrid requests
// degrade to lexical-only when the vector side is unavailable or the
// embedding call fails; explicit vector requests fail instead.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" && opts.Mode != ModeRecency {
		return &Response{Results: []*Result{}, Mode: ModeLexical, Took: time.Since(start)}, nil
	}

	opts = e.applyDefaults(opts)

	resp, err := e.run(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	resp.Took = time.Since(start)
	e.recordSearch(ctx, query, resp)
	return resp, nil
}

func (e *Engine) run(ctx context.Context, query string, opts Options) (*Response, error) {
	switch opts.Mode {
	case ModeLexical:
		results, err := e.lexicalOnly(ctx, query, opts)
		if err != nil {
			return nil, err
		}
		return &Response{Results: results, Mode: ModeLexical}, nil

	case ModeRecency:
		results, err := e.recency(ctx, opts)
		if err != nil {
			return nil, err
		}
		return &Response{Results: results, Mode: ModeRecency}, nil

	case ModeVector:
		if !e.vectorReady() {
			return nil, senterrors.EmbeddingUnavailable("vector search requested but no embedder is available", nil)
		}
		vecResults, err := e.vectorPhase(ctx, query, candidateLimit(opts.TopK))
		if err != nil {
			return nil, err
		}
		results, err := e.enrich(ctx, fuse(nil, vecResults, Weights{Vector: 1}), opts)
		if err != nil {
			return nil, err
		}
		return &Response{Results: results, Mode: ModeVector, Degraded: e.fallback}, nil

	default:
		return e.hybrid(ctx, query, opts)
	}
}

func (e *Engine) hybrid(ctx context.Context, query string, opts Options) (*Response, error) {
	if !e.vectorReady() {
		results, err := e.lexicalOnly(ctx, query, opts)
		if err != nil {
			return nil, err
		}
		return &Response{Results: results, Mode: ModeLexical, Degraded: true}, nil
	}

	limit := candidateLimit(opts.TopK)

	var lexResults []*store.LexicalResult
	var vecResults []*store.VectorResult
	var lexErr, vecErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexResults, lexErr = e.store.SearchLexical(gctx, query, limit, opts.FileTypes)
		return nil
	})
	g.Go(func() error {
		vecResults, vecErr = e.vectorPhase(gctx, query, limit)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if lexErr != nil && vecErr != nil {
		return nil, senterrors.QueryError("both search phases failed", lexErr)
	}

	degraded := e.fallback
	weights := e.weights
	if opts.Weights != nil {
		weights = *opts.Weights
	}
	mode := ModeHybrid

	if vecErr != nil {
		e.logger.Warn("vector phase failed, serving lexical results",
			slog.String("error", vecErr.Error()))
		vecResults = nil
		degraded = true
		mode = ModeLexical
	}
	if lexErr != nil {
		e.logger.Warn("lexical phase failed, serving vector results",
			slog.String("error", lexErr.Error()))
		lexResults = nil
		degraded = true
		mode = ModeVector
	}

	results, err := e.enrich(ctx, fuse(lexResults, vecResults, weights), opts)
	if err != nil {
		return nil, err
	}
	return &Response{Results: results, Mode: mode, Degraded: degraded}, nil
}

func (e *Engine) lexicalOnly(ctx context.Context, query string, opts Options) ([]*Result, error) {
	lexResults, err := e.store.SearchLexical(ctx, query, candidateLimit(opts.TopK), opts.FileTypes)
	if err != nil {
		return nil, err
	}
	return e.enrich(ctx, fuse(lexResults, nil, Weights{Lexical: 1}), opts)
}

// vectorPhase embeds the query and ranks against the vector index.
func (e *Engine) vectorPhase(ctx context.Context, query string, limit int) ([]*store.VectorResult, error) {
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, senterrors.EmbeddingUnavailable("query embedding failed", err)
	}
	return e.vectors.Search(ctx, vec, limit)
}

// enrich loads chunk rows for fused candidates, applies the file type
// filter, and orders the final result set. Ties on score go to the
// more recently updated chunk.
func (e *Engine) enrich(ctx context.Context, fused []*fusedCandidate, opts Options) ([]*Result, error) {
	if len(fused) == 0 {
		return []*Result{}, nil
	}

	ids := make([]string, len(fused))
	byID := make(map[string]*fusedCandidate, len(fused))
	for i, c := range fused {
		ids[i] = c.ChunkID
		byID[c.ChunkID] = c
	}

	chunks, err := e.store.GetChunks(ctx, ids)
	if err != nil {
		return nil, err
	}

	typeAllowed := func(ft chunk.FileType) bool {
		if len(opts.FileTypes) == 0 {
			return true
		}
		for _, want := range opts.FileTypes {
			if ft == want {
				return true
			}
		}
		return false
	}

	results := make([]*Result, 0, len(chunks))
	for _, c := range chunks {
		if !typeAllowed(c.FileType) {
			continue
		}
		cand := byID[c.ID]
		results = append(results, &Result{
			Chunk:        c,
			Score:        cand.Score,
			LexicalScore: cand.LexicalScore,
			VectorScore:  cand.VectorScore,
			MatchedTerms: cand.MatchedTerms,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].Chunk.UpdatedAt.Equal(results[j].Chunk.UpdatedAt) {
			return results[i].Chunk.UpdatedAt.After(results[j].Chunk.UpdatedAt)
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results, nil
}

// recency serves ModeRecency: newest chunks first, no scoring beyond
// the timestamp order the store provides.
func (e *Engine) recency(ctx context.Context, opts Options) ([]*Result, error) {
	chunks, err := e.Recent(ctx, 0, candidateLimit(opts.TopK))
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(chunks))
	for _, c := range chunks {
		if len(opts.FileTypes) > 0 {
			allowed := false
			for _, want := range opts.FileTypes {
				if c.FileType == want {
					allowed = true
					break
				}
			}
			if !allowed {
				continue
			}
		}
		results = append(results, &Result{Chunk: c})
		if len(results) == opts.TopK {
			break
		}
	}
	return results, nil
}

// Recent returns chunks updated within the last N days, newest first.
func (e *Engine) Recent(ctx context.Context, days int, limit int) ([]*chunk.Chunk, error) {
	if days <= 0 {
		days = 7
	}
	if limit <= 0 {
		limit = DefaultTopK
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	return e.store.ChunksSince(ctx, cutoff, limit)
}

func (e *Engine) applyDefaults(opts Options) Options {
	if opts.Mode == "" {
		opts.Mode = ModeHybrid
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.TopK > MaxTopK {
		opts.TopK = MaxTopK
	}
	return opts
}

func (e *Engine) vectorReady() bool {
	return e.embedder != nil && e.vectors != nil && e.vectors.Count() > 0
}

// candidateLimit over-fetches per phase so fusion has enough overlap
// to rank from.
func candidateLimit(topK int) int {
	limit := topK * 2
	if limit < 20 {
		limit = 20
	}
	if limit > MaxTopK {
		limit = MaxTopK
	}
	return limit
}

func (e *Engine) recordSearch(ctx context.Context, query string, resp *Response) {
	err := e.store.RecordSearch(ctx, &store.SearchRecord{
		Query:       query,
		Mode:        string(resp.Mode),
		ResultCount: len(resp.Results),
		Degraded:    resp.Degraded,
		Took:        resp.Took,
		At:          time.Now().UTC(),
	})
	if err != nil {
		e.logger.Warn("failed to record search", slog.String("error", err.Error()))
	}
}
