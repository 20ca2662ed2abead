// Package search retrieves memory chunks by hybrid lexical and vector
// ranking. Phase scores are min-max normalized and combined by weight,
// and either phase can drop out without failing the query.
package search

import (
	"time"

	"github.com/moyger/sentinel/internal/chunk"
)

// Mode selects the retrieval strategy.
type Mode string

const (
	// ModeHybrid fuses lexical and vector rankings. Default.
	ModeHybrid Mode = "hybrid"
	// ModeLexical uses BM25 only.
	ModeLexical Mode = "lexical"
	// ModeVector uses nearest-neighbor ranking only.
	ModeVector Mode = "vector"
	// ModeRecency returns the newest chunks without ranking. The
	// query is ignored and no embedding call is made.
	ModeRecency Mode = "recency"
)

const (
	// DefaultTopK is the result count when the caller does not ask.
	DefaultTopK = 10
	// MaxTopK caps any requested result count.
	MaxTopK = 100
)

// Weights sets the relative contribution of each phase to the fused
// score. They must sum to 1.
type Weights struct {
	Lexical float64
	Vector  float64
}

// DefaultWeights returns the even split used when no configuration
// overrides it.
func DefaultWeights() Weights {
	return Weights{Lexical: 0.5, Vector: 0.5}
}

// Options configures one search call.
type Options struct {
	// Mode defaults to ModeHybrid.
	Mode Mode
	// TopK defaults to DefaultTopK, capped at MaxTopK.
	TopK int
	// FileTypes restricts results to chunks of these types.
	FileTypes []chunk.FileType
	// Weights overrides the engine's configured weights.
	Weights *Weights
}

// Result is one ranked chunk.
type Result struct {
	Chunk *chunk.Chunk
	// Score is the fused score in [0,1].
	Score float64
	// LexicalScore and VectorScore are the normalized per-phase
	// scores, zero when the phase did not rank this chunk.
	LexicalScore float64
	VectorScore  float64
	// MatchedTerms are the query terms the lexical phase matched.
	MatchedTerms []string
}

// Response wraps a result set with how it was produced.
type Response struct {
	Results []*Result
	// Mode is the mode actually used, which can differ from the
	// request when the engine degrades.
	Mode Mode
	// Degraded is set when vector ranking was requested but
	// unavailable, or when the embedder is a fallback provider.
	Degraded bool
	Took     time.Duration
}
