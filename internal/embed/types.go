// Package embed provides the pluggable embedding capability for Sentinel.
// Providers implement Embedder; callers probe Available and fall back to
// lexical-only search when no provider answers.
package embed

import (
	"context"
	"math"
	"time"
)

// Common embedding constants.
const (
	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// MaxBatchSize caps batch size to prevent memory exhaustion.
	MaxBatchSize = 256

	// DefaultTimeout is the per-request timeout for remote providers.
	DefaultTimeout = 60 * time.Second

	// ConnectTimeout bounds the initial health probe.
	ConnectTimeout = 5 * time.Second

	// StaticDimensions is the embedding dimension of the static fallback.
	StaticDimensions = 256
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
