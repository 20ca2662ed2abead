package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// StaticEmbedder generates embeddings using a hash-based approach.
// It needs no network or model download and is fully deterministic:
// the same text always maps to the same vector. Semantic quality is
// low, but hybrid search stays functional when no real provider is
// reachable.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// proseStopWords are high-frequency English words that carry little
// signal in personal notes.
var proseStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"of": true, "to": true, "in": true, "on": true, "for": true,
	"is": true, "was": true, "it": true, "that": true, "this": true,
	"with": true, "as": true, "at": true, "by": true, "be": true,
}

// Weights for vector generation. Word hashes dominate; character
// trigrams add tolerance for misspellings and inflection.
const (
	wordWeight    = 0.7
	trigramWeight = 0.3
	trigramSize   = 3
)

var wordRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// NewStaticEmbedder creates a new static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// Embed generates an embedding for a single text.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}

	return normalizeVector(e.generateVector(trimmed)), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		results[i] = emb
	}
	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int { return StaticDimensions }

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string { return "static" }

// Available reports readiness; always true until closed.
func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *StaticEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, StaticDimensions)

	for _, word := range wordRegex.FindAllString(strings.ToLower(text), -1) {
		if proseStopWords[word] {
			continue
		}
		vector[hashToIndex(word, StaticDimensions)] += wordWeight
	}

	normalized := normalizeForTrigrams(text)
	for i := 0; i+trigramSize <= len(normalized); i++ {
		vector[hashToIndex(normalized[i:i+trigramSize], StaticDimensions)] += trigramWeight
	}

	return vector
}

// normalizeForTrigrams strips everything except letters and digits.
func normalizeForTrigrams(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// hashToIndex maps a string to a vector index with FNV-64.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}
