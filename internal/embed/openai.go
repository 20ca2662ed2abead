package embed

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	senterrors "github.com/moyger/sentinel/internal/errors"
)

// OpenAI defaults.
const (
	DefaultOpenAIModel      = "text-embedding-3-small"
	defaultOpenAIDimensions = 1536
)

// OpenAIConfig configures the OpenAI embedder.
type OpenAIConfig struct {
	// APIKey falls back to OPENAI_API_KEY when empty.
	APIKey     string
	Model      string
	Dimensions int
	BatchSize  int
}

// OpenAIEmbedder generates embeddings through the OpenAI API.
type OpenAIEmbedder struct {
	client    openai.Client
	model     string
	dims      int
	batchSize int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates a new OpenAI embedder.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, senterrors.EmbeddingUnavailable("openai", fmt.Errorf("no API key configured"))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = defaultOpenAIDimensions
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}

	return &OpenAIEmbedder{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		model:     cfg.Model,
		dims:      cfg.Dimensions,
		batchSize: cfg.BatchSize,
	}, nil
}

// Embed generates an embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := make([]string, end-start)
		for i, t := range texts[start:end] {
			// The API rejects empty input strings.
			if strings.TrimSpace(t) == "" {
				t = " "
			}
			batch[i] = t
		}

		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model: openai.EmbeddingModel(e.model),
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
		})
		if err != nil {
			return nil, senterrors.EmbeddingUnavailable("openai", err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(batch))
		}

		for i, d := range resp.Data {
			vec := make([]float32, len(d.Embedding))
			for j, v := range d.Embedding {
				vec[j] = float32(v)
			}
			results[start+i] = vec
		}
	}

	if len(results) > 0 && len(results[0]) > 0 {
		e.dims = len(results[0])
	}
	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string { return e.model }

// Available reports readiness. Reachability is only proven by a real
// request; a configured key is the best cheap signal.
func (e *OpenAIEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
