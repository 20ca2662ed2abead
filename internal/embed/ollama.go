package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	senterrors "github.com/moyger/sentinel/internal/errors"
)

// Ollama defaults.
const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"
	ollamaPoolSize     = 4
)

// fallbackOllamaModels are tried in order when the configured model is
// not installed.
var fallbackOllamaModels = []string{"nomic-embed-text", "mxbai-embed-large", "all-minilm"}

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	Host       string
	Model      string
	Dimensions int // 0 = autodetect from the first embedding
	BatchSize  int
	Timeout    time.Duration

	// SkipHealthCheck skips the startup probe (tests only).
	SkipHealthCheck bool
}

// OllamaEmbedder generates embeddings using Ollama's HTTP API.
type OllamaEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    OllamaConfig
	modelName string
	dims      int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type ollamaModelListResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaEmbedder creates a new Ollama embedder. Unless the health
// check is skipped it verifies the server is reachable, resolves the
// model (with fallbacks), and autodetects dimensions.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	// Idle connections are dropped quickly so short-lived CLI runs
	// release sockets promptly.
	transport := &http.Transport{
		MaxIdleConns:        ollamaPoolSize,
		MaxIdleConnsPerHost: ollamaPoolSize,
		MaxConnsPerHost:     ollamaPoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	e := &OllamaEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		modelName: cfg.Model,
		dims:      cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		modelName, err := e.findAvailableModel(checkCtx)
		if err != nil {
			transport.CloseIdleConnections()
			return nil, senterrors.EmbeddingUnavailable("ollama", err)
		}
		e.modelName = modelName

		if e.dims == 0 {
			dims, err := e.detectDimensions(checkCtx)
			if err != nil {
				transport.CloseIdleConnections()
				return nil, senterrors.EmbeddingUnavailable("ollama", err)
			}
			e.dims = dims
		}
	}

	return e, nil
}

// Embed generates an embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return make([]float32, e.dims), nil
	}

	embeddings, err := e.doEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts using the batch API.
// Empty texts map to zero vectors without a network call.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	type indexedText struct {
		idx  int
		text string
	}
	var nonEmpty []indexedText
	results := make([][]float32, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, e.dims)
		} else {
			nonEmpty = append(nonEmpty, indexedText{i, text})
		}
	}

	for start := 0; start < len(nonEmpty); start += e.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + e.config.BatchSize
		if end > len(nonEmpty) {
			end = len(nonEmpty)
		}
		batch := nonEmpty[start:end]

		batchTexts := make([]string, len(batch))
		for i, it := range batch {
			batchTexts[i] = it.text
		}

		embeddings, err := e.doEmbed(ctx, batchTexts)
		if err != nil {
			return nil, fmt.Errorf("embed batch: %w", err)
		}
		if len(embeddings) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(embeddings), len(batch))
		}
		for i, emb := range embeddings {
			results[batch[i].idx] = emb
		}
	}

	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *OllamaEmbedder) Dimensions() int { return e.dims }

// ModelName returns the resolved model identifier.
func (e *OllamaEmbedder) ModelName() string { return e.modelName }

// Available probes the Ollama server.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	if e.checkOpen() != nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	_, err := e.listModels(probeCtx)
	return err == nil
}

// Close releases the transport's pooled connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		e.transport.CloseIdleConnections()
	}
	return nil
}

func (e *OllamaEmbedder) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return fmt.Errorf("embedder is closed")
	}
	return nil
}

// doEmbed posts to /api/embed with a per-request timeout and retry on
// transient transport failures.
func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	cfg := senterrors.DefaultRetryConfig()
	cfg.InitialDelay = 500 * time.Millisecond

	return senterrors.RetryWithResult(ctx, cfg, func() ([][]float32, error) {
		reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()

		body, err := json.Marshal(ollamaEmbedRequest{Model: e.modelName, Input: texts})
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			return nil, senterrors.New(senterrors.ErrCodeNetworkUnavailable, "ollama request failed", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("embedding failed with status %d: %s", resp.StatusCode, string(respBody))
		}

		var result ollamaEmbedResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return result.Embeddings, nil
	})
}

func (e *OllamaEmbedder) listModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to Ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result ollamaModelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	names := make([]string, 0, len(result.Models))
	for _, m := range result.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// findAvailableModel resolves the configured model against installed
// ones, matching with and without version tags, then tries fallbacks.
func (e *OllamaEmbedder) findAvailableModel(ctx context.Context) (string, error) {
	names, err := e.listModels(ctx)
	if err != nil {
		return "", err
	}

	available := make(map[string]string) // normalized -> actual
	for _, name := range names {
		lower := strings.ToLower(name)
		available[lower] = name
		base := strings.Split(lower, ":")[0]
		if _, exists := available[base]; !exists {
			available[base] = name
		}
	}

	candidates := append([]string{e.config.Model}, fallbackOllamaModels...)
	for _, candidate := range candidates {
		lower := strings.ToLower(candidate)
		if actual, ok := available[lower]; ok {
			return actual, nil
		}
		if actual, ok := available[strings.Split(lower, ":")[0]]; ok {
			return actual, nil
		}
	}

	return "", fmt.Errorf("no embedding model available (tried %s and %v)", e.config.Model, fallbackOllamaModels)
}

func (e *OllamaEmbedder) detectDimensions(ctx context.Context) (int, error) {
	embeddings, err := e.doEmbed(ctx, []string{"dimension detection"})
	if err != nil {
		return 0, err
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return 0, fmt.Errorf("empty embedding returned")
	}
	return len(embeddings[0]), nil
}
