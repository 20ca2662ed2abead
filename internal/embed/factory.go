package embed

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/moyger/sentinel/internal/config"
)

// Result describes which embedder was actually constructed.
type Result struct {
	Embedder Embedder
	// Provider is the resolved provider name.
	Provider string
	// Fallback is true when the configured provider was unreachable and
	// the static embedder took its place. Search reports Degraded
	// accordingly for vector-dependent modes.
	Fallback bool
}

// NewFromConfig builds the embedding capability described by cfg.
// Provider "auto" probes Ollama and falls back to the static embedder.
// Explicit providers fail hard so misconfiguration is visible.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ec := cfg.Embeddings

	switch strings.ToLower(ec.Provider) {
	case "static":
		return wrap(NewStaticEmbedder(), "static", false, ec.CacheSize), nil

	case "openai":
		e, err := NewOpenAIEmbedder(OpenAIConfig{Model: ec.Model, BatchSize: ec.BatchSize})
		if err != nil {
			return nil, err
		}
		return wrap(e, "openai", false, ec.CacheSize), nil

	case "ollama":
		e, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:      ec.OllamaHost,
			Model:     ec.Model,
			BatchSize: ec.BatchSize,
		})
		if err != nil {
			return nil, err
		}
		return wrap(e, "ollama", false, ec.CacheSize), nil

	default: // "auto"
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		e, err := NewOllamaEmbedder(probeCtx, OllamaConfig{
			Host:      ec.OllamaHost,
			Model:     ec.Model,
			BatchSize: ec.BatchSize,
		})
		if err == nil {
			logger.Info("embedding provider ready",
				slog.String("provider", "ollama"),
				slog.String("model", e.ModelName()),
				slog.Int("dimensions", e.Dimensions()))
			return wrap(e, "ollama", false, ec.CacheSize), nil
		}

		logger.Warn("ollama unreachable, falling back to static embeddings",
			slog.String("error", err.Error()))
		return wrap(NewStaticEmbedder(), "static", true, ec.CacheSize), nil
	}
}

func wrap(e Embedder, provider string, fallback bool, cacheSize int) *Result {
	return &Result{
		Embedder: NewCachedEmbedder(e, cacheSize),
		Provider: provider,
		Fallback: fallback,
	}
}
