// Package config loads and validates Sentinel configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. .env file in the memory directory (godotenv)
//  3. sentinel.yaml in the memory directory
//  4. SENTINEL_* environment variables
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	senterrors "github.com/moyger/sentinel/internal/errors"
)

// Config represents the complete Sentinel configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Paths      PathsConfig      `yaml:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Watch      WatchConfig      `yaml:"watch"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PathsConfig locates the memory corpus and the index data directory.
type PathsConfig struct {
	// MemoryDir is the root of the markdown memory corpus.
	MemoryDir string `yaml:"memory_dir"`
	// DataDir holds the SQLite database, vector sidecar, and lock file.
	DataDir string `yaml:"data_dir"`
	// Include restricts indexing to matching glob patterns (empty = all markdown).
	Include []string `yaml:"include"`
	// Exclude patterns are skipped in addition to the built-in defaults.
	Exclude []string `yaml:"exclude"`
}

// ChunkingConfig controls the word-window chunker.
type ChunkingConfig struct {
	// Size is the chunk window in words.
	Size int `yaml:"size"`
	// Overlap is the number of words shared between consecutive chunks.
	// Must be smaller than Size.
	Overlap int `yaml:"overlap"`
}

// SearchConfig configures hybrid search parameters.
// Weights are independently applied to min-max normalized phase scores
// and must sum to 1.0.
type SearchConfig struct {
	// LexicalWeight is the weight for FTS5 BM25 matching (0.0-1.0).
	LexicalWeight float64 `yaml:"lexical_weight"`
	// VectorWeight is the weight for cosine similarity (0.0-1.0).
	VectorWeight float64 `yaml:"vector_weight"`
	// TopK is the default result count.
	TopK int `yaml:"top_k"`
	// MaxResults caps top_k requests.
	MaxResults int `yaml:"max_results"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is one of "ollama", "openai", "static", or "auto".
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// OllamaHost is the Ollama API endpoint (default http://localhost:11434).
	OllamaHost string `yaml:"ollama_host"`
	// BatchSize is the number of texts per embedding request.
	BatchSize int `yaml:"batch_size"`
	// CacheSize is the LRU embedding cache capacity.
	CacheSize int `yaml:"cache_size"`
}

// WatchConfig configures the change detector.
type WatchConfig struct {
	// Debounce is the quiet period before a changed file is reindexed.
	Debounce string `yaml:"debounce"`
	// EventBufferSize is the watcher event channel capacity.
	EventBufferSize int `yaml:"event_buffer_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	FilePath string `yaml:"file"`
}

// defaultExcludePatterns are always skipped during corpus walks.
var defaultExcludePatterns = []string{
	"**/.git/**",
	"**/.obsidian/**",
	"**/node_modules/**",
	"**/.*",
	"**/*~",
	"**/*.tmp",
	"**/*.swp",
}

// NewConfig creates a Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			MemoryDir: defaultMemoryDir(),
			DataDir:   defaultDataDir(),
			Include:   []string{"**/*.md"},
			Exclude:   defaultExcludePatterns,
		},
		Chunking: ChunkingConfig{
			Size:    400,
			Overlap: 80,
		},
		Search: SearchConfig{
			LexicalWeight: 0.5,
			VectorWeight:  0.5,
			TopK:          10,
			MaxResults:    100,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "auto",
			Model:      "nomic-embed-text",
			OllamaHost: "",
			BatchSize:  32,
			CacheSize:  1000,
		},
		Watch: WatchConfig{
			Debounce:        "2s",
			EventBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:    "info",
			FilePath: "",
		},
	}
}

func defaultMemoryDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "sentinel", "memory")
	}
	return filepath.Join(home, "sentinel", "memory")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".sentinel")
	}
	return filepath.Join(home, ".sentinel")
}

// Load loads configuration rooted at the given directory.
// A missing config file is fine; defaults apply.
func Load(dir string) (*Config, error) {
	// .env is optional and never overrides variables already set.
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	cfg := NewConfig()
	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile tries sentinel.yaml then sentinel.yml in dir.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{"sentinel.yaml", "sentinel.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return senterrors.New(senterrors.ErrCodeConfigNotFound,
			fmt.Sprintf("read config file %s", path), err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return senterrors.New(senterrors.ErrCodeConfigInvalid,
			fmt.Sprintf("parse config file %s", path), err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Paths.MemoryDir != "" {
		c.Paths.MemoryDir = other.Paths.MemoryDir
	}
	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		// Merge with defaults rather than replace.
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	if other.Chunking.Size != 0 {
		c.Chunking.Size = other.Chunking.Size
	}
	if other.Chunking.Overlap != 0 {
		c.Chunking.Overlap = other.Chunking.Overlap
	}

	if other.Search.LexicalWeight != 0 || other.Search.VectorWeight != 0 {
		c.Search.LexicalWeight = other.Search.LexicalWeight
		c.Search.VectorWeight = other.Search.VectorWeight
	}
	if other.Search.TopK != 0 {
		c.Search.TopK = other.Search.TopK
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if other.Watch.EventBufferSize != 0 {
		c.Watch.EventBufferSize = other.Watch.EventBufferSize
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
}

// applyEnvOverrides applies SENTINEL_* environment variable overrides.
// Env vars have the highest precedence and support explicit zero weights.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SENTINEL_MEMORY_DIR"); v != "" {
		c.Paths.MemoryDir = v
	}
	if v := os.Getenv("SENTINEL_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("SENTINEL_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Chunking.Size = n
		}
	}
	if v := os.Getenv("SENTINEL_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Chunking.Overlap = n
		}
	}
	if v := os.Getenv("SENTINEL_LEXICAL_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
			c.Search.LexicalWeight = w
		}
	}
	if v := os.Getenv("SENTINEL_VECTOR_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
			c.Search.VectorWeight = w
		}
	}
	if v := os.Getenv("SENTINEL_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("SENTINEL_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("SENTINEL_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("SENTINEL_WATCH_DEBOUNCE"); v != "" {
		c.Watch.Debounce = v
	}
	if v := os.Getenv("SENTINEL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return senterrors.InputError(
			fmt.Sprintf("chunking.size must be positive, got %d", c.Chunking.Size), nil)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return senterrors.InputError(
			fmt.Sprintf("chunking.overlap must be in [0, size), got %d with size %d",
				c.Chunking.Overlap, c.Chunking.Size), nil)
	}

	if c.Search.LexicalWeight < 0 || c.Search.LexicalWeight > 1 {
		return senterrors.InputError(
			fmt.Sprintf("search.lexical_weight must be between 0 and 1, got %f", c.Search.LexicalWeight), nil)
	}
	if c.Search.VectorWeight < 0 || c.Search.VectorWeight > 1 {
		return senterrors.InputError(
			fmt.Sprintf("search.vector_weight must be between 0 and 1, got %f", c.Search.VectorWeight), nil)
	}
	if sum := c.Search.LexicalWeight + c.Search.VectorWeight; math.Abs(sum-1.0) > 0.01 {
		return senterrors.InputError(
			fmt.Sprintf("search weights must sum to 1.0, got %.2f", sum), nil)
	}
	if c.Search.TopK <= 0 || c.Search.TopK > c.Search.MaxResults {
		return senterrors.InputError(
			fmt.Sprintf("search.top_k must be in (0, %d], got %d", c.Search.MaxResults, c.Search.TopK), nil)
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "ollama", "openai", "static", "auto":
	default:
		return senterrors.InputError(
			fmt.Sprintf("embeddings.provider must be 'ollama', 'openai', 'static', or 'auto', got %s",
				c.Embeddings.Provider), nil)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return senterrors.InputError(
			fmt.Sprintf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s",
				c.Logging.Level), nil)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file %s: %w", path, err)
	}
	return nil
}

// DebounceDuration parses the watch debounce window, falling back to 2s.
func (c *Config) DebounceDuration() (d time.Duration) {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}
