package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/renameio"
)

// VectorIndex holds the HNSW graph used for nearest-neighbor search.
// It is a derived cache: when the sidecar files are missing or stale
// the graph is rebuilt from the embeddings table.
type VectorIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorStoreConfig

	// Chunk IDs map to internal uint64 keys. Deletion is lazy: the
	// node stays in the graph but loses its mapping, so it never
	// surfaces in results. This avoids graph corruption when the last
	// node is removed.
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	closed bool
}

// vectorIndexMeta is the gob-encoded sidecar metadata.
type vectorIndexMeta struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  VectorStoreConfig
}

// NewVectorIndex builds an empty in-memory HNSW graph.
func NewVectorIndex(cfg VectorStoreConfig) (*VectorIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vector index requires positive dimensions, got %d", cfg.Dimensions)
	}
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &VectorIndex{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}, nil
}

// Add inserts or replaces vectors keyed by chunk ID.
func (v *VectorIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return fmt.Errorf("vector index is closed")
	}
	for _, vec := range vectors {
		if len(vec) != v.config.Dimensions {
			return ErrDimensionMismatch{Expected: v.config.Dimensions, Got: len(vec)}
		}
	}

	for i, id := range ids {
		if oldKey, ok := v.idMap[id]; ok {
			delete(v.keyMap, oldKey)
			delete(v.idMap, id)
		}

		key := v.nextKey
		v.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if v.config.Metric == "cos" {
			normalizeInPlace(vec)
		}

		v.graph.Add(hnsw.MakeNode(key, vec))
		v.idMap[id] = key
		v.keyMap[key] = id
	}
	return nil
}

// Search returns the k nearest chunks to the query vector, best first.
func (v *VectorIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.closed {
		return nil, fmt.Errorf("vector index is closed")
	}
	if len(query) != v.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: v.config.Dimensions, Got: len(query)}
	}
	if v.graph.Len() == 0 {
		return []*VectorResult{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if v.config.Metric == "cos" {
		normalizeInPlace(q)
	}

	nodes := v.graph.Search(q, k)
	results := make([]*VectorResult, 0, len(nodes))
	for _, node := range nodes {
		id, ok := v.keyMap[node.Key]
		if !ok {
			// lazily deleted
			continue
		}
		dist := v.graph.Distance(q, node.Value)
		results = append(results, &VectorResult{
			ChunkID:  id,
			Distance: dist,
			Score:    distanceToScore(dist, v.config.Metric),
		})
	}
	return results, nil
}

// Delete removes chunk IDs from the index.
func (v *VectorIndex) Delete(ctx context.Context, ids []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return fmt.Errorf("vector index is closed")
	}
	for _, id := range ids {
		if key, ok := v.idMap[id]; ok {
			delete(v.keyMap, key)
			delete(v.idMap, id)
		}
	}
	return nil
}

// Contains reports whether a chunk ID is present.
func (v *VectorIndex) Contains(id string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.idMap[id]
	return ok
}

// Count returns the number of live vectors.
func (v *VectorIndex) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.idMap)
}

// Orphans returns the number of lazily deleted nodes still in the
// graph. A large count is a signal to rebuild from the store.
func (v *VectorIndex) Orphans() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return 0
	}
	return v.graph.Len() - len(v.idMap)
}

// Dimensions returns the configured vector dimensionality.
func (v *VectorIndex) Dimensions() int {
	return v.config.Dimensions
}

// Save writes the graph and its metadata sidecar atomically.
func (v *VectorIndex) Save(path string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.closed {
		return fmt.Errorf("vector index is closed")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	var graphBuf bytes.Buffer
	if err := v.graph.Export(&graphBuf); err != nil {
		return fmt.Errorf("export graph: %w", err)
	}
	if err := renameio.WriteFile(path, graphBuf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write graph file: %w", err)
	}

	var metaBuf bytes.Buffer
	meta := vectorIndexMeta{IDMap: v.idMap, NextKey: v.nextKey, Config: v.config}
	if err := gob.NewEncoder(&metaBuf).Encode(meta); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := renameio.WriteFile(path+".meta", metaBuf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write metadata file: %w", err)
	}
	return nil
}

// Load restores the graph and metadata from a prior Save.
func (v *VectorIndex) Load(path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return fmt.Errorf("vector index is closed")
	}

	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer func() { _ = metaFile.Close() }()

	var meta vectorIndexMeta
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	v.idMap = meta.IDMap
	v.nextKey = meta.NextKey
	v.config = meta.Config
	v.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range meta.IDMap {
		v.keyMap[key] = id
	}

	graphFile, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open graph file: %w", err)
	}
	defer func() { _ = graphFile.Close() }()

	// graph.Import needs an io.ByteReader.
	if err := v.graph.Import(bufio.NewReader(graphFile)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	return nil
}

// RebuildFrom repopulates the index from stored embeddings, replacing
// current contents. Vectors with a different dimensionality are
// skipped so an old-model leftover cannot poison the graph.
func (v *VectorIndex) RebuildFrom(ctx context.Context, s *SQLiteStore) (int, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return 0, fmt.Errorf("vector index is closed")
	}
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = v.graph.Distance
	graph.M = v.config.M
	graph.EfSearch = v.config.EfSearch
	graph.Ml = 0.25
	v.graph = graph
	v.idMap = make(map[string]uint64)
	v.keyMap = make(map[uint64]string)
	v.nextKey = 0
	v.mu.Unlock()

	added := 0
	err := s.AllEmbeddings(ctx, func(e *Embedding) error {
		if len(e.Vector) != v.config.Dimensions {
			return nil
		}
		if err := v.Add(ctx, []string{e.ChunkID}, [][]float32{e.Vector}); err != nil {
			return err
		}
		added++
		return nil
	})
	if err != nil {
		return added, fmt.Errorf("rebuild vector index: %w", err)
	}
	return added, nil
}

// Close releases the graph.
func (v *VectorIndex) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	v.graph = nil
	return nil
}

// SavedIndexDimensions reads the dimensionality recorded in a saved
// index's metadata. It returns 0 when no sidecar exists yet.
func SavedIndexDimensions(path string) (int, error) {
	f, err := os.Open(path + ".meta")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open vector index metadata: %w", err)
	}
	defer func() { _ = f.Close() }()

	var meta vectorIndexMeta
	if err := gob.NewDecoder(f).Decode(&meta); err != nil {
		return 0, fmt.Errorf("decode vector index metadata: %w", err)
	}
	return meta.Config.Dimensions, nil
}

func normalizeInPlace(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

// distanceToScore maps a distance to a similarity in [0,1].
func distanceToScore(dist float32, metric string) float32 {
	if metric == "l2" {
		return 1.0 / (1.0 + dist)
	}
	// cosine distance ranges 0..2
	return 1.0 - dist/2.0
}
