package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyger/sentinel/internal/store"
)

func lexResult(id string, score float64) *store.LexicalResult {
	return &store.LexicalResult{ChunkID: id, Score: score, MatchedTerms: []string{"term"}}
}

func vecResult(id string, score float32) *store.VectorResult {
	return &store.VectorResult{ChunkID: id, Score: score}
}

func fusedByID(fused []*fusedCandidate) map[string]*fusedCandidate {
	m := make(map[string]*fusedCandidate, len(fused))
	for _, c := range fused {
		m[c.ChunkID] = c
	}
	return m
}

func TestFuse_NormalizesEachPhase(t *testing.T) {
	lexical := []*store.LexicalResult{
		lexResult("a", 8.0),
		lexResult("b", 4.0),
		lexResult("c", 2.0),
	}
	vector := []*store.VectorResult{
		vecResult("a", 0.9),
		vecResult("c", 0.5),
	}

	fused := fusedByID(fuse(lexical, vector, Weights{Lexical: 0.5, Vector: 0.5}))
	require.Len(t, fused, 3)

	// "a" tops both phases
	assert.InDelta(t, 1.0, fused["a"].Score, 1e-9)
	assert.InDelta(t, 1.0, fused["a"].LexicalScore, 1e-9)
	assert.InDelta(t, 1.0, fused["a"].VectorScore, 1e-9)

	// "b" is lexical-only: (4-2)/(8-2) = 1/3, no vector contribution
	assert.InDelta(t, 1.0/3, fused["b"].LexicalScore, 1e-9)
	assert.Zero(t, fused["b"].VectorScore)
	assert.InDelta(t, 0.5*(1.0/3), fused["b"].Score, 1e-9)

	// "c" is bottom of both phases
	assert.Zero(t, fused["c"].Score)
}

func TestFuse_WeightsSkewTheBlend(t *testing.T) {
	lexical := []*store.LexicalResult{lexResult("lex", 5.0), lexResult("both", 1.0)}
	vector := []*store.VectorResult{vecResult("vec", 0.9), vecResult("both", 0.1)}

	fused := fusedByID(fuse(lexical, vector, Weights{Lexical: 0.9, Vector: 0.1}))
	assert.InDelta(t, 0.9, fused["lex"].Score, 1e-9)
	assert.InDelta(t, 0.1, fused["vec"].Score, 1e-9)
}

func TestFuse_SinglePhase(t *testing.T) {
	lexical := []*store.LexicalResult{lexResult("a", 3.0), lexResult("b", 1.0)}

	fused := fusedByID(fuse(lexical, nil, Weights{Lexical: 1}))
	require.Len(t, fused, 2)
	assert.InDelta(t, 1.0, fused["a"].Score, 1e-9)
	assert.Zero(t, fused["b"].Score)
}

func TestFuse_UniformScoresGetFullCredit(t *testing.T) {
	lexical := []*store.LexicalResult{lexResult("a", 2.0), lexResult("b", 2.0)}

	fused := fusedByID(fuse(lexical, nil, Weights{Lexical: 1}))
	assert.InDelta(t, 1.0, fused["a"].Score, 1e-9)
	assert.InDelta(t, 1.0, fused["b"].Score, 1e-9)
}

func TestFuse_Empty(t *testing.T) {
	assert.Empty(t, fuse(nil, nil, DefaultWeights()))
}

func TestDefaultWeights(t *testing.T) {
	w := DefaultWeights()
	assert.Equal(t, 0.5, w.Lexical)
	assert.Equal(t, 0.5, w.Vector)
}
