package search

import "github.com/moyger/sentinel/internal/store"

// fusedCandidate is a chunk's combined ranking before enrichment.
type fusedCandidate struct {
	ChunkID      string
	Score        float64
	LexicalScore float64
	VectorScore  float64
	MatchedTerms []string
}

// fuse combines the two phase rankings. Each phase's raw scores are
// min-max normalized into [0,1] so BM25 magnitudes and cosine
// similarities become comparable, then summed by weight. A chunk
// missing from a phase contributes zero for that phase.
func fuse(lexical []*store.LexicalResult, vector []*store.VectorResult, w Weights) []*fusedCandidate {
	byID := make(map[string]*fusedCandidate)

	lexNorm := normalizeLexical(lexical)
	for _, r := range lexical {
		c := &fusedCandidate{
			ChunkID:      r.ChunkID,
			LexicalScore: lexNorm[r.ChunkID],
			MatchedTerms: r.MatchedTerms,
		}
		byID[r.ChunkID] = c
	}

	vecNorm := normalizeVector(vector)
	for _, r := range vector {
		c, ok := byID[r.ChunkID]
		if !ok {
			c = &fusedCandidate{ChunkID: r.ChunkID}
			byID[r.ChunkID] = c
		}
		c.VectorScore = vecNorm[r.ChunkID]
	}

	fused := make([]*fusedCandidate, 0, len(byID))
	for _, c := range byID {
		c.Score = w.Lexical*c.LexicalScore + w.Vector*c.VectorScore
		fused = append(fused, c)
	}
	return fused
}

func normalizeLexical(results []*store.LexicalResult) map[string]float64 {
	if len(results) == 0 {
		return nil
	}
	min, max := results[0].Score, results[0].Score
	for _, r := range results {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	norm := make(map[string]float64, len(results))
	for _, r := range results {
		norm[r.ChunkID] = minMax(r.Score, min, max)
	}
	return norm
}

func normalizeVector(results []*store.VectorResult) map[string]float64 {
	if len(results) == 0 {
		return nil
	}
	min, max := float64(results[0].Score), float64(results[0].Score)
	for _, r := range results {
		s := float64(r.Score)
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	norm := make(map[string]float64, len(results))
	for _, r := range results {
		norm[r.ChunkID] = minMax(float64(r.Score), min, max)
	}
	return norm
}

// minMax scales v into [0,1]. A single-score phase has no spread, so
// every member gets full credit rather than zero.
func minMax(v, min, max float64) float64 {
	if max == min {
		return 1.0
	}
	return (v - min) / (max - min)
}
