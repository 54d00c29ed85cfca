package search

import "sort"

// ModelHit is one model's raw neighbor hit for a chunk.
type ModelHit struct {
	ModelID string
	ChunkID string
	Score   float64 // cosine similarity, higher is closer
}

// MergeByMaxScore merges hits from every active model's fan-out into one
// candidate list keyed by chunk id, taking the maximum score across
// models for each chunk. Ties break on chunk id so the merge is
// deterministic across runs.
func MergeByMaxScore(hits []ModelHit) []*Result {
	byChunk := make(map[string]*Result, len(hits))
	for _, h := range hits {
		r, ok := byChunk[h.ChunkID]
		if !ok {
			r = &Result{ChunkID: h.ChunkID, ModelHits: make(map[string]float64)}
			byChunk[h.ChunkID] = r
		}
		r.ModelHits[h.ModelID] = h.Score
		if h.Score > r.Score {
			r.Score = h.Score
		}
	}

	out := make([]*Result, 0, len(byChunk))
	for _, r := range byChunk {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}
