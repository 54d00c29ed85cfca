package search

import "testing"

func TestMergeByMaxScore_TakesMaxAcrossModels(t *testing.T) {
	hits := []ModelHit{
		{ModelID: "a", ChunkID: "x.go:1:2", Score: 0.5},
		{ModelID: "b", ChunkID: "x.go:1:2", Score: 0.9},
		{ModelID: "a", ChunkID: "y.go:1:2", Score: 0.3},
	}

	merged := MergeByMaxScore(hits)
	if len(merged) != 2 {
		t.Fatalf("len = %d, want 2", len(merged))
	}
	if merged[0].ChunkID != "x.go:1:2" || merged[0].Score != 0.9 {
		t.Errorf("top result = %+v, want x.go:1:2 @ 0.9", merged[0])
	}
	if merged[0].ModelHits["a"] != 0.5 || merged[0].ModelHits["b"] != 0.9 {
		t.Errorf("ModelHits not preserved: %+v", merged[0].ModelHits)
	}
}

func TestMergeByMaxScore_DeterministicTieBreak(t *testing.T) {
	hits := []ModelHit{
		{ModelID: "a", ChunkID: "b.go:1:2", Score: 0.5},
		{ModelID: "a", ChunkID: "a.go:1:2", Score: 0.5},
	}
	merged := MergeByMaxScore(hits)
	if merged[0].ChunkID != "a.go:1:2" {
		t.Errorf("tie-break order = %q, want a.go:1:2 first", merged[0].ChunkID)
	}
}

func TestMergeByMaxScore_Empty(t *testing.T) {
	merged := MergeByMaxScore(nil)
	if len(merged) != 0 {
		t.Errorf("len = %d, want 0", len(merged))
	}
}
