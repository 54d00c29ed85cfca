package search

import (
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9_]+`)

// tokenize lowercases and splits on non-identifier runs, then further
// splits camelCase/snake_case/PascalCase compounds so "getUserById"
// contributes "get", "user", "by", "id" as well as the whole token.
func tokenize(s string) []string {
	var out []string
	for _, raw := range tokenPattern.FindAllString(s, -1) {
		out = append(out, strings.ToLower(raw))
		parts := splitCompound(raw)
		if len(parts) > 1 {
			for _, p := range parts {
				out = append(out, strings.ToLower(p))
			}
		}
	}
	return out
}

func splitCompound(s string) []string {
	var parts []string
	var cur strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if r == '_' || r == '-' {
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
			continue
		}
		if i > 0 && r >= 'A' && r <= 'Z' && runes[i-1] >= 'a' && runes[i-1] <= 'z' {
			parts = append(parts, cur.String())
			cur.Reset()
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

// WindowScorer reranks a bounded window of candidates using the project's
// bleve BM25 index for term-frequency statistics, plus path/symbol/yaml-
// path boosts. The index supplies real corpus-wide IDF; the window itself
// only bounds which chunks get rescored.
type WindowScorer struct {
	Weights RerankWeights
	Index   *CorpusBM25Index
}

// NewWindowScorer returns a scorer using weights and idx. idx may be nil,
// in which case Rerank only applies path/symbol/yaml-path boosts.
func NewWindowScorer(weights RerankWeights, idx *CorpusBM25Index) *WindowScorer {
	return &WindowScorer{Weights: weights, Index: idx}
}

// Rerank looks up each candidate's bleve BM25 score for query, applies
// path/symbol/yaml-path boosts, and blends the lexical score into the
// existing semantic score (60/40 semantic-favored blend: the semantic
// fan-out already filtered for relevance, rerank refines ordering within
// that set rather than replacing it).
func (w *WindowScorer) Rerank(query string, candidates []*Result) {
	if len(candidates) == 0 {
		return
	}

	var scores map[string]float64
	if w.Index != nil {
		scores = w.Index.Scores(query, len(candidates)*4)
	}

	for _, c := range candidates {
		bonus := w.pathBonus(query, c)
		lexical := scores[c.ChunkID] * bonus
		c.Score = 0.6*c.Score + 0.4*normalizeBM25(lexical)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ChunkID < candidates[j].ChunkID
	})
}

// normalizeBM25 squashes an unbounded BM25 score into roughly [0,1] via a
// saturating curve so it blends sanely with the already-normalized
// semantic score.
func normalizeBM25(score float64) float64 {
	if score <= 0 {
		return 0
	}
	return score / (score + 2)
}

// pathBonus applies the profile's path/symbol/yaml-path boosts (step 6):
// the query's longest token appearing in the file path, a matched symbol
// name, or a YAML-style dotted path all count as strong relevance
// signals beyond plain term frequency.
func (w *WindowScorer) pathBonus(query string, r *Result) float64 {
	if r.Chunk == nil {
		return 1
	}
	anchor := strings.ToLower(LongestMeaningfulToken(query))
	if anchor == "" {
		return 1
	}
	bonus := 1.0
	path := strings.ToLower(r.Chunk.FilePath)
	if strings.Contains(path, anchor) {
		bonus *= nonZero(w.Weights.PathBoost, 1.3)
	}
	if sym := strings.ToLower(r.Chunk.SymbolName); sym != "" && strings.Contains(sym, anchor) {
		bonus *= nonZero(w.Weights.SymbolBoost, 1.5)
	}
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		if strings.Contains(strings.ToLower(r.Chunk.Content), anchor) {
			bonus *= nonZero(w.Weights.YAMLPathBoost, 1.2)
		}
	}
	return bonus
}

func nonZero(v, fallback float64) float64 {
	if v <= 0 {
		return fallback
	}
	return v
}
