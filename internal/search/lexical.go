package search

import (
	"strings"

	"github.com/amanmcp-core/amanmcp-core/internal/corpus"
)

// maxLexicalScan bounds the walk so a huge corpus with no semantic index
// still returns promptly; "bounded walk" per the fallback's definition.
const maxLexicalScan = 5000

// LexicalFallback performs the bounded walk over tracked files described
// by the fallback path: find the query's longest meaningful token in
// chunk content, produce one hit per matching chunk, and assign
// decreasing synthetic scores by scan order.
func LexicalFallback(c *corpus.ChunkCorpus, query string, limit int) []*Result {
	token := strings.ToLower(LongestMeaningfulToken(query))
	if token == "" {
		return nil
	}

	all := c.AllChunks()
	var hits []*Result
	scanned := 0
	for _, ch := range all {
		if scanned >= maxLexicalScan {
			break
		}
		scanned++
		if !strings.Contains(strings.ToLower(ch.Content), token) &&
			!strings.Contains(strings.ToLower(ch.FilePath), token) &&
			!strings.Contains(strings.ToLower(ch.SymbolName), token) {
			continue
		}
		hits = append(hits, &Result{
			ChunkID:   ch.ID(),
			Chunk:     ch,
			Semantic:  false,
			MatchLine: ch.StartLine,
		})
		if limit > 0 && len(hits) >= limit*4 {
			break
		}
	}

	for rank, h := range hits {
		h.Score = 1.0 - 0.01*float64(rank)
	}
	return hits
}
