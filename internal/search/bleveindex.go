package search

import (
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/amanmcp-core/amanmcp-core/internal/corpus"
)

const (
	searchTokenizerName  = "amanmcpcore_code_tokenizer"
	searchStopFilterName = "amanmcpcore_code_stop"
	searchAnalyzerName   = "amanmcpcore_code_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(searchTokenizerName, func(map[string]interface{}, *registry.Cache) (analysis.Tokenizer, error) {
		return codeTokenizer{}, nil
	})
	_ = registry.RegisterTokenFilter(searchStopFilterName, func(map[string]interface{}, *registry.Cache) (analysis.TokenFilter, error) {
		return codeStopFilter{stopWords: buildStopWordSet(codeStopWords)}, nil
	})
}

// codeTokenizer adapts tokenizeCode to bleve's analysis.Tokenizer contract.
type codeTokenizer struct{}

func (codeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := tokenizeCode(text)
	out := make(analysis.TokenStream, 0, len(tokens))
	offset := 0
	for i, tok := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), tok)
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(tok)
		out = append(out, &analysis.Token{
			Term:     []byte(tok),
			Start:    start,
			End:      end,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
		if end <= len(text) {
			offset = end
		}
	}
	return out
}

type codeStopFilter struct {
	stopWords map[string]struct{}
}

func (f codeStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	out := make(analysis.TokenStream, 0, len(input))
	for _, tok := range input {
		if _, stop := f.stopWords[strings.ToLower(string(tok.Term))]; !stop {
			out = append(out, tok)
		}
	}
	return out
}

func newCodeIndexMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	if err := im.AddCustomAnalyzer(searchAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": searchTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			searchStopFilterName,
		},
	}); err != nil {
		return nil, err
	}
	im.DefaultAnalyzer = searchAnalyzerName
	return im, nil
}

// bleveDoc is the document shape indexed for each chunk.
type bleveDoc struct {
	Content string `json:"content"`
}

// CorpusBM25Index is an in-memory bleve index over a project's chunk
// corpus, rebuilt whenever the corpus changes, that supplies the
// term-frequency statistics WindowScorer needs for the hybrid rerank.
// It is not a persisted full-text primary index: only the
// lexical fallback walk serves queries when no semantic index exists.
type CorpusBM25Index struct {
	mu         sync.RWMutex
	index      bleve.Index
	fileCount  int
	chunkCount int
}

// NewCorpusBM25Index returns an index with nothing built yet; call
// EnsureFresh before Search.
func NewCorpusBM25Index() *CorpusBM25Index {
	return &CorpusBM25Index{fileCount: -1}
}

// EnsureFresh rebuilds the index if c's shape (file count, chunk count)
// has changed since the last build. This is a cheap staleness signal
// rather than an explicit hook into reconciliation: a content-only edit
// that doesn't change chunk counts is missed until the next structural
// change, which is an acceptable staleness window for a rerank aid.
func (b *CorpusBM25Index) EnsureFresh(c *corpus.ChunkCorpus) error {
	all := c.AllChunks()
	files := c.FileCount()

	b.mu.RLock()
	fresh := b.index != nil && b.fileCount == files && b.chunkCount == len(all)
	b.mu.RUnlock()
	if fresh {
		return nil
	}

	im, err := newCodeIndexMapping()
	if err != nil {
		return err
	}
	idx, err := bleve.NewMemOnly(im)
	if err != nil {
		return err
	}

	batch := idx.NewBatch()
	for _, ch := range all {
		if err := batch.Index(ch.ID(), bleveDoc{Content: ch.Content}); err != nil {
			return err
		}
	}
	if err := idx.Batch(batch); err != nil {
		return err
	}

	b.mu.Lock()
	if b.index != nil {
		_ = b.index.Close()
	}
	b.index = idx
	b.fileCount = files
	b.chunkCount = len(all)
	b.mu.Unlock()
	return nil
}

// Scores runs query against the index and returns each matching chunk
// id's bleve BM25 score.
func (b *CorpusBM25Index) Scores(query string, limit int) map[string]float64 {
	b.mu.RLock()
	idx := b.index
	b.mu.RUnlock()
	if idx == nil || strings.TrimSpace(query) == "" {
		return nil
	}

	q := bleve.NewMatchQuery(query)
	q.SetField("content")
	req := bleve.NewSearchRequest(q)
	req.Size = limit

	result, err := idx.Search(req)
	if err != nil {
		return nil
	}
	out := make(map[string]float64, len(result.Hits))
	for _, hit := range result.Hits {
		out[hit.ID] = hit.Score
	}
	return out
}
