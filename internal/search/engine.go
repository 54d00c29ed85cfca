package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/amanmcp-core/amanmcp-core/internal/chunk"
	"github.com/amanmcp-core/amanmcp-core/internal/corpus"
	"github.com/amanmcp-core/amanmcp-core/internal/modelindex"
	"github.com/amanmcp-core/amanmcp-core/internal/telemetry"
)

// DefaultLimit and MaxLimit bound Request.Limit when unset or excessive.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// anchorGuardWindow is how many top candidates the anchor-required guard
// inspects before concluding nothing anchors the query.
const anchorGuardWindow = 5

// QueryEngine implements the search path end to end: prepare each
// model's index, fan out the embedded query, merge by max score, apply
// profile rules and request filters, rerank, and guard
// against anchor-less semantic drift with a lexical fallback.
type QueryEngine struct {
	Indexer    *modelindex.MultiModelProjectIndexer
	Embedders  func(modelID string) (modelindex.Embedder, error)
	Classifier Classifier
	Profile    Profile
	Scorer     *WindowScorer
	Bleve      *CorpusBM25Index
	Metrics    *telemetry.QueryMetrics

	// AutoIndex is invoked once when a request's roster has no usable
	// (active, already-built) model, giving the caller a chance to
	// bootstrap or reconcile before the engine gives up on semantic
	// search for this request. May be nil.
	AutoIndex func(ctx context.Context) error
}

// NewQueryEngine wires a query engine around an existing project indexer.
func NewQueryEngine(idx *modelindex.MultiModelProjectIndexer, embedders func(string) (modelindex.Embedder, error), profile Profile) *QueryEngine {
	bleveIdx := NewCorpusBM25Index()
	return &QueryEngine{
		Indexer:    idx,
		Embedders:  embedders,
		Classifier: NewPatternClassifier(),
		Profile:    profile,
		Bleve:      bleveIdx,
		Scorer:     NewWindowScorer(profile.Weights, bleveIdx),
	}
}

var _ Engine = (*QueryEngine)(nil)

// Search executes the hybrid search path for req.
func (e *QueryEngine) Search(ctx context.Context, req Request) ([]*Result, error) {
	start := time.Now()
	kind := e.Classifier.Classify(req.Query)
	results, usedLexical, err := e.search(ctx, req, kind)

	if e.Metrics != nil {
		e.Metrics.Record(telemetry.QueryEvent{
			Query:       req.Query,
			QueryType:   metricsQueryType(kind, usedLexical),
			ResultCount: len(results),
			Latency:     time.Since(start),
			Timestamp:   start,
		})
	}
	return results, err
}

func metricsQueryType(kind QueryKind, lexical bool) telemetry.QueryType {
	if lexical {
		return telemetry.QueryTypeLexical
	}
	if kind == KindConceptual {
		return telemetry.QueryTypeSemantic
	}
	return telemetry.QueryTypeMixed
}

func (e *QueryEngine) search(ctx context.Context, req Request, kind QueryKind) ([]*Result, bool, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	if !req.Semantic {
		return e.lexical(req, limit), true, nil
	}

	hits, ok := e.fanOut(ctx, req, kind, limit)
	if !ok {
		slog.Debug("search: no usable model index, falling back to lexical", "query", req.Query)
		return e.lexical(req, limit), true, nil
	}
	if len(hits) == 0 {
		return e.lexical(req, limit), true, nil
	}

	candidates := MergeByMaxScore(hits)
	for _, r := range candidates {
		r.Chunk = e.chunkByID(r.ChunkID)
		r.Semantic = true
	}
	candidates = dropMissingChunks(candidates)

	for _, r := range candidates {
		e.Profile.ApplyMustHit(r)
	}

	kept := candidates[:0]
	for _, r := range candidates {
		if e.Profile.ApplyPathRules(r) {
			kept = append(kept, r)
		}
	}
	kept = ApplyPathFilters(kept, req)

	if e.Bleve != nil {
		if err := e.Bleve.EnsureFresh(e.corpus()); err != nil {
			slog.Debug("search: bleve rerank index rebuild failed, reranking on semantic score alone", "error", err)
		}
	}
	e.Scorer.Rerank(req.Query, kept)

	if e.anchorGuardFails(req, kind, kept) {
		slog.Debug("search: anchor-required guard triggered, falling back to lexical", "query", req.Query)
		return e.lexical(req, limit), true, nil
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].ChunkID < kept[j].ChunkID
	})
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept, false, nil
}

// fanOut embeds the query per active, rostered model and collects every
// model's k-NN hits (step 1-2). ok is false only when the roster has no
// usable model even after an auto-index attempt.
func (e *QueryEngine) fanOut(ctx context.Context, req Request, kind QueryKind, limit int) ([]ModelHit, bool) {
	usable := e.usableModels(kind)
	if len(usable) == 0 && e.AutoIndex != nil {
		if err := e.AutoIndex(ctx); err != nil {
			slog.Debug("search: auto-index attempt failed", "error", err)
		}
		usable = e.usableModels(kind)
	}
	if len(usable) == 0 {
		return nil, false
	}

	k := limit * 4
	var hits []ModelHit
	for _, id := range usable {
		sub, ok := e.Indexer.Model(id)
		if !ok || e.Embedders == nil {
			continue
		}
		embedder, err := e.Embedders(id)
		if err != nil {
			continue
		}
		qtext := sub.Templates.FormatQuery(string(kind), req.Query)
		vectors, err := embedder.EmbedBatch(ctx, []string{qtext})
		if err != nil || len(vectors) == 0 {
			continue
		}
		for _, n := range sub.Search(vectors[0], k) {
			cid, ok := sub.ChunkIDOf(n.ID)
			if !ok {
				continue
			}
			hits = append(hits, ModelHit{ModelID: id, ChunkID: cid, Score: n.Score})
		}
	}
	return hits, true
}

func (e *QueryEngine) usableModels(kind QueryKind) []string {
	active := make(map[string]bool)
	for _, id := range e.Indexer.ActiveModels() {
		active[id] = true
	}
	var usable []string
	for _, id := range e.Profile.ModelsFor(kind) {
		if active[id] {
			usable = append(usable, id)
		}
	}
	return usable
}

// anchorGuardFails implements the anchor-required guard: for
// identifier/path queries without docs intent, if no top hit mentions
// the query's longest meaningful token anywhere in filename, symbol, or
// content, semantic results are untrustworthy.
func (e *QueryEngine) anchorGuardFails(req Request, kind QueryKind, results []*Result) bool {
	if req.DocsIntent {
		return false
	}
	if kind != KindIdentifier && kind != KindPath {
		return false
	}
	anchor := strings.ToLower(LongestMeaningfulToken(req.Query))
	if anchor == "" {
		return false
	}

	window := results
	if len(window) > anchorGuardWindow {
		window = window[:anchorGuardWindow]
	}
	for _, r := range window {
		if r.Chunk == nil {
			continue
		}
		if strings.Contains(strings.ToLower(r.Chunk.FilePath), anchor) ||
			strings.Contains(strings.ToLower(r.Chunk.SymbolName), anchor) ||
			strings.Contains(strings.ToLower(r.Chunk.Content), anchor) {
			return false
		}
	}
	return len(results) > 0
}

func (e *QueryEngine) lexical(req Request, limit int) []*Result {
	hits := LexicalFallback(e.corpus(), req.Query, limit)
	hits = ApplyPathFilters(hits, req)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func (e *QueryEngine) corpus() *corpus.ChunkCorpus {
	if e.Indexer == nil {
		return corpus.NewChunkCorpus()
	}
	return e.Indexer.Corpus
}

func (e *QueryEngine) chunkByID(chunkID string) *chunk.Chunk {
	path := chunkIDPath(chunkID)
	for _, c := range e.corpus().FileChunks(path) {
		if c.ID() == chunkID {
			return c
		}
	}
	return nil
}

func dropMissingChunks(results []*Result) []*Result {
	out := results[:0]
	for _, r := range results {
		if r.Chunk != nil {
			out = append(out, r)
		}
	}
	return out
}

// chunkIDPath extracts the file path prefix from a chunk id of the form
// "{path}:{start}:{end}" by trimming the last two ':'-delimited fields.
func chunkIDPath(chunkID string) string {
	last := strings.LastIndexByte(chunkID, ':')
	if last < 0 {
		return chunkID
	}
	secondLast := strings.LastIndexByte(chunkID[:last], ':')
	if secondLast < 0 {
		return chunkID
	}
	return chunkID[:secondLast]
}
