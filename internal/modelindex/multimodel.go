package modelindex

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amanmcp-core/amanmcp-core/internal/chunk"
	"github.com/amanmcp-core/amanmcp-core/internal/corpus"
	"github.com/amanmcp-core/amanmcp-core/internal/vectorindex"
)

// Embedder is the capability interface §9 asks for: text -> fixed-dimension
// unit-norm vector. It is deliberately smaller than internal/embed.Embedder
// so this package does not depend on any particular backend.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// ReconcileResult reports the outcome of one reconciliation cycle.
type ReconcileResult struct {
	Status        ReconcileStatus
	ChangedModels []string
	Err           error
}

type ReconcileStatus string

const (
	ReconcileOK             ReconcileStatus = "ok"
	ReconcileBudgetExceeded ReconcileStatus = "budget_exceeded"
	ReconcileFailed         ReconcileStatus = "failed"
)

// MultiModelProjectIndexer owns a project's shared chunk corpus and one
// sub-indexer per active embedding model.
type MultiModelProjectIndexer struct {
	Root    string
	DataDir string

	Corpus    *corpus.ChunkCorpus
	models    map[string]*SubIndexer
	chunker   chunk.Chunker
	mdChunker chunk.Chunker

	embedders func(modelID string) (Embedder, error)
}

// New constructs an indexer over an existing (possibly empty) corpus.
func New(root, dataDir string, c *corpus.ChunkCorpus, chunker, mdChunker chunk.Chunker, embedders func(modelID string) (Embedder, error)) *MultiModelProjectIndexer {
	return &MultiModelProjectIndexer{
		Root:      root,
		DataDir:   dataDir,
		Corpus:    c,
		models:    make(map[string]*SubIndexer),
		chunker:   chunker,
		mdChunker: mdChunker,
		embedders: embedders,
	}
}

// SetModels installs the desired model roster. Newly named models start
// empty (filled by the next reconciliation); models no longer named are
// marked inactive but their on-disk snapshot directory is left alone.
func (m *MultiModelProjectIndexer) SetModels(specs []ModelIndexSpec) error {
	wanted := make(map[string]ModelIndexSpec, len(specs))
	for _, s := range specs {
		wanted[s.ModelID] = s
	}

	for id, sub := range m.models {
		if _, ok := wanted[id]; !ok {
			sub.Active = false
		}
	}

	for id, spec := range wanted {
		if existing, ok := m.models[id]; ok {
			existing.Active = true
			existing.Templates = spec.Templates
			continue
		}
		dim := 0
		if m.embedders != nil {
			if e, err := m.embedders(id); err == nil {
				dim = e.Dimensions()
			}
		}
		sub, err := LoadSubIndexer(m.DataDir, id, spec.Templates, dim)
		if err != nil {
			return fmt.Errorf("modelindex: load %s: %w", id, err)
		}
		m.models[id] = sub
	}
	return nil
}

// ActiveModels returns the sorted ids of currently-driven models.
func (m *MultiModelProjectIndexer) ActiveModels() []string {
	var ids []string
	for id, sub := range m.models {
		if sub.Active {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Model returns a model's sub-indexer, if known (active or retained).
func (m *MultiModelProjectIndexer) Model(modelID string) (*SubIndexer, bool) {
	s, ok := m.models[modelID]
	return s, ok
}

// Reconcile runs the four-step cycle: scan, diff against the corpus,
// re-embed stale chunks per active model, persist each changed model's
// snapshot atomically with an updated watermark.
func (m *MultiModelProjectIndexer) Reconcile(ctx context.Context) (ReconcileResult, error) {
	wm, err := corpus.ComputeProjectWatermark(ctx, m.Root, corpus.ScanOptions{})
	if err != nil {
		return ReconcileResult{Status: ReconcileFailed, Err: err}, err
	}

	files, err := corpus.ListTrackedFiles(ctx, m.Root, corpus.ScanOptions{})
	if err != nil {
		return ReconcileResult{Status: ReconcileFailed, Err: err}, err
	}

	current := make(map[string]bool, len(files))
	for _, f := range files {
		current[f.Path] = true
	}

	// Step 2: diff. Remove chunks for files no longer tracked.
	removedFrom := make(map[*SubIndexer]bool)
	for _, path := range m.Corpus.TrackedPaths() {
		if !current[path] {
			m.Corpus.RemoveFile(path)
			for _, sub := range m.models {
				m.removeFileFromModel(sub, path)
				removedFrom[sub] = true
			}
		}
	}

	// Re-parse every tracked file. A from-scratch parse is simpler than a
	// content-hash diff and correct; chunk identity already lets the
	// per-model sub-indexers short-circuit unchanged chunks below.
	for _, f := range files {
		select {
		case <-ctx.Done():
			return ReconcileResult{Status: ReconcileBudgetExceeded, Err: ctx.Err()}, nil
		default:
		}
		chunks, err := m.chunkFile(ctx, f.Path, f.Language, f.AbsPath)
		if err != nil {
			continue
		}
		old := m.Corpus.FileChunks(f.Path)
		m.Corpus.SetFileChunks(f.Path, chunks)
		m.pruneStaleChunks(old, chunks)
	}

	var active []*SubIndexer
	for _, sub := range m.models {
		if sub.Active {
			active = append(active, sub)
		}
	}

	changedFlags := make([]bool, len(active))
	g, gctx := errgroup.WithContext(ctx)
	for i, sub := range active {
		i, sub := i, sub
		g.Go(func() error {
			did, err := m.reconcileModel(gctx, sub)
			if err != nil {
				return fmt.Errorf("modelindex: reconcile %s: %w", sub.ModelID, err)
			}
			if did || removedFrom[sub] {
				sub.Watermark = &vectorindex.Watermark{Entries: toSnapshotEntries(wm), Digest: wm.Digest}
				sub.BuiltAtUnixMs = nowMs()
				if err := sub.Save(m.DataDir); err != nil {
					return fmt.Errorf("modelindex: save %s: %w", sub.ModelID, err)
				}
				changedFlags[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ReconcileResult{Status: ReconcileFailed, Err: err}, err
	}

	changed := make([]string, 0, len(active))
	for i, sub := range active {
		if changedFlags[i] {
			changed = append(changed, sub.ModelID)
		}
	}
	sort.Strings(changed)

	return ReconcileResult{Status: ReconcileOK, ChangedModels: changed}, nil
}

// IndexWithBudget wraps Reconcile with a soft deadline (clamped 100ms..120s).
// On expiry mid-cycle it reports BudgetExceeded; any
// models already persisted before the deadline keep their progress.
func (m *MultiModelProjectIndexer) IndexWithBudget(ctx context.Context, d time.Duration) (ReconcileResult, error) {
	if d < 100*time.Millisecond {
		d = 100 * time.Millisecond
	}
	if d > 120*time.Second {
		d = 120 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	result, err := m.Reconcile(cctx)
	if cctx.Err() != nil {
		result.Status = ReconcileBudgetExceeded
	}
	return result, err
}

// CompactionCandidates returns the active model ids whose graphs have
// crossed the tombstone-rebuild threshold.
func (m *MultiModelProjectIndexer) CompactionCandidates() []string {
	var ids []string
	for id, sub := range m.models {
		if sub.Active && sub.ShouldCompact() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Compact rebuilds modelID's graph to drop tombstoned nodes and persists
// the result. A no-op if the model is unknown or doesn't need compaction.
func (m *MultiModelProjectIndexer) Compact(modelID string) error {
	sub, ok := m.models[modelID]
	if !ok || !sub.ShouldCompact() {
		return nil
	}
	sub.Compact()
	return sub.Save(m.DataDir)
}

func (m *MultiModelProjectIndexer) removeFileFromModel(sub *SubIndexer, path string) {
	// The corpus has already dropped path's chunks by the time this runs in
	// Reconcile's removal step, so we track removal via IDMap membership.
	for id, chunkID := range sub.IDMap {
		if chunkIDPath(chunkID) == path {
			sub.Graph.Remove(id)
			delete(sub.IDMap, id)
		}
	}
}

func (m *MultiModelProjectIndexer) pruneStaleChunks(old, fresh []*chunk.Chunk) {
	freshIDs := make(map[string]bool, len(fresh))
	for _, c := range fresh {
		freshIDs[c.ID()] = true
	}
	for _, c := range old {
		if !freshIDs[c.ID()] {
			for _, sub := range m.models {
				sub.Remove(c.ID())
			}
		}
	}
}

// reconcileModel re-embeds every chunk stale for sub and reports whether
// anything changed.
func (m *MultiModelProjectIndexer) reconcileModel(ctx context.Context, sub *SubIndexer) (bool, error) {
	if m.embedders == nil {
		return false, nil
	}
	embedder, err := m.embedders(sub.ModelID)
	if err != nil {
		return false, fmt.Errorf("modelindex: no embedder for %s: %w", sub.ModelID, err)
	}

	all := m.Corpus.AllChunks()
	var staleIDs []string
	var staleTexts []string
	for _, c := range all {
		if sub.NeedsReembed(c.ID()) {
			staleIDs = append(staleIDs, c.ID())
			staleTexts = append(staleTexts, sub.Templates.FormatDoc(c.Content))
		}
	}
	if len(staleIDs) == 0 {
		return false, nil
	}

	const batchSize = 64
	for i := 0; i < len(staleIDs); i += batchSize {
		end := i + batchSize
		if end > len(staleIDs) {
			end = len(staleIDs)
		}
		vectors, err := embedder.EmbedBatch(ctx, staleTexts[i:end])
		if err != nil {
			return false, fmt.Errorf("modelindex: embed batch: %w", err)
		}
		for j, v := range vectors {
			if err := sub.Upsert(staleIDs[i+j], v); err != nil {
				return false, err
			}
		}
	}
	sub.TemplateHash = sub.Templates.Hash()
	return true, nil
}

func (m *MultiModelProjectIndexer) chunkFile(ctx context.Context, relPath, language, absPath string) ([]*chunk.Chunk, error) {
	content, err := readFile(absPath)
	if err != nil {
		return nil, err
	}
	input := &chunk.FileInput{Path: relPath, Content: content, Language: language}
	chunker := m.chunker
	if isMarkdown(language) && m.mdChunker != nil {
		chunker = m.mdChunker
	}
	if chunker == nil {
		return nil, fmt.Errorf("modelindex: no chunker configured")
	}
	return chunker.Chunk(ctx, input)
}

func isMarkdown(language string) bool { return language == "markdown" }

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

func toSnapshotEntries(wm corpus.Watermark) []vectorindex.WatermarkEntry {
	out := make([]vectorindex.WatermarkEntry, len(wm.Entries))
	for i, e := range wm.Entries {
		out[i] = vectorindex.WatermarkEntry{Path: e.Path, Size: e.Size, MtimeMs: e.MtimeMs}
	}
	return out
}
