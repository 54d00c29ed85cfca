package modelindex

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/amanmcp-core/amanmcp-core/internal/vectorindex"
)

// SubIndexer is one model's {model_id, templates, hnsw, id_map, next_id}.
// It owns its own HNSW graph and the int-id <-> chunk-id mapping; chunk
// content lives only in the shared ChunkCorpus.
type SubIndexer struct {
	ModelID   string
	Templates EmbeddingTemplates
	Dimension int

	Graph   *vectorindex.Graph
	IDMap   map[int]string // external id -> chunk id
	byChunk map[string]int // chunk id -> external id
	NextID  int

	// Active is false for models removed by SetModels; their on-disk
	// snapshot directory is retained but no longer reconciled.
	Active bool

	TemplateHash  uint64
	Watermark     *vectorindex.Watermark
	BuiltAtUnixMs int64
}

// NewSubIndexer creates an empty, active sub-indexer for a model.
func NewSubIndexer(modelID string, templates EmbeddingTemplates, dimension int) *SubIndexer {
	return &SubIndexer{
		ModelID:      modelID,
		Templates:    templates,
		Dimension:    dimension,
		Graph:        vectorindex.NewGraph(vectorindex.Config{Dimension: dimension}),
		IDMap:        make(map[int]string),
		byChunk:      make(map[string]int),
		Active:       true,
		TemplateHash: templates.Hash(),
	}
}

// modelDirPattern keeps [A-Za-z0-9._-] and replaces everything else with
// '_' when sanitizing a model id for use as a directory name.
var modelDirPattern = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeModelID produces the directory-safe form of a model id.
func SanitizeModelID(modelID string) string {
	return modelDirPattern.ReplaceAllString(modelID, "_")
}

// SnapshotPath returns the per-model snapshot file path under dataDir.
func SnapshotPath(dataDir, modelID string) string {
	return filepath.Join(dataDir, "indexes", SanitizeModelID(modelID), "index.json")
}

// NeedsReembed reports whether chunkID is missing from this model or was
// embedded under a now-stale template hash.
func (s *SubIndexer) NeedsReembed(chunkID string) bool {
	id, ok := s.byChunk[chunkID]
	if !ok {
		return true
	}
	if _, live := s.Graph.Vector(id); !live {
		return true
	}
	return s.TemplateHash != s.Templates.Hash()
}

// Upsert inserts or replaces the vector for chunkID. If the model's
// template hash changed since the last persisted snapshot, every chunk
// needs a fresh vector; callers drive this via NeedsReembed before calling.
func (s *SubIndexer) Upsert(chunkID string, vector []float32) error {
	id, exists := s.byChunk[chunkID]
	if !exists {
		id = s.NextID
		s.NextID++
		s.byChunk[chunkID] = id
		s.IDMap[id] = chunkID
	}
	if err := s.Graph.Add(id, vector); err != nil {
		return fmt.Errorf("modelindex: upsert %s: %w", chunkID, err)
	}
	return nil
}

// Remove drops a chunk's vector from this model's index, tombstoning its
// HNSW node.
func (s *SubIndexer) Remove(chunkID string) {
	id, ok := s.byChunk[chunkID]
	if !ok {
		return
	}
	s.Graph.Remove(id)
	delete(s.byChunk, chunkID)
	delete(s.IDMap, id)
}

// Search runs a k-NN search against this model's graph.
func (s *SubIndexer) Search(query []float32, k int) []vectorindex.Neighbor {
	return s.Graph.Search(query, k)
}

// ChunkIDOf resolves an external HNSW id back to its chunk id.
func (s *SubIndexer) ChunkIDOf(id int) (string, bool) {
	cid, ok := s.IDMap[id]
	return cid, ok
}

// ShouldCompact reports whether this model's graph has crossed the
// tombstone-rebuild threshold and would benefit from Compact.
func (s *SubIndexer) ShouldCompact() bool {
	return s.Graph.ShouldRebuild()
}

// Compact rebuilds the underlying graph to drop tombstoned nodes. IDMap and
// byChunk are untouched: Rebuild preserves live ids, so the chunk mapping
// stays valid across the swap.
func (s *SubIndexer) Compact() {
	s.Graph = s.Graph.Rebuild()
}

// Save persists the sub-indexer's snapshot atomically.
func (s *SubIndexer) Save(dataDir string) error {
	snap := vectorindex.ToSnapshot(s.Graph, s.IDMap, s.NextID, s.Watermark, s.BuiltAtUnixMs, s.Templates.Hash())
	return vectorindex.SaveAtomic(SnapshotPath(dataDir, s.ModelID), snap)
}

// LoadSubIndexer loads a persisted sub-indexer snapshot, or returns a fresh
// empty one if none exists yet.
func LoadSubIndexer(dataDir, modelID string, templates EmbeddingTemplates, dimension int) (*SubIndexer, error) {
	path := SnapshotPath(dataDir, modelID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewSubIndexer(modelID, templates, dimension), nil
	}

	snap, err := vectorindex.LoadSnapshot(path)
	if err != nil {
		// Corrupt snapshot: treat as absent, force full rebuild.
		return NewSubIndexer(modelID, templates, dimension), nil
	}

	graph, err := vectorindex.BuildGraph(vectorindex.Config{Dimension: snap.Dimension}, snap)
	if err != nil {
		return NewSubIndexer(modelID, templates, dimension), nil
	}

	byChunk := make(map[string]int, len(snap.IDMap))
	for id, chunkID := range snap.IDMap {
		byChunk[chunkID] = id
	}

	return &SubIndexer{
		ModelID:       modelID,
		Templates:     templates,
		Dimension:     snap.Dimension,
		Graph:         graph,
		IDMap:         snap.IDMap,
		byChunk:       byChunk,
		NextID:        snap.NextID,
		Active:        true,
		TemplateHash:  snap.TemplateHash,
		Watermark:     snap.Watermark,
		BuiltAtUnixMs: snap.BuiltAtUnixMs,
	}, nil
}

func init() {
	// SanitizeModelID's replacement character must not itself need escaping
	// in a path; guard against accidental regression.
	if strings.Contains(SanitizeModelID("a/b"), "/") {
		panic("modelindex: sanitizer must strip path separators")
	}
}
