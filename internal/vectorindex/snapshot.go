package vectorindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// SchemaVersion is the current on-disk snapshot schema version.
const SchemaVersion = 1

// Watermark mirrors corpus.Watermark's on-disk shape without importing the
// corpus package, avoiding an import cycle between vectorindex and corpus.
type Watermark struct {
	Entries []WatermarkEntry `json:"entries"`
	Digest  uint64           `json:"digest"`
}

// WatermarkEntry is one tracked file's (path, size, mtime) triple.
type WatermarkEntry struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	MtimeMs int64  `json:"mtime_ms"`
}

// Snapshot is the persisted form of a per-model VectorIndex: every id-vector
// pair plus enough bookkeeping to rebuild the HNSW graph in memory on load.
type Snapshot struct {
	SchemaVersion int                `json:"schema_version"`
	Dimension     int                `json:"dimension"`
	NextID        int                `json:"next_id"`
	IDMap         map[int]string     `json:"id_map"`           // int -> chunk id
	Vectors       map[int][]float32  `json:"vectors"`          // int -> embedding
	Watermark     *Watermark         `json:"watermark,omitempty"`
	BuiltAtUnixMs int64              `json:"built_at_unix_ms,omitempty"`
	TemplateHash  uint64             `json:"template_hash,omitempty"`
}

// Validate checks the id_map/vectors invariant: identical key sets.
func (s *Snapshot) Validate() error {
	if len(s.IDMap) != len(s.Vectors) {
		return fmt.Errorf("vectorindex: id_map has %d entries, vectors has %d", len(s.IDMap), len(s.Vectors))
	}
	for id := range s.IDMap {
		if _, ok := s.Vectors[id]; !ok {
			return fmt.Errorf("vectorindex: id %d present in id_map but not vectors", id)
		}
	}
	return nil
}

// SaveAtomic writes the snapshot as JSON to path using the temp-file +
// rename pattern so a crash mid-write never corrupts the previous snapshot.
func SaveAtomic(path string, snap *Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vectorindex: create snapshot dir: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("vectorindex: marshal snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("vectorindex: write temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("vectorindex: rename snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads and validates a persisted snapshot. A JSON decode
// failure or a failed Validate is reported as corrupt so the caller can
// force a full rebuild rather than operate on inconsistent state.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("vectorindex: corrupt snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("vectorindex: corrupt snapshot: %w", err)
	}
	return &snap, nil
}

// BuildGraph rebuilds an in-memory Graph from a snapshot's id/vector map,
// inserting in ascending id order so rebuilds from the same snapshot are
// deterministic.
func BuildGraph(cfg Config, snap *Snapshot) (*Graph, error) {
	cfg.Dimension = snap.Dimension
	g := NewGraph(cfg)

	ids := make([]int, 0, len(snap.IDMap))
	for id := range snap.IDMap {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		if err := g.Add(id, snap.Vectors[id]); err != nil {
			return nil, fmt.Errorf("vectorindex: rebuild id %d: %w", id, err)
		}
	}
	return g, nil
}

// ToSnapshot exports the graph's live entries plus the caller-supplied
// id_map (string chunk ids), ready to persist.
func ToSnapshot(g *Graph, idMap map[int]string, nextID int, wm *Watermark, builtAtUnixMs int64, templateHash uint64) *Snapshot {
	vectors := make(map[int][]float32, len(idMap))
	for id := range idMap {
		if v, ok := g.Vector(id); ok {
			vectors[id] = v
		}
	}
	filteredIDMap := make(map[int]string, len(vectors))
	for id, chunkID := range idMap {
		if _, ok := vectors[id]; ok {
			filteredIDMap[id] = chunkID
		}
	}
	return &Snapshot{
		SchemaVersion: SchemaVersion,
		Dimension:     g.cfg.Dimension,
		NextID:        nextID,
		IDMap:         filteredIDMap,
		Vectors:       vectors,
		Watermark:     wm,
		BuiltAtUnixMs: builtAtUnixMs,
		TemplateHash:  templateHash,
	}
}

