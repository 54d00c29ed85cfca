package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/amanmcp-core/amanmcp-core/internal/chunk"
)

// ChunkCorpus holds every chunk currently known for a project, keyed by
// file path, each file's chunks kept in ascending-start-line order. It is
// the single source of chunk content that every per-model vector index
// re-embeds from; the corpus itself carries no embeddings.
type ChunkCorpus struct {
	mu     sync.RWMutex
	byFile map[string][]*chunk.Chunk
}

// NewChunkCorpus returns an empty corpus.
func NewChunkCorpus() *ChunkCorpus {
	return &ChunkCorpus{byFile: make(map[string][]*chunk.Chunk)}
}

// SetFileChunks replaces a file's chunk set wholesale. Chunks are sorted by
// StartLine to uphold the non-overlapping, ascending-start-line invariant;
// callers are expected to supply non-overlapping ranges (the chunkers do).
func (c *ChunkCorpus) SetFileChunks(path string, chunks []*chunk.Chunk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sorted := make([]*chunk.Chunk, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartLine < sorted[j].StartLine })
	if len(sorted) == 0 {
		delete(c.byFile, path)
		return
	}
	c.byFile[path] = sorted
}

// RemoveFile drops all chunks belonging to path.
func (c *ChunkCorpus) RemoveFile(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byFile, path)
}

// FileChunks returns the chunks for path, or nil if the file is untracked.
func (c *ChunkCorpus) FileChunks(path string) []*chunk.Chunk {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byFile[path]
}

// AllChunks returns every chunk in the corpus, ordered by file path then
// start line, for deterministic iteration (snapshotting, reindex diffing).
func (c *ChunkCorpus) AllChunks() []*chunk.Chunk {
	c.mu.RLock()
	defer c.mu.RUnlock()

	paths := make([]string, 0, len(c.byFile))
	for p := range c.byFile {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var all []*chunk.Chunk
	for _, p := range paths {
		all = append(all, c.byFile[p]...)
	}
	return all
}

// FileCount returns the number of tracked files.
func (c *ChunkCorpus) FileCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byFile)
}

// TrackedPaths returns the sorted list of tracked file paths.
func (c *ChunkCorpus) TrackedPaths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	paths := make([]string, 0, len(c.byFile))
	for p := range c.byFile {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// corpusFile is the on-disk whole-file JSON representation of a corpus.
type corpusFile struct {
	SchemaVersion int                        `json:"schema_version"`
	Files         map[string][]*chunk.Chunk  `json:"files"`
}

const corpusSchemaVersion = 1

// Save persists the entire corpus as one JSON document using the
// temp-file + rename atomic-write pattern (mirrors vectorindex.SaveAtomic).
func (c *ChunkCorpus) Save(path string) error {
	c.mu.RLock()
	snap := corpusFile{SchemaVersion: corpusSchemaVersion, Files: c.byFile}
	data, err := json.Marshal(snap)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("corpus: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("corpus: create dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("corpus: write temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("corpus: rename: %w", err)
	}
	return nil
}

// Load reads a persisted corpus. A missing file is not an error: it is
// treated as an empty corpus so first-run bootstrap can proceed.
func Load(path string) (*ChunkCorpus, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewChunkCorpus(), nil
	}
	if err != nil {
		return nil, err
	}
	var snap corpusFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("corpus: corrupt corpus file: %w", err)
	}
	if snap.Files == nil {
		snap.Files = make(map[string][]*chunk.Chunk)
	}
	for _, chunks := range snap.Files {
		sort.Slice(chunks, func(i, j int) bool { return chunks[i].StartLine < chunks[j].StartLine })
	}
	return &ChunkCorpus{byFile: snap.Files}, nil
}
