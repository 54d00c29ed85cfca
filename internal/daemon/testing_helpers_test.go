package daemon

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/amanmcp-core/amanmcp-core/internal/chunk"
	"github.com/amanmcp-core/amanmcp-core/internal/corpus"
	"github.com/amanmcp-core/amanmcp-core/internal/modelindex"
)

// stubEmbedder is a deterministic, dependency-free embedder so daemon
// tests never need a live embedding backend.
type stubEmbedder struct{ dim int }

func (s *stubEmbedder) Dimensions() int { return s.dim }

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.dim)
	}
	return out, nil
}

// stubChunker treats every file as a single whole-file chunk.
type stubChunker struct{}

func (stubChunker) SupportedExtensions() []string { return nil }

func (stubChunker) Chunk(_ context.Context, f *chunk.FileInput) ([]*chunk.Chunk, error) {
	if len(f.Content) == 0 {
		return nil, nil
	}
	return []*chunk.Chunk{{
		FilePath:  f.Path,
		Content:   string(f.Content),
		StartLine: 1,
		EndLine:   1,
		ChunkType: chunk.ChunkTypeWholeFile,
	}}, nil
}

// testWorkerFactory builds a WorkerFactory safe to bootstrap and reconcile:
// a real (empty) corpus, a whole-file chunker, and a deterministic embedder,
// so a Touch-triggered reconciliation cycle never runs against nil state.
func testWorkerFactory() WorkerFactory {
	return WorkerFactory{
		NewIndexer: func(root string) (*modelindex.MultiModelProjectIndexer, error) {
			dataDir := filepath.Join(root, ".amanmcp-core")
			return modelindex.New(root, dataDir, corpus.NewChunkCorpus(), stubChunker{}, nil,
				func(string) (modelindex.Embedder, error) { return &stubEmbedder{dim: 4}, nil }), nil
		},
		PrimaryModel: func() modelindex.ModelIndexSpec {
			return modelindex.ModelIndexSpec{ModelID: "stub", Templates: modelindex.DefaultTemplates()}
		},
	}
}

func testPool(t *testing.T) *Pool {
	t.Helper()
	return NewPool(testWorkerFactory(), PoolOptions{})
}
