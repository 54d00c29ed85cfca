package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanmcp-core/amanmcp-core/internal/chunk"
	"github.com/amanmcp-core/amanmcp-core/internal/config"
	"github.com/amanmcp-core/amanmcp-core/internal/corpus"
	"github.com/amanmcp-core/amanmcp-core/internal/embed"
	"github.com/amanmcp-core/amanmcp-core/internal/modelindex"
	"github.com/amanmcp-core/amanmcp-core/internal/search"
)

// Integration tests - these exercise the full flow from on-disk files
// through reconciliation to search, to verify the pieces work together.

// testEmbedder creates a static embedder for testing (fast, no model download).
func testEmbedder(t *testing.T) embed.Embedder {
	t.Helper()
	return embed.NewStaticEmbedder768()
}

// newTestEngine builds a MultiModelProjectIndexer and QueryEngine rooted
// at dir, with a single active model backed by a static embedder.
func newTestEngine(t *testing.T, dir string) (*modelindex.MultiModelProjectIndexer, *search.QueryEngine) {
	t.Helper()

	embedder := testEmbedder(t)
	dataDir := t.TempDir()
	c := corpus.NewChunkCorpus()
	provider := func(string) (modelindex.Embedder, error) { return embedder, nil }

	idx := modelindex.New(dir, dataDir, c, chunk.NewCodeChunker(), chunk.NewMarkdownChunker(), provider)
	err := idx.SetModels([]modelindex.ModelIndexSpec{
		{ModelID: embedder.ModelName(), Templates: modelindex.DefaultTemplates()},
	})
	require.NoError(t, err)

	profile := search.DefaultProfile([]string{embedder.ModelName()})
	engine := search.NewQueryEngine(idx, provider, profile)
	return idx, engine
}

// TestIntegration_IndexAndSearch_FindsResults tests the complete flow:
// create files -> reconcile -> search -> get results.
func TestIntegration_IndexAndSearch_FindsResults(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	projectDir := t.TempDir()
	createTestProject(t, projectDir)

	idx, engine := newTestEngine(t, projectDir)
	ctx := context.Background()
	_, err := idx.Reconcile(ctx)
	require.NoError(t, err)

	results, err := engine.Search(ctx, search.Request{Query: "HTTP handler function", Limit: 10})
	require.NoError(t, err)
	assert.NotEmpty(t, results, "search should find results")

	foundHandler := false
	for _, r := range results {
		if r.Chunk != nil && r.Chunk.FilePath == "main.go" {
			foundHandler = true
			break
		}
	}
	assert.True(t, foundHandler, "should find main.go with handler function")
}

// TestIntegration_SearchAfterDelete_ExcludesDeleted tests that deleting a
// file and reconciling again removes its chunks from search results.
func TestIntegration_SearchAfterDelete_ExcludesDeleted(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	projectDir := t.TempDir()
	createTestProject(t, projectDir)

	idx, engine := newTestEngine(t, projectDir)
	ctx := context.Background()
	_, err := idx.Reconcile(ctx)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(projectDir, "main.go")))
	_, err = idx.Reconcile(ctx)
	require.NoError(t, err)

	results, err := engine.Search(ctx, search.Request{Query: "HTTP handler function", Limit: 10})
	require.NoError(t, err)
	for _, r := range results {
		if r.Chunk != nil {
			assert.NotEqual(t, "main.go", r.Chunk.FilePath, "deleted file's chunks should not appear in results")
		}
	}
}

// TestIntegration_EmptyIndex_ReturnsNoResults tests that an empty project
// returns empty results without error.
func TestIntegration_EmptyIndex_ReturnsNoResults(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	projectDir := t.TempDir()
	idx, engine := newTestEngine(t, projectDir)
	ctx := context.Background()
	_, err := idx.Reconcile(ctx)
	require.NoError(t, err)

	results, err := engine.Search(ctx, search.Request{Query: "any query", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, results)
}

// TestIntegration_SearchWithFilters_FiltersResults tests that a request's
// FilePattern filter restricts results to matching files.
func TestIntegration_SearchWithFilters_FiltersResults(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	projectDir := t.TempDir()
	createMultiLangProject(t, projectDir)

	idx, engine := newTestEngine(t, projectDir)
	ctx := context.Background()
	_, err := idx.Reconcile(ctx)
	require.NoError(t, err)

	results, err := engine.Search(ctx, search.Request{Query: "function", Limit: 10, FilePattern: "*.go"})
	require.NoError(t, err)
	for _, r := range results {
		if r.Chunk != nil && r.Chunk.FilePath != "" {
			assert.Equal(t, ".go", filepath.Ext(r.Chunk.FilePath), "filtered results should only contain Go files")
		}
	}
}

// TestIntegration_ConcurrentSearches_NoRace tests that concurrent searches
// don't cause race conditions.
func TestIntegration_ConcurrentSearches_NoRace(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	projectDir := t.TempDir()
	createTestProject(t, projectDir)

	idx, engine := newTestEngine(t, projectDir)
	ctx := context.Background()
	_, err := idx.Reconcile(ctx)
	require.NoError(t, err)

	done := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		go func(query string) {
			_, err := engine.Search(ctx, search.Request{Query: query, Limit: 5})
			assert.NoError(t, err)
			done <- true
		}("test query " + string(rune('a'+i%26)))
	}

	timeout := time.After(10 * time.Second)
	for i := 0; i < 20; i++ {
		select {
		case <-done:
		case <-timeout:
			t.Fatal("concurrent searches timed out")
		}
	}
}

// =============================================================================
// Helper functions
// =============================================================================

// createTestProject creates a simple test project structure.
func createTestProject(t *testing.T, dir string) {
	t.Helper()

	files := map[string]string{
		"main.go": `package main

import "net/http"

// handleRequest is the main HTTP handler function
func handleRequest(w http.ResponseWriter, r *http.Request) {
    w.Write([]byte("Hello, World!"))
}

func main() {
    http.HandleFunc("/", handleRequest)
    http.ListenAndServe(":8080", nil)
}
`,
		"util.go": `package main

// formatMessage formats a message with a prefix
func formatMessage(msg string) string {
    return "[APP] " + msg
}

// validateInput checks if input is valid
func validateInput(input string) bool {
    return len(input) > 0
}
`,
	}

	for name, content := range files {
		path := filepath.Join(dir, name)
		err := os.WriteFile(path, []byte(content), 0644)
		require.NoError(t, err)
	}
}

// createMultiLangProject creates a project with multiple languages.
func createMultiLangProject(t *testing.T, dir string) {
	t.Helper()

	files := map[string]string{
		"main.go": `package main

func main() {
    println("Hello from Go")
}
`,
		"index.js": `// JavaScript function
function greet(name) {
    console.log("Hello, " + name);
}
`,
		"script.py": `# Python function
def greet(name):
    print(f"Hello, {name}")
`,
	}

	for name, content := range files {
		path := filepath.Join(dir, name)
		err := os.WriteFile(path, []byte(content), 0644)
		require.NoError(t, err)
	}
}

// =============================================================================
// Config integration tests
// =============================================================================

// TestIntegration_ConfigLoad_AppliesDefaults tests that config loading
// works end-to-end with defaults.
func TestIntegration_ConfigLoad_AppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := config.Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 0.65, cfg.Search.BM25Weight)
	assert.Equal(t, 0.35, cfg.Search.SemanticWeight)
	assert.Equal(t, "", cfg.Embeddings.Provider)
}

// TestIntegration_ConfigLoad_WithFile_OverridesDefaults tests that
// config file values override defaults for YAML-accessible fields.
func TestIntegration_ConfigLoad_WithFile_OverridesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
search:
  chunk_size: 2000
embeddings:
  provider: static
`
	err := os.WriteFile(filepath.Join(tmpDir, ".amanmcp.yaml"), []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := config.Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 2000, cfg.Search.ChunkSize)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 0.65, cfg.Search.BM25Weight)
	assert.Equal(t, 0.35, cfg.Search.SemanticWeight)
}
