package meaningpack

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/amanmcp-core/amanmcp-core/internal/chunk"
)

// extractCodeOutline returns the symbol declarations in a single file
// (including methods nested in classes), reusing the AST-aware chunker so a focus pack's "S OUTLINE" section
// names the same symbols the semantic index would chunk on. Falls back to
// no symbols (not an error) for unsupported languages or read failures:
// an outline is a convenience, never required for the rest of the pack.
func extractCodeOutline(root, relPath string) []OutlineSymbol {
	ext := filepath.Ext(relPath)
	chunker := chunk.NewCodeChunker()
	defer chunker.Close()

	supported := false
	for _, e := range chunker.SupportedExtensions() {
		if e == ext {
			supported = true
			break
		}
	}
	if !supported {
		return nil
	}

	content, err := os.ReadFile(filepath.Join(root, relPath))
	if err != nil {
		return nil
	}

	chunks, err := chunker.Chunk(context.Background(), &chunk.FileInput{
		Path:    relPath,
		Content: content,
	})
	if err != nil {
		return nil
	}

	var out []OutlineSymbol
	for _, c := range chunks {
		if c.SymbolName == "" {
			continue
		}
		confidence := float32(1.0)
		if c.ChunkType == chunk.ChunkTypeWholeFile {
			confidence = 0.5
		}
		out = append(out, OutlineSymbol{
			Kind:       string(c.ChunkType),
			Name:       c.SymbolName,
			StartLine:  c.StartLine,
			EndLine:    c.EndLine,
			Confidence: confidence,
		})
	}
	return out
}

// rootFingerprint derives a short stable id for a project root so a pack
// consumer can tell two packs came from the same checkout without
// leaking the absolute path.
func rootFingerprint(rootDisplay string) string {
	return shortHash(strings.ToLower(rootDisplay))
}
