package preflight

import (
	"fmt"

	"github.com/amanmcp-core/amanmcp-core/internal/embed"
)

// CheckEmbedderBackend reports which embedding backend mode is active. The
// core only ships the deterministic stub (embed.NewEmbedder); this check
// is informational, never a failure, so a project always gets a working
// index even before a real embedding backend is wired in by the caller.
func (c *Checker) CheckEmbedderBackend() CheckResult {
	result := CheckResult{
		Name:     "embedder_backend",
		Required: false,
		Status:   StatusPass,
	}
	if embed.StubEmbeddingEnabled() {
		result.Message = fmt.Sprintf("stub embeddings enabled via %s", embed.StubEmbeddingEnvVar)
	} else {
		result.Message = "using deterministic static embeddings (no external backend configured)"
	}
	return result
}
