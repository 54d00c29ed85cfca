package embed

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// ProviderType represents an embedding provider.
type ProviderType string

const (
	// ProviderStatic uses 256-dimension hash-based embeddings.
	ProviderStatic ProviderType = "static"

	// ProviderStatic768 uses 768-dimension hash-based embeddings, matching
	// the dimension an external embedding backend is expected to produce.
	ProviderStatic768 ProviderType = "static768"
)

// StubEmbeddingEnvVar is the environment signal for "stub-embedding": the
// embedding backend returns deterministic synthetic
// vectors and the warm-indexer daemon is skipped entirely. It is read from
// the environment only; test harnesses or the user set it, and amanmcpcore
// itself never sets it.
const StubEmbeddingEnvVar = "AMANMCP_STUB_EMBEDDING"

// StubEmbeddingEnabled reports whether the stub-embedding environment
// signal is set.
func StubEmbeddingEnabled() bool {
	v := strings.ToLower(os.Getenv(StubEmbeddingEnvVar))
	return v == "1" || v == "true" || v == "on"
}

// NewEmbedder creates an embedder for the given provider. The core ships
// only the capability interface plus this deterministic stub (the real
// embedding backend is an external collaborator, out of scope per §1);
// provider therefore only selects the stub's output dimension.
//
// The AMANMCP_EMBEDDER environment variable overrides provider when set
// ("static" or "static768"). Query embedding caching is enabled by
// default (saves 50-200ms per repeated query); set AMANMCP_EMBED_CACHE=false
// to disable it.
func NewEmbedder(ctx context.Context, provider ProviderType, _ string) (Embedder, error) {
	resolved := provider
	if envProvider := os.Getenv("AMANMCP_EMBEDDER"); envProvider != "" {
		resolved = ParseProvider(envProvider)
	}

	var embedder Embedder
	switch resolved {
	case ProviderStatic:
		embedder = NewStaticEmbedder()
	default:
		embedder = NewStaticEmbedder768()
	}

	if !isCacheDisabled() {
		embedder = NewCachedEmbedderWithDefaults(embedder)
	}

	return embedder, nil
}

// isCacheDisabled checks if embedding cache is disabled via environment.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("AMANMCP_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// NewDefaultEmbedder creates the default (768-dimension) stub embedder.
func NewDefaultEmbedder(ctx context.Context) (Embedder, error) {
	return NewEmbedder(ctx, ProviderStatic768, "")
}

// ParseProvider converts a string to ProviderType, defaulting to the
// 768-dimension stub for anything unrecognized.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(s) {
	case "static":
		return ProviderStatic
	default:
		return ProviderStatic768
	}
}

// String returns the string representation of ProviderType.
func (p ProviderType) String() string {
	return string(p)
}

// ValidProviders returns all valid provider names.
func ValidProviders() []string {
	return []string{
		string(ProviderStatic),
		string(ProviderStatic768),
	}
}

// IsValidProvider checks if a provider name is valid.
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

// EmbedderInfo contains information about an embedder.
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo returns information about an embedder.
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}

	switch info.Model {
	case "static":
		info.Provider = ProviderStatic
	default:
		info.Provider = ProviderStatic768
	}

	return info
}

// MustNewEmbedder creates an embedder and panics on failure.
// Use only in tests or initialization code where failure is fatal.
func MustNewEmbedder(ctx context.Context, provider ProviderType, model string) Embedder {
	embedder, err := NewEmbedder(ctx, provider, model)
	if err != nil {
		panic(fmt.Sprintf("failed to create embedder: %v", err))
	}
	return embedder
}
