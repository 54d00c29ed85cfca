package preflight

import (
	"os"
	"testing"

	"github.com/amanmcp-core/amanmcp-core/internal/embed"
	"github.com/stretchr/testify/assert"
)

func TestChecker_CheckEmbedderBackend_Default(t *testing.T) {
	orig := os.Getenv(embed.StubEmbeddingEnvVar)
	defer os.Setenv(embed.StubEmbeddingEnvVar, orig)
	os.Unsetenv(embed.StubEmbeddingEnvVar)

	checker := New()
	result := checker.CheckEmbedderBackend()

	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, "embedder_backend", result.Name)
	assert.False(t, result.Required)
	assert.Contains(t, result.Message, "static")
}

func TestChecker_CheckEmbedderBackend_StubEnabled(t *testing.T) {
	orig := os.Getenv(embed.StubEmbeddingEnvVar)
	defer os.Setenv(embed.StubEmbeddingEnvVar, orig)
	os.Setenv(embed.StubEmbeddingEnvVar, "true")

	checker := New()
	result := checker.CheckEmbedderBackend()

	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "stub")
}
