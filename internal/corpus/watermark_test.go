package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeProjectWatermark_Deterministic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte("package b\n"), 0o644))

	wm1, err := ComputeProjectWatermark(context.Background(), dir, ScanOptions{})
	require.NoError(t, err)
	wm2, err := ComputeProjectWatermark(context.Background(), dir, ScanOptions{})
	require.NoError(t, err)

	assert.True(t, wm1.Equal(wm2))
	assert.Equal(t, wm1.Digest, wm2.Digest)
}

func TestComputeProjectWatermark_ExcludesSecretsByDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SECRET=1\n"), 0o644))

	wm, err := ComputeProjectWatermark(context.Background(), dir, ScanOptions{})
	require.NoError(t, err)

	for _, e := range wm.Entries {
		assert.NotEqual(t, ".env", e.Path)
	}
}

func TestAssessStaleness_MissingIndex(t *testing.T) {
	got := AssessStaleness(false, false, Watermark{}, nil, 0)
	assert.True(t, got.Stale)
	assert.Contains(t, got.Reasons, ReasonMissingIndex)
}

func TestAssessStaleness_DigestMismatch(t *testing.T) {
	current := Watermark{Entries: []WatermarkEntry{{Path: "a.go", Size: 1, MtimeMs: 1}}, Digest: 1}
	stored := Watermark{Entries: []WatermarkEntry{{Path: "a.go", Size: 2, MtimeMs: 2}}, Digest: 2}
	got := AssessStaleness(true, false, current, &stored, 100)
	assert.True(t, got.Stale)
	assert.Contains(t, got.Reasons, ReasonDigestMismatch)
}

func TestAssessStaleness_UpToDate(t *testing.T) {
	wm := Watermark{Entries: []WatermarkEntry{{Path: "a.go", Size: 1, MtimeMs: 1}}, Digest: 42}
	got := AssessStaleness(true, false, wm, &wm, 100)
	assert.False(t, got.Stale)
	assert.Empty(t, got.Reasons)
}

func TestIsSecretPath(t *testing.T) {
	cases := map[string]bool{
		".env":                    true,
		"config/.env.local":       false, // only the exact basename ".env" matches; the extension of ".env.local" is ".local", not a secret extension
		"id_rsa":                  true,
		"secrets/id_ed25519":      true,
		"certs/server.pem":        true,
		"keys/client.key":         true,
		"main.go":                 false,
		".cargo/credentials":      true,
	}
	for path, want := range cases {
		assert.Equal(t, want, isSecretPath(path), path)
	}
}
