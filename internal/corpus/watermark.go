// Package corpus implements the content-addressed chunk corpus and the
// project watermark used to decide index staleness.
package corpus

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/amanmcp-core/amanmcp-core/internal/scanner"
)

// WatermarkEntry is one tracked file's (path, size, mtime) triple.
type WatermarkEntry struct {
	Path    string
	Size    int64
	MtimeMs int64
}

// Watermark is a deterministic summary of a project's tracked-file state.
// Two watermarks compare structurally: identical entries and digest means
// the project has not changed since the watermark was taken.
type Watermark struct {
	Entries []WatermarkEntry
	Digest  uint64
}

// Equal reports whether two watermarks describe the same tracked-file
// state. Digest equality alone is sufficient (it is derived from Entries)
// but comparing Entries too guards against a hash collision silently
// masking staleness.
func (w Watermark) Equal(other Watermark) bool {
	if w.Digest != other.Digest {
		return false
	}
	if len(w.Entries) != len(other.Entries) {
		return false
	}
	for i := range w.Entries {
		if w.Entries[i] != other.Entries[i] {
			return false
		}
	}
	return true
}

// ScanOptions configures tracked-file enumeration for watermarking and
// reconciliation.
type ScanOptions struct {
	AllowSecrets bool
}

// ComputeProjectWatermark walks the tracked files under root (honoring
// gitignore semantics and the secret-path heuristic), reads each file's
// size and mtime, sorts by path, and derives a stable 64-bit digest over
// the canonical byte representation of the sorted entries.
func ComputeProjectWatermark(ctx context.Context, root string, opts ScanOptions) (Watermark, error) {
	files, err := ListTrackedFiles(ctx, root, opts)
	if err != nil {
		return Watermark{}, err
	}

	entries := make([]WatermarkEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, WatermarkEntry{
			Path:    f.Path,
			Size:    f.Size,
			MtimeMs: f.ModTime.UnixMilli(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	return Watermark{Entries: entries, Digest: digestEntries(entries)}, nil
}

// digestEntries hashes the canonical ("path\x00size\x00mtime\n" per entry)
// byte representation of sorted entries with xxhash, a fast
// non-cryptographic hash appropriate for a change-detection digest.
func digestEntries(entries []WatermarkEntry) uint64 {
	h := xxhash.New()
	var buf [32]byte
	for _, e := range entries {
		_, _ = h.WriteString(e.Path)
		_, _ = h.Write([]byte{0})
		writeInt64(&buf, e.Size)
		_, _ = h.Write(buf[:8])
		writeInt64(&buf, e.MtimeMs)
		_, _ = h.Write(buf[8:16])
		_, _ = h.Write([]byte{'\n'})
	}
	return h.Sum64()
}

func writeInt64(buf *[32]byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		buf[i] = byte(u >> (8 * i))
	}
}

// StalenessReasons enumerates why an index was judged stale.
const (
	ReasonMissingIndex     = "missing-index"
	ReasonCorruptIndex     = "corrupt-index"
	ReasonDigestMismatch   = "digest-mismatch"
	ReasonUnknownBuiltAt   = "unknown-built-at"
)

// StalenessAssessment is the result of comparing a project's current
// watermark against the watermark recorded alongside a persisted index.
type StalenessAssessment struct {
	Stale   bool
	Reasons []string
}

// AssessStaleness decides whether a per-model index needs reconciliation.
// A nil storedWatermark, a corrupt index, a digest mismatch, or an unknown
// built-at timestamp are all treated as stale; staleness reasons accumulate
// so callers/logs can show every contributing factor, not just the first.
func AssessStaleness(indexExists, indexCorrupt bool, current Watermark, storedWatermark *Watermark, builtAtUnixMs int64) StalenessAssessment {
	var reasons []string

	if !indexExists {
		reasons = append(reasons, ReasonMissingIndex)
	}
	if indexCorrupt {
		reasons = append(reasons, ReasonCorruptIndex)
	}
	if indexExists && !indexCorrupt {
		if storedWatermark == nil || storedWatermark.Digest == 0 {
			reasons = append(reasons, ReasonDigestMismatch)
		} else if !current.Equal(*storedWatermark) {
			reasons = append(reasons, ReasonDigestMismatch)
		}
		if builtAtUnixMs == 0 {
			reasons = append(reasons, ReasonUnknownBuiltAt)
		}
	}

	return StalenessAssessment{Stale: len(reasons) > 0, Reasons: reasons}
}

// ListTrackedFiles enumerates the project's tracked files honoring
// gitignore semantics, returning a sorted-by-path slice.
func ListTrackedFiles(ctx context.Context, root string, opts ScanOptions) ([]scanner.FileInfo, error) {
	s, err := scanner.New()
	if err != nil {
		return nil, err
	}

	resultsCh, err := s.Scan(ctx, &scanner.ScanOptions{
		RootDir:          root,
		RespectGitignore: true,
	})
	if err != nil {
		return nil, err
	}

	var files []scanner.FileInfo
	for r := range resultsCh {
		if r.Error != nil || r.File == nil {
			continue
		}
		if !opts.AllowSecrets && isSecretPath(r.File.Path) {
			continue
		}
		files = append(files, *r.File)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// secretPathPatterns repeats the exact file names from scanner.go's
// sensitiveFilePatterns (its wildcard entries such as ".env.*" and
// "*credentials*" are not repeated here); kept as
// a second, independent match point so the corpus's secret-exclusion
// guarantee does not silently drift if the scanner's own default
// excludes change.
var secretPathPatterns = []string{
	".env", "id_rsa", "id_dsa", "id_ecdsa", "id_ed25519", ".netrc", ".npmrc", ".pypirc",
}

var secretExtensions = map[string]bool{
	".pem": true, ".key": true, ".p12": true, ".pfx": true, ".env": true,
}

// isSecretPath applies the potential-secret heuristic: known sensitive
// filenames, credential-bearing directories, or secret-shaped extensions.
func isSecretPath(filePath string) bool {
	base := path.Base(filePath)
	for _, pat := range secretPathPatterns {
		if base == pat {
			return true
		}
	}
	ext := strings.ToLower(path.Ext(base))
	if secretExtensions[ext] {
		return true
	}
	for _, seg := range strings.Split(filePath, "/") {
		if seg == ".cargo" && base == "credentials" {
			return true
		}
	}
	return false
}
