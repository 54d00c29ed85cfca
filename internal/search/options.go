package search

import (
	"path/filepath"
	"strings"
)

// ApplyPathFilters applies request-level include_paths/exclude_paths/
// file_pattern filters (step 5). include_paths use OR logic (prefix
// match against any); exclude_paths reject on any prefix match;
// file_pattern is a filepath.Match glob against the base file name.
func ApplyPathFilters(results []*Result, req Request) []*Result {
	if len(req.IncludePaths) == 0 && len(req.ExcludePaths) == 0 && req.FilePattern == "" {
		return results
	}

	out := make([]*Result, 0, len(results))
	for _, r := range results {
		if r.Chunk == nil {
			continue
		}
		path := r.Chunk.FilePath

		if len(req.IncludePaths) > 0 && !anyPrefix(path, req.IncludePaths) {
			continue
		}
		if anyPrefix(path, req.ExcludePaths) {
			continue
		}
		if req.FilePattern != "" {
			ok, err := filepath.Match(req.FilePattern, filepath.Base(path))
			if err != nil || !ok {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

func anyPrefix(path string, prefixes []string) bool {
	norm := strings.Trim(path, "/")
	for _, p := range prefixes {
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		if norm == p || strings.HasPrefix(norm, p+"/") {
			return true
		}
	}
	return false
}

// IsTestFile reports whether filePath looks like a test file, across
// Go, JS/TS, and Python naming conventions.
func IsTestFile(filePath string) bool {
	if strings.HasSuffix(filePath, "_test.go") {
		return true
	}
	if strings.Contains(filePath, ".test.") || strings.Contains(filePath, ".spec.") {
		return true
	}
	base := filepath.Base(filePath)
	if strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py") {
		return true
	}
	if strings.HasSuffix(base, "_test.py") {
		return true
	}
	if strings.Contains(filePath, "/test/") || strings.Contains(filePath, "/tests/") ||
		strings.HasPrefix(filePath, "test/") || strings.HasPrefix(filePath, "tests/") {
		return true
	}
	return false
}

// IsImplementationPath reports whether filePath is under an internal/
// implementation tree rather than a CLI wrapper.
func IsImplementationPath(filePath string) bool {
	return strings.HasPrefix(filePath, "internal/") || strings.Contains(filePath, "/internal/")
}

// IsWrapperPath reports whether filePath is a CLI entry-point wrapper.
func IsWrapperPath(filePath string) bool {
	return strings.HasPrefix(filePath, "cmd/") || strings.Contains(filePath, "/cmd/")
}
