package meaningpack

import "strings"

// directoryKey groups a file path under its ancestor directory at depth,
// clamped to the path's actual depth. Root-level files (no "/") group
// under ".".
func directoryKey(filePath string, depth int) string {
	parts := strings.Split(filePath, "/")
	if len(parts) <= 1 {
		return "."
	}
	dirParts := parts[:len(parts)-1]
	if depth > len(dirParts) {
		depth = len(dirParts)
	}
	if depth < 1 {
		depth = 1
	}
	return strings.Join(dirParts[:depth], "/")
}

// isEntrypointCandidate reports whether a lowercased path looks like a
// process entrypoint across the common language conventions.
func isEntrypointCandidate(fileLC string) bool {
	suffixes := []string{
		"/src/main.rs", "/main.rs", "/main.py", "/app.py", "/server.py",
		"/index.js", "/server.js", "/main.ts", "/server.ts",
		"/main.go", "/cmd/main.go",
	}
	for _, s := range suffixes {
		if strings.HasSuffix(fileLC, s) {
			return true
		}
	}
	return false
}

// isContractCandidate reports whether a lowercased path looks like an API
// or schema contract (proto, OpenAPI, AsyncAPI, JSON Schema).
func isContractCandidate(fileLC string) bool {
	if strings.HasPrefix(fileLC, "contracts/") || strings.HasPrefix(fileLC, "proto/") {
		return true
	}
	if strings.Contains(fileLC, "/openapi.") || strings.Contains(fileLC, "/asyncapi.") {
		return true
	}
	suffixes := []string{
		".proto", ".schema.json",
		"openapi.json", "openapi.yaml", "openapi.yml",
		"asyncapi.json", "asyncapi.yaml", "asyncapi.yml",
	}
	for _, s := range suffixes {
		if strings.HasSuffix(fileLC, s) {
			return true
		}
	}
	return false
}

// contractKind classifies a contract file's wire format.
func contractKind(file string) string {
	lc := strings.ToLower(file)
	switch {
	case strings.HasSuffix(lc, ".proto") || strings.HasPrefix(lc, "proto/"):
		return "proto"
	case strings.HasSuffix(lc, ".schema.json"):
		return "jsonschema"
	case strings.HasSuffix(lc, "openapi.json") || strings.HasSuffix(lc, "openapi.yaml") || strings.HasSuffix(lc, "openapi.yml"), strings.Contains(lc, "/openapi."):
		return "openapi"
	case strings.HasSuffix(lc, "asyncapi.json") || strings.HasSuffix(lc, "asyncapi.yaml") || strings.HasSuffix(lc, "asyncapi.yml"), strings.Contains(lc, "/asyncapi."):
		return "asyncapi"
	default:
		return "contract"
	}
}

// isArtifactScope reports whether a path is a build/vendor/generated
// artifact tree, deprioritized in the directory map unless focus targets
// it directly.
func isArtifactScope(path string) bool {
	lc := strings.ToLower(path)
	prefixes := []string{
		"dist/", "build/", "target/", "node_modules/", "vendor/",
		".git/", "__pycache__/", "coverage/",
	}
	for _, p := range prefixes {
		if lc == strings.TrimSuffix(p, "/") || strings.HasPrefix(lc, p) || strings.Contains(lc, "/"+p) {
			return true
		}
	}
	return false
}

// classifyFiles splits files into entrypoint and contract candidates,
// each returned sorted for deterministic rendering.
func classifyFiles(files []string) (entrypoints, contracts []string) {
	for _, f := range files {
		lc := strings.ToLower(f)
		if isEntrypointCandidate(lc) {
			entrypoints = append(entrypoints, f)
			continue
		}
		if isContractCandidate(lc) {
			contracts = append(contracts, f)
		}
	}
	sortStrings(entrypoints)
	sortStrings(contracts)
	return entrypoints, contracts
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// configFileKinds are deterministic build/workspace config files, always
// surfaced as BoundaryConfig boundaries regardless of their directory.
var configFileKinds = map[string]bool{
	"cargo.toml": true, "package.json": true, "pyproject.toml": true,
	"go.mod": true, "pom.xml": true, "build.gradle": true, "build.gradle.kts": true,
	"makefile": true, "justfile": true,
	".github/workflows/ci.yml": true, ".github/workflows/ci.yaml": true,
}

var envExampleFiles = map[string]bool{
	".env.example": true, ".env.sample": true, ".env.template": true, ".env.dist": true,
}

// classifyBoundaries derives the project's process-boundary candidates:
// deterministic config files, entrypoints (kind guessed from path),
// an HTTP boundary inferred from an OpenAPI contract when no entrypoint
// looks like a server, DB migration/schema layouts, and event/message
// schema assets. Sorted by kind rank, then descending confidence, then
// path (see sortBoundaries).
func classifyBoundaries(files, entrypoints, contracts []string) []BoundaryCandidate {
	var out []BoundaryCandidate
	seen := make(map[string]bool)

	for _, file := range files {
		lc := strings.ToLower(file)
		var kind BoundaryKind
		switch {
		case configFileKinds[lc]:
			kind = BoundaryConfig
		case envExampleFiles[lc]:
			kind = BoundaryEnv
		default:
			continue
		}
		if seen[file] {
			continue
		}
		seen[file] = true
		out = append(out, BoundaryCandidate{Kind: kind, File: file, Confidence: 1.0})
	}

	for _, file := range entrypoints {
		if seen[file] {
			continue
		}
		seen[file] = true
		lc := strings.ToLower(file)
		var kind BoundaryKind
		var confidence float32
		switch {
		case strings.Contains(lc, "/server.") || strings.Contains(lc, "/api/") || strings.Contains(lc, "/http/"):
			kind, confidence = BoundaryHTTP, 0.7
		case strings.Contains(lc, "/cli/") || strings.Contains(lc, "/cmd/") || strings.Contains(lc, "/bin/"):
			kind, confidence = BoundaryCLI, 0.7
		default:
			kind, confidence = BoundaryCLI, 0.55
		}
		out = append(out, BoundaryCandidate{Kind: kind, File: file, Confidence: confidence})
	}

	hasOpenAPI := false
	for _, file := range contracts {
		lc := strings.ToLower(file)
		if strings.HasSuffix(lc, "openapi.json") || strings.HasSuffix(lc, "openapi.yaml") ||
			strings.HasSuffix(lc, "openapi.yml") || strings.Contains(lc, "/openapi.") {
			hasOpenAPI = true
			break
		}
	}
	if hasOpenAPI {
		for _, file := range entrypoints {
			lc := strings.ToLower(file)
			if !strings.Contains(lc, "server") && !strings.Contains(lc, "app") {
				continue
			}
			if seen[file] {
				break
			}
			seen[file] = true
			out = append(out, BoundaryCandidate{Kind: BoundaryHTTP, File: file, Confidence: 0.65})
			break
		}
	}

	for _, file := range files {
		lc := strings.ToLower(file)
		isDB := strings.HasPrefix(lc, "migrations/") || strings.Contains(lc, "/migrations/") ||
			strings.HasSuffix(lc, "schema.sql") || strings.HasSuffix(lc, "schema.prisma") ||
			strings.HasPrefix(lc, "prisma/")
		if !isDB || seen[file] {
			continue
		}
		seen[file] = true
		out = append(out, BoundaryCandidate{Kind: BoundaryDB, File: file, Confidence: 0.85})
	}

	for _, file := range files {
		lc := strings.ToLower(file)
		isEvent := strings.HasSuffix(lc, "asyncapi.yaml") || strings.HasSuffix(lc, "asyncapi.yml") || strings.HasSuffix(lc, "asyncapi.json") ||
			strings.Contains(lc, "/asyncapi.") || strings.HasSuffix(lc, ".avsc") ||
			strings.HasPrefix(lc, "events/") || strings.Contains(lc, "/events/") ||
			strings.HasPrefix(lc, "schemas/events/") || strings.Contains(lc, "/schemas/events/") ||
			strings.HasPrefix(lc, "messages/") || strings.Contains(lc, "/messages/")
		if !isEvent || seen[file] {
			continue
		}
		seen[file] = true
		confidence := float32(0.75)
		if strings.Contains(lc, "asyncapi") {
			confidence = 1.0
		} else if strings.HasSuffix(lc, ".avsc") {
			confidence = 0.9
		}
		out = append(out, BoundaryCandidate{Kind: BoundaryEvent, File: file, Confidence: confidence})
	}

	sortBoundaries(out)
	return out
}
