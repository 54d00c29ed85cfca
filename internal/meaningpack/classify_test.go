package meaningpack

import "testing"

func TestDirectoryKey_GroupsAtDepth(t *testing.T) {
	cases := []struct {
		path  string
		depth int
		want  string
	}{
		{"main.go", 2, "."},
		{"cmd/server/main.go", 1, "cmd"},
		{"cmd/server/main.go", 2, "cmd/server"},
		{"cmd/server/main.go", 5, "cmd/server"},
	}
	for _, c := range cases {
		got := directoryKey(c.path, c.depth)
		if got != c.want {
			t.Errorf("directoryKey(%q, %d) = %q, want %q", c.path, c.depth, got, c.want)
		}
	}
}

func TestClassifyFiles_SplitsEntrypointsAndContracts(t *testing.T) {
	files := []string{
		"cmd/server/main.go",
		"internal/handler/handler.go",
		"contracts/events.asyncapi.yaml",
		"api/openapi.yaml",
		"README.md",
	}
	entrypoints, contracts := classifyFiles(files)
	if len(entrypoints) != 1 || entrypoints[0] != "cmd/server/main.go" {
		t.Errorf("entrypoints = %v, want [cmd/server/main.go]", entrypoints)
	}
	if len(contracts) != 2 {
		t.Fatalf("contracts = %v, want 2 entries", contracts)
	}
	if contracts[0] != "api/openapi.yaml" || contracts[1] != "contracts/events.asyncapi.yaml" {
		t.Errorf("contracts = %v, want sorted openapi then asyncapi", contracts)
	}
}

func TestContractKind(t *testing.T) {
	cases := map[string]string{
		"contracts/orders.proto":     "proto",
		"schema/user.schema.json":    "jsonschema",
		"api/openapi.yaml":           "openapi",
		"contracts/events.asyncapi.yaml": "asyncapi",
		"docs/notes.md":              "contract",
	}
	for path, want := range cases {
		if got := contractKind(path); got != want {
			t.Errorf("contractKind(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestIsArtifactScope(t *testing.T) {
	yes := []string{"dist/bundle.js", "node_modules/pkg/index.js", "vendor/lib/x.go", "a/b/target/release/bin"}
	for _, p := range yes {
		if !isArtifactScope(p) {
			t.Errorf("isArtifactScope(%q) = false, want true", p)
		}
	}
	no := []string{"internal/chunk/code_chunker.go", "cmd/server/main.go"}
	for _, p := range no {
		if isArtifactScope(p) {
			t.Errorf("isArtifactScope(%q) = true, want false", p)
		}
	}
}

func TestClassifyBoundaries_Deterministic(t *testing.T) {
	files := []string{
		"go.mod",
		".env.example",
		"cmd/server/main.go",
		"migrations/0001_init.sql",
		"contracts/events.asyncapi.yaml",
	}
	entrypoints, contracts := classifyFiles(files)
	boundaries := classifyBoundaries(files, entrypoints, contracts)
	if len(boundaries) == 0 {
		t.Fatal("classifyBoundaries returned no candidates")
	}
	for i := 1; i < len(boundaries); i++ {
		a, b := boundaries[i-1], boundaries[i]
		if boundaryKindRank[a.Kind] > boundaryKindRank[b.Kind] {
			t.Errorf("boundaries not sorted by kind rank: %v before %v", a, b)
		}
	}

	var sawEvent, sawDB, sawConfig bool
	for _, b := range boundaries {
		switch b.Kind {
		case BoundaryEvent:
			sawEvent = true
		case BoundaryDB:
			sawDB = true
		case BoundaryConfig:
			sawConfig = true
		}
	}
	if !sawEvent || !sawDB || !sawConfig {
		t.Errorf("missing expected boundary kinds: event=%v db=%v config=%v", sawEvent, sawDB, sawConfig)
	}
}
