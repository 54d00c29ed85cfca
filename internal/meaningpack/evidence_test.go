package meaningpack

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCollectEvidence_PrioritizesFlowAnchorsThenBrokers(t *testing.T) {
	root := t.TempDir()
	entrypoints := []string{"cmd/server/main.go"}
	contracts := []string{"contracts/events.asyncapi.yaml"}
	boundaries := []BoundaryCandidate{{Kind: BoundaryHTTP, File: "cmd/server/main.go", Confidence: 0.7}}
	flows := []FlowEdge{{ContractFile: contracts[0], Channel: "orders.created", Direction: FlowPublish}}
	brokers := []BrokerCandidate{{File: "internal/broker/kafka.go", Proto: "kafka", Confidence: 0.9}}

	for _, f := range append(append([]string{}, entrypoints...), contracts...) {
		writeTestFile(t, root, f, "package main\n")
	}
	writeTestFile(t, root, brokers[0].File, "package broker\n")

	ev := collectEvidence(root, entrypoints, contracts, boundaries, flows, brokers)
	if len(ev) == 0 {
		t.Fatal("collectEvidence returned nothing")
	}
	if ev[0].File != contracts[0] {
		t.Errorf("first evidence = %q, want flow contract %q first", ev[0].File, contracts[0])
	}
	seen := make(map[string]bool)
	for _, e := range ev {
		if seen[e.File] {
			t.Errorf("duplicate evidence file %q", e.File)
		}
		seen[e.File] = true
	}
}

func TestCollectEvidence_CapsAtDefaultMax(t *testing.T) {
	root := t.TempDir()
	var entrypoints []string
	for i := 0; i < DefaultMaxEvidence+5; i++ {
		f := filepath.ToSlash(filepath.Join("cmd", string(rune('a'+i)), "main.go"))
		entrypoints = append(entrypoints, f)
		writeTestFile(t, root, f, "package main\n")
	}
	ev := collectEvidence(root, entrypoints, nil, nil, nil, nil)
	if len(ev) > DefaultMaxEvidence {
		t.Errorf("len(ev) = %d, want <= %d", len(ev), DefaultMaxEvidence)
	}
}

func TestHashAndCountLines(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "a.go", "line1\nline2\nline3\n")
	hash, lines := hashAndCountLines(filepath.Join(root, "a.go"))
	if hash == "" {
		t.Error("expected non-empty hash")
	}
	if lines != 3 {
		t.Errorf("lines = %d, want 3", lines)
	}
}

func TestHashAndCountLines_MissingFile(t *testing.T) {
	hash, lines := hashAndCountLines("/nonexistent/path/does-not-exist.go")
	if hash != "" || lines != 0 {
		t.Errorf("hashAndCountLines on missing file = (%q, %d), want (\"\", 0)", hash, lines)
	}
}

func TestBuildEvFileIndex_FirstOccurrenceWins(t *testing.T) {
	ev := []EvidenceItem{
		{File: "a.go"},
		{File: "b.go"},
		{File: "a.go"},
	}
	idx := buildEvFileIndex(ev)
	if idx["a.go"] != "ev0" {
		t.Errorf("idx[a.go] = %q, want ev0", idx["a.go"])
	}
	if idx["b.go"] != "ev1" {
		t.Errorf("idx[b.go] = %q, want ev1", idx["b.go"])
	}
}
