package search

import (
	"testing"

	"github.com/amanmcp-core/amanmcp-core/internal/chunk"
)

func TestProfile_ModelsFor_FallsBackToUnion(t *testing.T) {
	p := Profile{ModelsByKind: map[QueryKind][]string{KindIdentifier: {"a", "b"}}}
	if got := p.ModelsFor(KindIdentifier); len(got) != 2 {
		t.Errorf("ModelsFor(identifier) = %v", got)
	}
	if got := p.ModelsFor(KindConceptual); len(got) != 2 {
		t.Errorf("ModelsFor(conceptual) should fall back to union, got %v", got)
	}
}

func TestProfile_ApplyPathRules_Reject(t *testing.T) {
	p := Profile{Paths: []PathRule{{Glob: "*vendor/*", Action: PathReject}}}
	r := &Result{Chunk: &chunk.Chunk{FilePath: "vendor/pkg/foo.go"}, Score: 1}
	if p.ApplyPathRules(r) {
		t.Error("expected reject to drop the candidate")
	}
}

func TestProfile_ApplyPathRules_BoostAndPenalty(t *testing.T) {
	p := Profile{Paths: []PathRule{
		{Glob: "internal/*", Action: PathBoost, Factor: 2.0},
		{Glob: "cmd/*", Action: PathPenalty, Factor: 0.5},
	}}

	internal := &Result{Chunk: &chunk.Chunk{FilePath: "internal/search/engine.go"}, Score: 1}
	if ok := p.ApplyPathRules(internal); !ok || internal.Score != 2.0 {
		t.Errorf("internal/ boost: score=%v ok=%v", internal.Score, ok)
	}

	wrapper := &Result{Chunk: &chunk.Chunk{FilePath: "cmd/amanmcpcore/main.go"}, Score: 1}
	if ok := p.ApplyPathRules(wrapper); !ok || wrapper.Score != 0.5 {
		t.Errorf("cmd/ penalty: score=%v ok=%v", wrapper.Score, ok)
	}
}

func TestProfile_ApplyMustHit_RequiresAllTokens(t *testing.T) {
	p := Profile{MustHit: []MustHitRule{
		{PathGlob: "*.go", RequiredTokens: []string{"reconcile", "watermark"}, Multiplier: 3.0},
	}}

	hit := &Result{Chunk: &chunk.Chunk{FilePath: "multimodel.go", Content: "func Reconcile() { updates Watermark }"}, Score: 1}
	p.ApplyMustHit(hit)
	if hit.Score != 3.0 {
		t.Errorf("score = %v, want 3.0", hit.Score)
	}

	miss := &Result{Chunk: &chunk.Chunk{FilePath: "multimodel.go", Content: "func Reconcile() {}"}, Score: 1}
	p.ApplyMustHit(miss)
	if miss.Score != 1.0 {
		t.Errorf("score = %v, want unchanged 1.0", miss.Score)
	}
}

func TestDefaultProfile_PenalizesTestFiles(t *testing.T) {
	p := DefaultProfile([]string{"stub"})
	r := &Result{Chunk: &chunk.Chunk{FilePath: "internal/search/engine_test.go"}, Score: 1}
	p.ApplyPathRules(r)
	if r.Score >= 1 {
		t.Errorf("test file should be penalized as noise, got score %v", r.Score)
	}
}
