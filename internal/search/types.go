// Package search implements the query planner and hybrid search path:
// classify the query, fan out across the active embedding models, merge
// and rerank candidates, and fall back to a bounded lexical walk when
// semantic search can't be trusted or isn't available.
package search

import (
	"context"

	"github.com/amanmcp-core/amanmcp-core/internal/chunk"
)

// QueryKind is the query classification used to pick an embedding
// template and a hybrid-rerank weighting.
type QueryKind string

const (
	KindIdentifier QueryKind = "identifier"
	KindPath       QueryKind = "path"
	KindConceptual QueryKind = "conceptual"
)

// ResponseMode gates how much metadata and how many NextActions a tool
// response carries.
type ResponseMode string

const (
	ModeMinimal ResponseMode = "minimal"
	ModeFacts   ResponseMode = "facts"
	ModeFull    ResponseMode = "full"
)

// Classifier assigns a QueryKind to a raw query string.
type Classifier interface {
	Classify(query string) QueryKind
}

// Request is one search call.
type Request struct {
	Query string
	Limit int

	// Mode gates response verbosity; callers outside this package use it
	// to decide how much of Result to surface.
	Mode ResponseMode

	// IncludePaths, ExcludePaths, FilePattern are request-level path
	// filters applied after profile rules (step 5).
	IncludePaths []string
	ExcludePaths []string
	FilePattern  string

	// DocsIntent marks queries explicitly about documentation; it
	// disables the anchor-required guard, which only applies to
	// code-seeking identifier/path queries.
	DocsIntent bool

	// Semantic, if false, skips model fan-out entirely and goes
	// straight to lexical fallback.
	Semantic bool
}

// Result is one ranked hit.
type Result struct {
	ChunkID  string
	Chunk    *chunk.Chunk
	Score    float64
	Semantic bool // true if this hit came from the model fan-out, false if lexical fallback

	// ModelHits records the per-model raw similarity this chunk scored,
	// keyed by model id, before profile rules and reranking.
	ModelHits map[string]float64

	// Lexical fallback only: the line range of the matched hunk.
	MatchLine int
}

// Engine is implemented by the query planner; exists so callers (the tool
// dispatcher) can depend on an interface rather than the concrete type.
type Engine interface {
	Search(ctx context.Context, req Request) ([]*Result, error)
}
