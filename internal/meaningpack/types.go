// Package meaningpack builds the compact, dictionary-compressed "CPV1"
// text packs that let a tool-calling model orient itself in a project
// without reading whole files: a directory map, detected boundaries
// (CLI/HTTP/event/env/config/db entry points), contracts, message flows,
// brokers, and a capped evidence list of byte-ranges worth reading next.
package meaningpack

import "sort"

// BoundaryKind classifies where a file crosses in or out of the process.
type BoundaryKind string

const (
	BoundaryCLI    BoundaryKind = "cli"
	BoundaryHTTP   BoundaryKind = "http"
	BoundaryEvent  BoundaryKind = "event"
	BoundaryEnv    BoundaryKind = "env"
	BoundaryConfig BoundaryKind = "config"
	BoundaryDB     BoundaryKind = "db"
)

// boundaryKindRank is the primary sort key for boundaries; confidence and
// path only break ties within a kind.
var boundaryKindRank = map[BoundaryKind]int{
	BoundaryHTTP:   0,
	BoundaryCLI:    1,
	BoundaryEvent:  2,
	BoundaryEnv:    3,
	BoundaryConfig: 4,
	BoundaryDB:     5,
}

// BoundaryCandidate is a file classified as crossing a process boundary.
type BoundaryCandidate struct {
	Kind       BoundaryKind
	File       string
	Confidence float32
}

// sortBoundaries orders by kind rank, then descending confidence, then
// path, so section emission is deterministic across runs.
func sortBoundaries(candidates []BoundaryCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if boundaryKindRank[a.Kind] != boundaryKindRank[b.Kind] {
			return boundaryKindRank[a.Kind] < boundaryKindRank[b.Kind]
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.File < b.File
	})
}

// FlowDirection is the direction of a message-flow edge relative to the
// service that owns the contract file it was extracted from.
type FlowDirection string

const (
	FlowPublish   FlowDirection = "publish"
	FlowSubscribe FlowDirection = "subscribe"
)

// FlowEdge is one channel operation extracted from an AsyncAPI contract.
type FlowEdge struct {
	ContractFile string
	Channel      string
	Direction    FlowDirection
	Protocol     string // empty if not stated
}

// BrokerCandidate is a file that looks like it wires a message broker
// client (connection string, client constructor, topic/queue config).
type BrokerCandidate struct {
	File       string
	Proto      string // kafka, nats, amqp, redis, sqs, ...
	Confidence float32
}

// EvidenceKind tags why an evidence item was selected.
type EvidenceKind string

const (
	EvidenceEntrypoint EvidenceKind = "entrypoint"
	EvidenceContract   EvidenceKind = "contract"
	EvidenceBoundary   EvidenceKind = "boundary"
	EvidenceAnchor     EvidenceKind = "anchor"
)

// EvidenceItem is a byte-hashed file range worth reading next.
type EvidenceItem struct {
	Kind         EvidenceKind
	BoundaryKind BoundaryKind // set only when Kind == EvidenceBoundary
	File         string
	StartLine    int
	EndLine      int
	SourceHash   string // sha256 hex, empty if the file couldn't be hashed
}

// OutlineSymbol is one symbol declaration surfaced by a focus pack.
type OutlineSymbol struct {
	Kind       string
	Name       string
	StartLine  int
	EndLine    int
	Confidence float32
}

// MapRow is one directory's file count in the project map.
type MapRow struct {
	Path  string
	Files int
}

// NextAction is a suggested follow-up tool call, included only in "full"
// response mode.
type NextAction struct {
	Tool   string
	Reason string
	Args   map[string]string
}

// Budget bounds and reports on a pack's size.
type Budget struct {
	MaxChars   int
	UsedChars  int
	Truncated  bool
	Truncation string // reason, set only when Truncated
}

// Result is a rendered CPV1 pack plus its metadata.
type Result struct {
	Version     int
	Query       string
	Format      string // always "cpv1"
	Pack        string
	Budget      Budget
	NextActions []NextAction
}
