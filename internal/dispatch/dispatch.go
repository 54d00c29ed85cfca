// Package dispatch provides the cross-cutting behavior shared by every MCP
// tool handler: root resolution, cursor aliasing, output budget
// enforcement, and secret-path/content safeguards. A tool handler resolves
// its path argument once via Dispatcher.Roots, renders its result, and
// passes that text through Dispatcher.EnforceBudget before returning it.
package dispatch

import (
	"crypto/sha256"
	"encoding/hex"
)

// Dispatcher holds the state shared by every tool handler on a single MCP
// connection.
type Dispatcher struct {
	Roots   *RootResolver
	Cursors *CursorStore
}

// New creates a Dispatcher scoped to workspaceRoots, the project
// directories this server instance is allowed to operate in. cwd is used
// as a last-resort root when allowCwdFallback is set and nothing else
// disambiguates (single ad-hoc project / CLI invocation).
func New(workspaceRoots []string, allowCwdFallback bool, cwd string) *Dispatcher {
	return &Dispatcher{
		Roots:   NewRootResolver(workspaceRoots, allowCwdFallback, cwd),
		Cursors: NewCursorStore(),
	}
}

// RootHash returns a short, stable fingerprint of root, embedded in cursor
// payloads so a cursor issued against a since-changed root is rejected
// rather than silently reused against the wrong project.
func RootHash(root string) string {
	sum := sha256.Sum256([]byte(root))
	return hex.EncodeToString(sum[:])[:12]
}

// EnforceBudget renders text within maxChars, returning whether it had to
// be truncated so the caller can attach a next_cursor.
func (d *Dispatcher) EnforceBudget(text string, maxChars int) (string, bool) {
	return TrimToBudget(text, maxChars)
}
