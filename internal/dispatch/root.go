package dispatch

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/amanmcp-core/amanmcp-core/internal/corerrors"
)

// RootResolution is the outcome of resolving a tool payload's path against
// the pinned session root.
type RootResolution struct {
	// Root is the absolute project root the tool should operate against.
	Root string

	// ScopeHint is a root-relative path the caller pointed at, when the
	// payload's path names a file or directory inside an already-pinned
	// root rather than asking to switch projects. Tools should fold this
	// into their own include_paths/file_pattern scoping.
	ScopeHint string
}

// RootResolver pins a single session root and resolves incoming tool paths
// against it. Once a root is pinned it is sticky: a later absolute path
// inside the pinned root is treated as a scope hint, never an implicit
// project switch. Only the explicit root_set operation (SetRoot) changes
// the pinned root.
type RootResolver struct {
	mu               sync.Mutex
	root             string
	pinned           bool
	workspaceRoots   []string
	allowCwdFallback bool
	cwd              string
}

// NewRootResolver creates a resolver scoped to workspaceRoots (the set of
// project directories this server instance is allowed to operate in).
// allowCwdFallback permits resolving against cwd when no root is pinned,
// there is no single workspace root, and no hint disambiguates — the
// in-process/CLI mode where there is exactly one caller and no MCP
// roots/list negotiation.
func NewRootResolver(workspaceRoots []string, allowCwdFallback bool, cwd string) *RootResolver {
	cleaned := make([]string, 0, len(workspaceRoots))
	for _, r := range workspaceRoots {
		if r == "" {
			continue
		}
		cleaned = append(cleaned, filepath.Clean(r))
	}
	return &RootResolver{
		workspaceRoots:   cleaned,
		allowCwdFallback: allowCwdFallback,
		cwd:              filepath.Clean(cwd),
	}
}

// Pinned reports whether a session root has been established.
func (r *RootResolver) Pinned() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root, r.pinned
}

// SetRoot pins the session root explicitly (the root_set operation). path
// must be absolute and must fall under one of the configured workspace
// roots unless no workspace roots were configured at all (single ad-hoc
// project mode).
func (r *RootResolver) SetRoot(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", corerrors.InvalidRequest("root_set requires a non-empty path", nil)
	}
	canonical := filepath.Clean(path)
	if !filepath.IsAbs(canonical) {
		return "", corerrors.InvalidRequest("root_set requires an absolute path", nil).
			WithDetail("path", path)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.workspaceRoots) > 0 && !r.allowedLocked(canonical) {
		return "", corerrors.InvalidRequest("path is outside the allowed workspace roots", nil).
			WithDetail("path", canonical)
	}
	r.root = canonical
	r.pinned = true
	return r.root, nil
}

// Resolve computes the project root and optional scope hint for a single
// tool invocation's path argument (path may be empty).
func (r *RootResolver) Resolve(path string) (RootResolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path = strings.TrimSpace(path)

	if path == "" {
		if r.pinned {
			return RootResolution{Root: r.root}, nil
		}
		if len(r.workspaceRoots) == 1 {
			return RootResolution{Root: r.workspaceRoots[0]}, nil
		}
		if r.allowCwdFallback && r.cwd != "" {
			return RootResolution{Root: r.cwd}, nil
		}
		return RootResolution{}, missingRootErr()
	}

	if filepath.IsAbs(path) {
		canonical := filepath.Clean(path)
		if r.pinned {
			if rel, within := relativeWithin(r.root, canonical); within {
				return RootResolution{Root: r.root, ScopeHint: rel}, nil
			}
			// Absolute path outside the pinned root never switches
			// projects implicitly; the caller must root_set first.
			return RootResolution{}, corerrors.InvalidRequest(
				"path is outside the pinned session root; call root_set to switch projects", nil).
				WithDetail("path", canonical).WithDetail("root", r.root)
		}
		if len(r.workspaceRoots) > 0 && !r.allowedLocked(canonical) {
			if !r.allowCwdFallback {
				return RootResolution{}, corerrors.InvalidRequest(
					"path is outside the allowed workspace roots", nil).WithDetail("path", canonical)
			}
		}
		return RootResolution{Root: canonical}, nil
	}

	// Relative path.
	if r.pinned {
		return RootResolution{Root: r.root, ScopeHint: path}, nil
	}
	if len(r.workspaceRoots) == 1 {
		return RootResolution{Root: r.workspaceRoots[0], ScopeHint: path}, nil
	}
	if len(r.workspaceRoots) > 1 {
		if root := selectByHint(r.workspaceRoots, path); root != "" {
			return RootResolution{Root: root, ScopeHint: path}, nil
		}
		return RootResolution{}, ambiguousRootErr()
	}
	if r.allowCwdFallback && r.cwd != "" {
		return RootResolution{Root: r.cwd, ScopeHint: path}, nil
	}
	return RootResolution{}, missingRootErr()
}

func (r *RootResolver) allowedLocked(candidate string) bool {
	for _, root := range r.workspaceRoots {
		if _, within := relativeWithin(root, candidate); within {
			return true
		}
	}
	return false
}

// relativeWithin reports whether candidate is root itself or a descendant
// of root, returning the root-relative path when it is.
func relativeWithin(root, candidate string) (string, bool) {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	if strings.HasPrefix(rel, "..") {
		return "", false
	}
	return rel, true
}

// selectByHint picks the workspace root whose basename or trailing path
// segment best matches the relative path's first component, mirroring the
// "nearest workspace root by hint" disambiguation without the full
// MCP roots/list race-guard the original in-process service needed.
func selectByHint(roots []string, hint string) string {
	first := strings.Split(hint, "/")[0]
	for _, root := range roots {
		if filepath.Base(root) == first {
			return root
		}
	}
	return ""
}

func missingRootErr() error {
	return corerrors.InvalidRequest(
		"no project root is established: call root_set, or pass an absolute path, or run with a single workspace root",
		nil)
}

func ambiguousRootErr() error {
	return corerrors.InvalidRequest(
		"relative path is ambiguous across multiple workspace roots: call root_set or pass an absolute path", nil)
}
