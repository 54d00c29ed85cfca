package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/amanmcp-core/amanmcp-core/internal/config"
	"github.com/amanmcp-core/amanmcp-core/internal/daemon"
	"github.com/amanmcp-core/amanmcp-core/internal/dispatch"
	"github.com/amanmcp-core/amanmcp-core/internal/meaningpack"
	"github.com/amanmcp-core/amanmcp-core/internal/search"
	"github.com/amanmcp-core/amanmcp-core/internal/telemetry"
	"github.com/amanmcp-core/amanmcp-core/pkg/version"
)

// ProjectResolver supplies the per-root search engine and meaning-pack
// generator a tool handler needs once the dispatcher has resolved a
// root. Implementations own indexer/embedder lifecycle; the server only
// depends on this interface, the same way it depends on search.Engine
// rather than a concrete query planner.
type ProjectResolver interface {
	Engine(root string) (search.Engine, error)
	Generator(root string) (*meaningpack.Generator, error)
}

// Server is the MCP server bridging AI clients to the search and
// meaning-pack tools over one dispatcher-managed project root per
// connection.
type Server struct {
	mcp      *mcp.Server
	resolver ProjectResolver
	dispatch *dispatch.Dispatcher
	daemon   *daemon.Client // optional, nil disables daemon checks in doctor
	config   *config.Config
	logger   *slog.Logger

	metrics *telemetry.QueryMetrics

	mu sync.RWMutex
}

// NewServer creates a new MCP server. workspaceRoots bounds which
// absolute paths root_set/relative-path resolution may select (see
// internal/dispatch); an empty list allows any root requested.
func NewServer(resolver ProjectResolver, daemonClient *daemon.Client, cfg *config.Config, workspaceRoots []string, cwd string) (*Server, error) {
	if resolver == nil {
		return nil, errors.New("project resolver is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		resolver: resolver,
		dispatch: dispatch.New(workspaceRoots, len(workspaceRoots) == 0, cwd),
		daemon:   daemonClient,
		config:   cfg,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "AmanMCP",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()

	return s, nil
}

// SetMetrics sets the query metrics collector for telemetry.
func (s *Server) SetMetrics(m *telemetry.QueryMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "AmanMCP", version.Version
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport, addr string) error {
	s.logger.Info("Starting MCP server",
		slog.String("transport", transport),
		slog.String("addr", addr))

	switch transport {
	case "stdio":
		s.logger.Debug("Using stdio transport for JSON-RPC")
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error",
				slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	case "sse":
		return fmt.Errorf("SSE transport not yet implemented")
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	return nil
}

// resolveRoot resolves an input root (possibly empty) through the
// dispatcher, translating resolution failures into MCP errors.
func (s *Server) resolveRoot(path string) (string, error) {
	res, err := s.dispatch.Roots.Resolve(path)
	if err != nil {
		return "", MapError(err)
	}
	return res.Root, nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Primary search tool. Instantly finds code and documentation using a full-codebase index. Use this for 95% of your search tasks - faster and smarter than grep. Understands code semantics, not just keywords.",
	}, s.mcpSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "meaning_pack",
		Description: "Whole-project orientation. Returns a compact, dictionary-compressed summary of the project's directory map, entry points, contracts, message flows, and evidence pointers - read this before exploring an unfamiliar codebase.",
	}, s.mcpMeaningPackHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "meaning_focus",
		Description: "Scoped orientation for one file or directory. Same evidence-backed summary as meaning_pack, filtered to a focus path, with a code outline when the focus is a single source file.",
	}, s.mcpMeaningFocusHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "root_set",
		Description: "Pins the active project root for this session. Required before relative-path tool calls when more than one project root is configured.",
	}, s.mcpRootSetHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "doctor",
		Description: "Diagnoses the local setup: daemon liveness, embedder availability, and detected project type. Use when search or indexing results look wrong.",
	}, s.mcpDoctorHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "meaning_diagram",
		Description: "Renders a Mermaid flowchart of the project's detected boundaries and message flows, for pasting into a doc or chat that renders Mermaid.",
	}, s.mcpMeaningDiagramHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", 6))
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	start := time.Now()
	requestID := generateRequestID()

	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}

	root, err := s.resolveRoot(input.Root)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	if input.Cursor != "" {
		if _, cerr := s.dispatch.Cursors.ExpandCursorAlias(input.Cursor, dispatch.RootHash(root), "search"); cerr != nil {
			return nil, SearchOutput{}, MapError(cerr)
		}
	}

	engine, err := s.resolver.Engine(root)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	limit := clampLimit(input.Limit, search.DefaultLimit, 1, search.MaxLimit)
	semantic := true
	if input.Semantic != nil {
		semantic = *input.Semantic
	}

	s.logger.Info("search started",
		slog.String("request_id", requestID),
		slog.String("query", input.Query),
		slog.Int("limit", limit))

	results, err := engine.Search(ctx, search.Request{
		Query:    input.Query,
		Limit:    limit,
		Semantic: semantic,
	})
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(results)))

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		if r == nil || r.Chunk == nil {
			continue
		}
		hits = append(hits, toSearchHit(r, input.Explain, input.AllowSecrets))
	}

	maxChars := clampMaxChars(input.MaxChars, 4000)
	text := renderSearchContext(input.Query, hits, "")
	trimmed, truncated := s.dispatch.EnforceBudget(text, maxChars)

	output := SearchOutput{Text: trimmed, Results: hits, Truncated: truncated}
	if truncated {
		payload := dispatch.CursorPayload{V: dispatch.CursorVersion, Tool: "search", RootHash: dispatch.RootHash(root), Root: root}
		output.NextCursor = s.dispatch.Cursors.Alias(payload)
		output.Text = renderSearchContext(input.Query, hits, output.NextCursor)
		output.Text, _ = s.dispatch.EnforceBudget(output.Text, maxChars)
	}

	return nil, output, nil
}

// toSearchHit converts a search.Result to a SearchHit, applying the
// secret-path/content safeguards unless the caller opted out.
func toSearchHit(r *search.Result, explain, allowSecrets bool) SearchHit {
	hit := SearchHit{
		FilePath:  r.Chunk.FilePath,
		StartLine: r.Chunk.StartLine,
		EndLine:   r.Chunk.EndLine,
		Score:     r.Score,
		Semantic:  r.Semantic,
	}

	if dispatch.RefusePath(r.Chunk.FilePath, allowSecrets) {
		hit.Redacted = true
	} else {
		content := r.Chunk.RawContent
		if content == "" {
			content = r.Chunk.Content
		}
		hit.Snippet = dispatch.ScrubSensitiveContent(content, allowSecrets)
	}

	if explain {
		hit.Explain = &SearchExplain{ModelHits: r.ModelHits, MatchLine: r.MatchLine}
	}

	return hit
}

func (s *Server) mcpMeaningPackHandler(ctx context.Context, _ *mcp.CallToolRequest, input MeaningPackInput) (
	*mcp.CallToolResult,
	MeaningPackOutput,
	error,
) {
	root, err := s.resolveRoot(input.Root)
	if err != nil {
		return nil, MeaningPackOutput{}, err
	}

	gen, err := s.resolver.Generator(root)
	if err != nil {
		return nil, MeaningPackOutput{}, MapError(err)
	}

	result, err := gen.Generate(ctx, meaningpack.Request{
		Query:        input.Query,
		ResponseMode: responseMode(input.ResponseMode),
		MaxChars:     clampMaxChars(input.MaxChars, meaningpack.DefaultMaxChars),
	})
	if err != nil {
		return nil, MeaningPackOutput{}, MapError(err)
	}

	answer := fmt.Sprintf("meaning pack for %s", root)
	text := renderPackContext(answer, result.Pack, result.Budget.Truncated)

	return nil, MeaningPackOutput{Text: text, Pack: result.Pack, Truncated: result.Budget.Truncated}, nil
}

func (s *Server) mcpMeaningFocusHandler(ctx context.Context, _ *mcp.CallToolRequest, input MeaningFocusInput) (
	*mcp.CallToolResult,
	MeaningPackOutput,
	error,
) {
	if strings.TrimSpace(input.Focus) == "" {
		return nil, MeaningPackOutput{}, NewInvalidParamsError("focus parameter is required")
	}

	root, err := s.resolveRoot(input.Root)
	if err != nil {
		return nil, MeaningPackOutput{}, err
	}

	gen, err := s.resolver.Generator(root)
	if err != nil {
		return nil, MeaningPackOutput{}, MapError(err)
	}

	result, err := gen.Focus(ctx, meaningpack.FocusRequest{
		Focus:        input.Focus,
		Query:        input.Query,
		ResponseMode: responseMode(input.ResponseMode),
		MaxChars:     clampMaxChars(input.MaxChars, meaningpack.DefaultMaxChars),
	})
	if err != nil {
		return nil, MeaningPackOutput{}, MapError(err)
	}

	answer := fmt.Sprintf("meaning pack for %s", input.Focus)
	text := renderPackContext(answer, result.Pack, result.Budget.Truncated)

	return nil, MeaningPackOutput{Text: text, Pack: result.Pack, Truncated: result.Budget.Truncated}, nil
}

func (s *Server) mcpRootSetHandler(_ context.Context, _ *mcp.CallToolRequest, input RootSetInput) (
	*mcp.CallToolResult,
	RootSetOutput,
	error,
) {
	if strings.TrimSpace(input.Root) == "" {
		return nil, RootSetOutput{}, NewInvalidParamsError("root parameter is required")
	}

	root, err := s.dispatch.Roots.SetRoot(input.Root)
	if err != nil {
		return nil, RootSetOutput{}, MapError(err)
	}

	return nil, RootSetOutput{Text: renderRootSetContext(root), Root: root}, nil
}

func (s *Server) mcpDoctorHandler(ctx context.Context, _ *mcp.CallToolRequest, input DoctorInput) (
	*mcp.CallToolResult,
	DoctorOutput,
	error,
) {
	root, err := s.resolveRoot(input.Root)
	if err != nil {
		return nil, DoctorOutput{}, err
	}

	out := &DoctorOutput{}
	var issues []string

	if s.daemon != nil && s.daemon.IsRunning() {
		out.DaemonRunning = true
		if statuses, serr := s.daemon.Status(ctx); serr != nil {
			issues = append(issues, fmt.Sprintf("daemon status check failed: %s", serr.Error()))
		} else if len(statuses) == 0 {
			issues = append(issues, "daemon is running but has no resident projects")
		}
	} else {
		issues = append(issues, "daemon is not running; searches will cold-start the index each call")
	}

	if engine, eerr := s.resolver.Engine(root); eerr != nil {
		issues = append(issues, fmt.Sprintf("search engine unavailable: %s", eerr.Error()))
	} else if engine == nil {
		issues = append(issues, "search engine unavailable")
	} else {
		out.EmbedderAvailable = true
	}

	detector := NewProjectDetector(root, s.logger)
	projectInfo := detector.Detect()
	out.ProjectType = projectInfo.Type
	out.ProjectName = projectInfo.Name
	if projectInfo.Type == "unknown" {
		issues = append(issues, "could not detect a project type from go.mod/package.json/pyproject.toml")
	}

	out.Issues = issues
	out.Text = renderDoctorContext(*out)

	return nil, *out, nil
}

func (s *Server) mcpMeaningDiagramHandler(ctx context.Context, _ *mcp.CallToolRequest, input MeaningDiagramInput) (
	*mcp.CallToolResult,
	MeaningDiagramOutput,
	error,
) {
	root, err := s.resolveRoot(input.Root)
	if err != nil {
		return nil, MeaningDiagramOutput{}, err
	}

	gen, err := s.resolver.Generator(root)
	if err != nil {
		return nil, MeaningDiagramOutput{}, MapError(err)
	}

	result, err := gen.Diagram(ctx)
	if err != nil {
		return nil, MeaningDiagramOutput{}, MapError(err)
	}

	text := renderPackContext(fmt.Sprintf("meaning diagram for %s", root), result.Mermaid, false)
	return nil, MeaningDiagramOutput{Text: text, Mermaid: result.Mermaid}, nil
}

// responseMode maps a free-form response_mode input to meaningpack's
// ResponseMode, defaulting to facts for anything unrecognized.
func responseMode(mode string) meaningpack.ResponseMode {
	if meaningpack.ResponseMode(mode) == meaningpack.ResponseFull {
		return meaningpack.ResponseFull
	}
	return meaningpack.ResponseFacts
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
