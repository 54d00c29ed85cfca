package mcp

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query        string `json:"query" jsonschema:"the search query to execute"`
	Root         string `json:"root,omitempty" jsonschema:"project root to search; omit to use the pinned session root"`
	Limit        int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Semantic     *bool  `json:"semantic,omitempty" jsonschema:"set false to skip model fan-out and go straight to lexical fallback"`
	Explain      bool   `json:"explain,omitempty" jsonschema:"include per-model scores and the match reason for each result"`
	AllowSecrets bool   `json:"allow_secrets,omitempty" jsonschema:"surface snippets from paths/content that look like secrets instead of refusing them"`
	Cursor       string `json:"cursor,omitempty" jsonschema:"continuation cursor from a previous truncated search response"`
	MaxChars     int    `json:"max_chars,omitempty" jsonschema:"character budget for the rendered response, default 4000"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Text       string      `json:"text" jsonschema:"the rendered .context response"`
	Results    []SearchHit `json:"results"`
	NextCursor string      `json:"next_cursor,omitempty" jsonschema:"pass as cursor to continue a truncated response"`
	Truncated  bool        `json:"truncated"`
}

// SearchHit is one ranked result, with optional explain-mode detail.
type SearchHit struct {
	FilePath  string          `json:"file_path"`
	StartLine int             `json:"start_line"`
	EndLine   int             `json:"end_line"`
	Score     float64         `json:"score"`
	Semantic  bool            `json:"semantic"`
	Snippet   string          `json:"snippet"`
	Explain   *SearchExplain  `json:"explain,omitempty"`
	Redacted  bool            `json:"redacted,omitempty" jsonschema:"true if the snippet was redacted or withheld as a likely secret"`
}

// SearchExplain carries the per-model raw similarity a hit scored before
// profile rules and reranking, surfaced only when SearchInput.Explain is set.
type SearchExplain struct {
	ModelHits map[string]float64 `json:"model_hits,omitempty"`
	MatchLine int                `json:"match_line,omitempty"`
}

// MeaningPackInput defines the input schema for the meaning_pack tool.
type MeaningPackInput struct {
	Root         string `json:"root,omitempty" jsonschema:"project root to summarize; omit to use the pinned session root"`
	Query        string `json:"query,omitempty" jsonschema:"the task or question the pack should orient toward"`
	ResponseMode string `json:"response_mode,omitempty" jsonschema:"facts or full; full adds suggested next tool calls"`
	MaxChars     int    `json:"max_chars,omitempty" jsonschema:"character budget for the pack, default 2000"`
}

// MeaningFocusInput defines the input schema for the meaning_focus tool.
type MeaningFocusInput struct {
	Root         string `json:"root,omitempty" jsonschema:"project root containing the focus path; omit to use the pinned session root"`
	Focus        string `json:"focus" jsonschema:"project-relative file or directory to scope the pack to"`
	Query        string `json:"query,omitempty" jsonschema:"the task or question the pack should orient toward"`
	ResponseMode string `json:"response_mode,omitempty" jsonschema:"facts or full; full adds suggested next tool calls"`
	MaxChars     int    `json:"max_chars,omitempty" jsonschema:"character budget for the pack, default 2000"`
}

// MeaningPackOutput defines the output schema shared by meaning_pack and meaning_focus.
type MeaningPackOutput struct {
	Text      string `json:"text" jsonschema:"the rendered .context response wrapping the CPV1 pack"`
	Pack      string `json:"pack" jsonschema:"the raw CPV1-format meaning pack text"`
	Truncated bool   `json:"truncated"`
}

// RootSetInput defines the input schema for the root_set tool.
type RootSetInput struct {
	Root string `json:"root" jsonschema:"absolute path to pin as this session's active root"`
}

// RootSetOutput defines the output schema for the root_set tool.
type RootSetOutput struct {
	Text string `json:"text"`
	Root string `json:"root"`
}

// DoctorInput defines the input schema for the doctor tool; its only
// parameter is the optional root.
type DoctorInput struct {
	Root string `json:"root,omitempty" jsonschema:"project root to diagnose; omit to use the pinned session root"`
}

// DoctorOutput defines the output schema for the doctor tool.
type DoctorOutput struct {
	Text              string   `json:"text"`
	DaemonRunning     bool     `json:"daemon_running"`
	EmbedderAvailable bool     `json:"embedder_available"`
	EmbedderModel     string   `json:"embedder_model,omitempty"`
	ProjectType       string   `json:"project_type"`
	ProjectName       string   `json:"project_name"`
	Issues            []string `json:"issues,omitempty"`
}

// MeaningDiagramInput defines the input schema for the meaning_diagram tool.
type MeaningDiagramInput struct {
	Root string `json:"root,omitempty" jsonschema:"project root to diagram; omit to use the pinned session root"`
}

// MeaningDiagramOutput defines the output schema for the meaning_diagram tool.
type MeaningDiagramOutput struct {
	Text    string `json:"text" jsonschema:"the rendered .context response wrapping the Mermaid diagram"`
	Mermaid string `json:"mermaid" jsonschema:"the raw Mermaid flowchart text"`
}
