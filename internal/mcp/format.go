package mcp

import (
	"fmt"
	"strings"

	"github.com/amanmcp-core/amanmcp-core/pkg/contextfmt"
)

// renderSearchContext renders a search tool response in the .context
// format: one A: line summarizing the hit count, one R: line per hit,
// and a numbered content block per hit's snippet.
func renderSearchContext(query string, hits []SearchHit, nextCursor string) string {
	answer := fmt.Sprintf("%d result", len(hits))
	if len(hits) != 1 {
		answer += "s"
	}
	answer += fmt.Sprintf(" for %q", query)

	b := contextfmt.New(answer)
	for _, h := range hits {
		symbol := ""
		if h.Explain != nil && h.Explain.MatchLine > 0 {
			symbol = fmt.Sprintf("line %d", h.Explain.MatchLine)
		}
		b.AddRef(contextfmt.Ref{File: h.FilePath, Line: h.StartLine, Symbol: symbol})
	}
	for _, h := range hits {
		if h.Redacted {
			b.AddNote(fmt.Sprintf("%s: snippet withheld, looked like a secret", h.FilePath))
			continue
		}
		b.AddContent(contextfmt.ContentBlock{
			File:      h.FilePath,
			Language:  snippetLang(h.FilePath),
			StartLine: h.StartLine,
			Content:   h.Snippet,
			Numbered:  true,
		})
	}
	if nextCursor != "" {
		b.SetCursor(nextCursor)
	}
	return b.Render()
}

// renderPackContext wraps a CPV1 meaning pack (or a Mermaid diagram) as
// the sole content block of a .context response.
func renderPackContext(answer, body string, truncated bool) string {
	b := contextfmt.New(answer)
	if truncated {
		b.AddNote("pack truncated to fit the character budget")
	}
	b.AddContent(contextfmt.ContentBlock{
		File:     "pack",
		Language: "text",
		Content:  body,
	})
	return b.Render()
}

// renderDoctorContext renders the doctor tool's diagnostic summary.
func renderDoctorContext(out DoctorOutput) string {
	answer := "no issues found"
	if len(out.Issues) > 0 {
		answer = fmt.Sprintf("%d issue(s) found", len(out.Issues))
	}

	b := contextfmt.New(answer)
	b.AddNote(fmt.Sprintf("project: %s (%s)", out.ProjectName, out.ProjectType))
	b.AddNote(fmt.Sprintf("daemon running: %t", out.DaemonRunning))
	if out.EmbedderAvailable {
		b.AddNote(fmt.Sprintf("embedder available: %s", out.EmbedderModel))
	} else {
		b.AddNote("embedder available: false")
	}
	for _, issue := range out.Issues {
		b.AddNote(issue)
	}
	return b.Render()
}

// renderRootSetContext renders the root_set tool's confirmation.
func renderRootSetContext(root string) string {
	return contextfmt.New(fmt.Sprintf("root pinned to %s", root)).Render()
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

// clampMaxChars ensures a max_chars input is within sane bounds.
func clampMaxChars(v, defaultVal int) int {
	const (
		minChars = 200
		maxChars = 500_000
	)
	if v <= 0 {
		return defaultVal
	}
	if v < minChars {
		return minChars
	}
	if v > maxChars {
		return maxChars
	}
	return v
}

// snippetLang guesses a fenced-block language hint from a file path's
// extension, falling back to "text".
func snippetLang(path string) string {
	mime := MimeTypeForPath(path)
	if idx := strings.Index(mime, "/x-"); idx >= 0 {
		return mime[idx+3:]
	}
	switch mime {
	case "text/markdown":
		return "markdown"
	case "text/typescript":
		return "typescript"
	case "text/javascript":
		return "javascript"
	case "application/json":
		return "json"
	default:
		return "text"
	}
}
