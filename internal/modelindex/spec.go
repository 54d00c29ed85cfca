// Package modelindex implements the per-model vector sub-indexers and the
// MultiModelProjectIndexer that owns them.
package modelindex

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// EmbeddingTemplates describes per-query-kind and per-document-kind
// formatting strings applied to text before it is embedded. A 64-bit hash
// of their content is part of the cache key so a template edit forces
// re-embedding of everything under that model.
type EmbeddingTemplates struct {
	// QueryTemplates maps a query classification ("identifier", "path",
	// "conceptual") to a format string applied before embedding the query.
	// The format string contains exactly one "%s" placeholder for the
	// raw query text.
	QueryTemplates map[string]string

	// DocTemplate formats chunk content before embedding, with one "%s"
	// for the chunk's content.
	DocTemplate string
}

// Hash returns a stable 64-bit digest of the template set. Map keys are
// sorted before hashing so iteration order never affects the result.
func (t EmbeddingTemplates) Hash() uint64 {
	h := xxhash.New()
	keys := make([]string, 0, len(t.QueryTemplates))
	for k := range t.QueryTemplates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = h.WriteString(k)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(t.QueryTemplates[k])
		_, _ = h.Write([]byte{'\n'})
	}
	_, _ = h.WriteString(strings.Repeat("=", 1)) // separator between sections
	_, _ = h.WriteString(t.DocTemplate)
	return h.Sum64()
}

// FormatQuery renders a query for embedding according to its classification.
// Unknown kinds fall back to the "conceptual" template, and a missing
// template set simply returns the raw query.
func (t EmbeddingTemplates) FormatQuery(kind, query string) string {
	tmpl, ok := t.QueryTemplates[kind]
	if !ok {
		tmpl, ok = t.QueryTemplates["conceptual"]
	}
	if !ok || !strings.Contains(tmpl, "%s") {
		return query
	}
	return strings.Replace(tmpl, "%s", query, 1)
}

// FormatDoc renders chunk content for embedding.
func (t EmbeddingTemplates) FormatDoc(content string) string {
	if t.DocTemplate == "" || !strings.Contains(t.DocTemplate, "%s") {
		return content
	}
	return strings.Replace(t.DocTemplate, "%s", content, 1)
}

// DefaultTemplates is a minimal, content-preserving template set used when
// a model spec does not supply its own.
func DefaultTemplates() EmbeddingTemplates {
	return EmbeddingTemplates{
		QueryTemplates: map[string]string{
			"identifier": "symbol: %s",
			"path":       "file: %s",
			"conceptual": "%s",
		},
		DocTemplate: "%s",
	}
}

// ModelIndexSpec names an embedding model and the templates to embed with.
type ModelIndexSpec struct {
	ModelID   string
	Templates EmbeddingTemplates
}
