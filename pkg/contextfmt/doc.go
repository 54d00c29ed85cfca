// Package contextfmt renders tool results into the character-budgeted
// ".context" text format shared across every MCP tool response: an A:
// answer line, zero or more R: reference lines, zero or more N: notes,
// optional numbered file content blocks, and a trailing M: continuation
// cursor. Exactly one A: line is emitted per response.
//
// The format is distinct from the meaningpack package's CPV1 pack text;
// a CPV1 pack is itself embedded as a content block when a tool's answer
// is a meaning pack rather than a search hit list.
package contextfmt
