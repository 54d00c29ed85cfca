package contextfmt

import (
	"fmt"
	"strconv"
	"strings"
)

// Ref is one R: reference line: a file location and the symbol it covers.
type Ref struct {
	File   string
	Line   int
	Symbol string
}

// ContentBlock is a chunk of file content rendered after the A:/R:/N:
// lines, optionally numbered from StartLine.
type ContentBlock struct {
	File      string
	Language  string
	StartLine int
	Content   string
	Numbered  bool
}

// Builder assembles one .context response. The zero value is not usable;
// construct with New.
type Builder struct {
	answer string
	refs   []Ref
	notes  []string
	blocks []ContentBlock
	cursor string
}

// New starts a builder with the mandatory A: line. answer must not be
// empty: every response carries exactly one answer line.
func New(answer string) *Builder {
	return &Builder{answer: answer}
}

// AddRef appends an R: reference line.
func (b *Builder) AddRef(ref Ref) *Builder {
	b.refs = append(b.refs, ref)
	return b
}

// AddNote appends an N: note line.
func (b *Builder) AddNote(note string) *Builder {
	if note == "" {
		return b
	}
	b.notes = append(b.notes, note)
	return b
}

// AddContent appends a file content block, rendered after the R:/N: lines
// and before the M: cursor.
func (b *Builder) AddContent(block ContentBlock) *Builder {
	b.blocks = append(b.blocks, block)
	return b
}

// SetCursor sets the trailing M: continuation cursor. An empty token
// omits the M: line entirely.
func (b *Builder) SetCursor(token string) *Builder {
	b.cursor = token
	return b
}

// Render assembles the final text. The A: line is always first and
// always present; the M: line, when set, is always last.
func (b *Builder) Render() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "A: %s\n", oneLine(b.answer))

	for _, ref := range b.refs {
		sb.WriteString(renderRef(ref))
		sb.WriteByte('\n')
	}

	for _, note := range b.notes {
		fmt.Fprintf(&sb, "N: %s\n", oneLine(note))
	}

	for _, block := range b.blocks {
		sb.WriteString(renderBlock(block))
	}

	if b.cursor != "" {
		fmt.Fprintf(&sb, "M: %s\n", b.cursor)
	}

	return sb.String()
}

// renderRef formats a single R: line: "R: <file>:<line> <symbol>". The
// symbol is omitted when empty.
func renderRef(ref Ref) string {
	if ref.Symbol == "" {
		return fmt.Sprintf("R: %s:%d", ref.File, ref.Line)
	}
	return fmt.Sprintf("R: %s:%d %s", ref.File, ref.Line, ref.Symbol)
}

// renderBlock renders a fenced content block. Numbered blocks prefix
// each line with its absolute source line number.
func renderBlock(block ContentBlock) string {
	lang := block.Language
	if lang == "" {
		lang = "text"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n", block.File)
	fmt.Fprintf(&sb, "```%s\n", lang)

	if !block.Numbered {
		sb.WriteString(block.Content)
		if !strings.HasSuffix(block.Content, "\n") {
			sb.WriteByte('\n')
		}
	} else {
		lines := strings.Split(block.Content, "\n")
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		start := block.StartLine
		if start <= 0 {
			start = 1
		}
		width := len(strconv.Itoa(start + len(lines) - 1))
		for i, line := range lines {
			fmt.Fprintf(&sb, "%*d: %s\n", width, start+i, line)
		}
	}

	sb.WriteString("```\n")
	return sb.String()
}

// oneLine collapses embedded newlines so A:/N: lines stay single-line,
// the invariant the budget trimmer relies on to count lines reliably.
func oneLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return s
}
