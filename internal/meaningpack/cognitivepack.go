package meaningpack

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CognitivePack builds a CPV1 text pack: header/section lines referencing
// interned strings by dictionary id ("d0", "d1", ...), with the "S DICT"
// section spliced in after the first few header lines so a streaming
// reader sees the dictionary before it needs to resolve an id.
type CognitivePack struct {
	dict      []string
	dictIndex map[string]int
	lines     []string
}

// NewCognitivePack returns an empty pack builder.
func NewCognitivePack() *CognitivePack {
	return &CognitivePack{dictIndex: make(map[string]int)}
}

// DictIntern registers value in the dictionary if not already present.
func (p *CognitivePack) DictIntern(value string) {
	if _, ok := p.dictIndex[value]; ok {
		return
	}
	p.dictIndex[value] = len(p.dict)
	p.dict = append(p.dict, value)
}

// DictID returns the "dN" reference for a value already interned via
// DictIntern. Panics if value was never interned: every line referencing
// a dict id must intern its value first, a programmer error otherwise.
func (p *CognitivePack) DictID(value string) string {
	idx, ok := p.dictIndex[value]
	if !ok {
		panic(fmt.Sprintf("meaningpack: missing dict entry for %q", value))
	}
	return fmt.Sprintf("d%d", idx)
}

// PushLine appends a rendered line.
func (p *CognitivePack) PushLine(line string) {
	p.lines = append(p.lines, line)
}

// Render assembles the final pack text, inserting "S DICT" (and its "D
// dN ..." entries) after the first min(3, len(lines)) lines.
func (p *CognitivePack) Render() string {
	if len(p.dict) == 0 {
		return strings.Join(p.lines, "\n") + "\n"
	}

	insertAt := len(p.lines)
	if insertAt > 3 {
		insertAt = 3
	}

	var out strings.Builder
	dictBlock := func() {
		out.WriteString("S DICT\n")
		for idx, value := range p.dict {
			fmt.Fprintf(&out, "D d%d %s\n", idx, jsonString(value))
		}
	}
	for idx, line := range p.lines {
		if idx == insertAt {
			dictBlock()
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if insertAt == len(p.lines) {
		dictBlock()
	}
	return out.String()
}

// jsonString renders value as a JSON string literal, the same quoting
// CPV1 lines use for free-text fields (QUERY, D entries).
func jsonString(value string) string {
	b, err := json.Marshal(value)
	if err != nil {
		return `"<invalid>"`
	}
	return string(b)
}

// shrinkPack drops one line from pack to bring it under budget, keeping
// a trailing "NBA ..." line last: if the last line isn't NBA, the whole
// line is dropped; if it is, the line immediately before it is dropped
// instead. Returns false once the remaining prefix is too small to keep
// shrinking (<10 chars), signaling the caller to stop trying.
func shrinkPack(pack string) (string, bool) {
	trimmed := strings.TrimRight(pack, "\n")
	if trimmed == "" {
		return pack, false
	}

	lastLineStart := strings.LastIndexByte(trimmed, '\n') + 1
	lastLine := trimmed[lastLineStart:]
	isNBA := strings.HasPrefix(lastLine, "NBA ")

	if !isNBA {
		if lastLineStart < 10 {
			return pack, false
		}
		return trimmed[:lastLineStart], true
	}

	if lastLineStart == 0 {
		return pack, false
	}
	beforeLast := trimmed[:lastLineStart-1]
	prevNL := strings.LastIndexByte(beforeLast, '\n')
	if prevNL == -1 {
		return pack, false
	}
	prevStart := prevNL + 1
	if prevStart < 10 {
		return pack, false
	}
	return trimmed[:prevStart] + lastLine + "\n", true
}
