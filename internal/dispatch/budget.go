package dispatch

import "strings"

// TrimToBudget enforces a tool's max_chars budget on an already-rendered
// .context text. It first drops trailing droppable lines (never the sole
// "A:" line, never a trailing "M:" cursor line), then halves the last
// remaining line's content repeatedly, and finally falls back to a hard
// byte truncation if the text is still over budget. truncated is true
// whenever any of these steps fired, signalling the caller to attach a
// next_cursor.
func TrimToBudget(text string, maxChars int) (trimmed string, truncated bool) {
	if maxChars <= 0 || len(text) <= maxChars {
		return text, false
	}

	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")

	for len(strings.Join(lines, "\n")) > maxChars && len(lines) > 1 {
		idx := lastDroppableLine(lines)
		if idx < 0 {
			break
		}
		lines = append(lines[:idx], lines[idx+1:]...)
	}

	joined := strings.Join(lines, "\n")
	for len(joined) > maxChars && len(lines) > 0 {
		last := len(lines) - 1
		if len(lines[last]) <= 1 {
			break
		}
		lines[last] = lines[last][:len(lines[last])/2]
		joined = strings.Join(lines, "\n")
	}

	if len(joined) > maxChars {
		joined = joined[:maxChars]
	}
	return joined, true
}

// lastDroppableLine returns the index of the last line safe to drop.
func lastDroppableLine(lines []string) int {
	answerLines := countPrefix(lines, "A:")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(lines[i], "M:") {
			continue
		}
		if strings.HasPrefix(lines[i], "A:") && answerLines <= 1 {
			continue
		}
		return i
	}
	return -1
}

func countPrefix(lines []string, prefix string) int {
	n := 0
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}
