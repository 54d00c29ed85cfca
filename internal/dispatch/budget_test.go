package dispatch

import (
	"strings"
	"testing"
)

func TestTrimToBudget_NoopWhenUnderBudget(t *testing.T) {
	text := "A: short answer\n"
	trimmed, truncated := TrimToBudget(text, 1000)
	if truncated {
		t.Error("expected no truncation when text is under budget")
	}
	if trimmed != text {
		t.Errorf("trimmed = %q, want unchanged %q", trimmed, text)
	}
}

func TestTrimToBudget_DropsTrailingLinesBeforeAnswer(t *testing.T) {
	text := "A: the answer\nR: file.go:10\nR: file.go:20\nR: file.go:30\n"
	trimmed, truncated := TrimToBudget(text, 30)
	if !truncated {
		t.Fatal("expected truncation")
	}
	if !strings.HasPrefix(trimmed, "A: the answer") {
		t.Errorf("expected the A: line to survive, got %q", trimmed)
	}
	if len(trimmed) > 30 {
		t.Errorf("trimmed length %d exceeds budget 30", len(trimmed))
	}
}

func TestTrimToBudget_KeepsSoleAnswerLine(t *testing.T) {
	text := "A: " + strings.Repeat("x", 200)
	trimmed, truncated := TrimToBudget(text, 20)
	if !truncated {
		t.Fatal("expected truncation")
	}
	if !strings.HasPrefix(trimmed, "A:") {
		t.Errorf("sole A: line must survive truncation, got %q", trimmed)
	}
}

func TestTrimToBudget_KeepsTrailingCursorLineLast(t *testing.T) {
	text := "A: the answer\nR: file.go:10\nR: file.go:20\nM: cursor-token\n"
	trimmed, truncated := TrimToBudget(text, 25)
	if !truncated {
		t.Fatal("expected truncation")
	}
	lines := strings.Split(strings.TrimRight(trimmed, "\n"), "\n")
	last := lines[len(lines)-1]
	if !strings.HasPrefix(last, "M:") && !strings.HasPrefix(last, "A:") {
		t.Errorf("expected the last surviving line to be M: or a truncated A:, got %q", last)
	}
}

func TestTrimToBudget_HardTruncatesAsLastResort(t *testing.T) {
	text := "A: " + strings.Repeat("x", 500)
	trimmed, truncated := TrimToBudget(text, 10)
	if !truncated {
		t.Fatal("expected truncation")
	}
	if len(trimmed) > 10 {
		t.Errorf("trimmed length %d exceeds hard budget 10", len(trimmed))
	}
}
