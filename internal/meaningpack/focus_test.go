package meaningpack

import (
	"context"
	"strings"
	"testing"
)

func TestFocus_FileTargetIncludesOutline(t *testing.T) {
	root := t.TempDir()
	seedSampleProject(t, root)
	gen := newTestGenerator(t, root)

	result, err := gen.Focus(context.Background(), FocusRequest{Focus: "cmd/server/main.go"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Pack, "S FOCUS") {
		t.Error("pack missing S FOCUS section")
	}
	if !strings.Contains(result.Pack, "FOCUS dir=") {
		t.Error("pack missing FOCUS line")
	}
}

func TestFocus_DirectoryTargetScopesMap(t *testing.T) {
	root := t.TempDir()
	seedSampleProject(t, root)
	gen := newTestGenerator(t, root)

	result, err := gen.Focus(context.Background(), FocusRequest{Focus: "internal/broker"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Pack, "S MAP") {
		t.Error("pack missing S MAP section")
	}
}

func TestFocus_RefusesSecretPath(t *testing.T) {
	root := t.TempDir()
	seedSampleProject(t, root)
	writeTestFile(t, root, ".env", "SECRET=abc123\n")
	gen := newTestGenerator(t, root)

	_, err := gen.Focus(context.Background(), FocusRequest{Focus: ".env"})
	if err == nil {
		t.Fatal("expected an error focusing on a secret path")
	}
}

func TestFocus_RefusesEscapingRoot(t *testing.T) {
	root := t.TempDir()
	seedSampleProject(t, root)
	gen := newTestGenerator(t, root)

	_, err := gen.Focus(context.Background(), FocusRequest{Focus: "../../etc/passwd"})
	if err == nil {
		t.Fatal("expected an error focusing outside the project root")
	}
}

func TestFocus_RejectsEmptyFocus(t *testing.T) {
	root := t.TempDir()
	seedSampleProject(t, root)
	gen := newTestGenerator(t, root)

	_, err := gen.Focus(context.Background(), FocusRequest{Focus: "   "})
	if err == nil {
		t.Fatal("expected an error for an empty focus target")
	}
}

func TestFocus_UnknownPathErrors(t *testing.T) {
	root := t.TempDir()
	seedSampleProject(t, root)
	gen := newTestGenerator(t, root)

	_, err := gen.Focus(context.Background(), FocusRequest{Focus: "does/not/exist.go"})
	if err == nil {
		t.Fatal("expected an error for a nonexistent focus path")
	}
}
