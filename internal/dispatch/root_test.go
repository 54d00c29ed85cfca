package dispatch

import "testing"

func TestRootResolver_NoRootNoHint_ErrorsAmbiguous(t *testing.T) {
	r := NewRootResolver(nil, false, "")
	_, err := r.Resolve("")
	if err == nil {
		t.Fatal("expected an error when no root is pinned and no fallback is allowed")
	}
}

func TestRootResolver_SingleWorkspaceRoot_UsedByDefault(t *testing.T) {
	r := NewRootResolver([]string{"/work/proj"}, false, "")
	res, err := r.Resolve("")
	if err != nil {
		t.Fatal(err)
	}
	if res.Root != "/work/proj" {
		t.Errorf("Root = %q, want /work/proj", res.Root)
	}
}

func TestRootResolver_RelativePath_ResolvesUnderSingleWorkspaceRoot(t *testing.T) {
	r := NewRootResolver([]string{"/work/proj"}, false, "")
	res, err := r.Resolve("internal/foo.go")
	if err != nil {
		t.Fatal(err)
	}
	if res.Root != "/work/proj" || res.ScopeHint != "internal/foo.go" {
		t.Errorf("got Root=%q ScopeHint=%q", res.Root, res.ScopeHint)
	}
}

func TestRootResolver_SetRoot_PinsStickyRoot(t *testing.T) {
	r := NewRootResolver(nil, false, "")
	root, err := r.SetRoot("/work/proj")
	if err != nil {
		t.Fatal(err)
	}
	if root != "/work/proj" {
		t.Fatalf("SetRoot returned %q", root)
	}

	res, err := r.Resolve("")
	if err != nil {
		t.Fatal(err)
	}
	if res.Root != "/work/proj" {
		t.Errorf("Resolve after SetRoot = %q, want /work/proj", res.Root)
	}
}

func TestRootResolver_AbsolutePathInsidePinnedRoot_IsScopeHintNotSwitch(t *testing.T) {
	r := NewRootResolver(nil, false, "")
	if _, err := r.SetRoot("/work/proj"); err != nil {
		t.Fatal(err)
	}

	res, err := r.Resolve("/work/proj/internal/foo.go")
	if err != nil {
		t.Fatal(err)
	}
	if res.Root != "/work/proj" {
		t.Errorf("Root = %q, want pinned root /work/proj", res.Root)
	}
	if res.ScopeHint != "internal/foo.go" {
		t.Errorf("ScopeHint = %q, want internal/foo.go", res.ScopeHint)
	}
}

func TestRootResolver_AbsolutePathOutsidePinnedRoot_Errors(t *testing.T) {
	r := NewRootResolver(nil, false, "")
	if _, err := r.SetRoot("/work/proj"); err != nil {
		t.Fatal(err)
	}

	_, err := r.Resolve("/other/proj/file.go")
	if err == nil {
		t.Fatal("expected an error: a pinned root must not implicitly switch projects")
	}
}

func TestRootResolver_SetRoot_RejectsPathOutsideWorkspaceRoots(t *testing.T) {
	r := NewRootResolver([]string{"/work/proj"}, false, "")
	_, err := r.SetRoot("/elsewhere")
	if err == nil {
		t.Fatal("expected an error setting a root outside the allowed workspace roots")
	}
}

func TestRootResolver_SetRoot_RejectsRelativePath(t *testing.T) {
	r := NewRootResolver(nil, false, "")
	_, err := r.SetRoot("relative/path")
	if err == nil {
		t.Fatal("expected an error: root_set requires an absolute path")
	}
}

func TestRootResolver_MultipleWorkspaceRoots_RelativePathWithoutHintIsAmbiguous(t *testing.T) {
	r := NewRootResolver([]string{"/work/a", "/work/b"}, false, "")
	_, err := r.Resolve("shared/file.go")
	if err == nil {
		t.Fatal("expected an ambiguous-root error across multiple workspace roots")
	}
}

func TestRootResolver_MultipleWorkspaceRoots_HintSelectsRoot(t *testing.T) {
	r := NewRootResolver([]string{"/work/a", "/work/b"}, false, "")
	res, err := r.Resolve("b/internal/foo.go")
	if err != nil {
		t.Fatal(err)
	}
	if res.Root != "/work/b" {
		t.Errorf("Root = %q, want /work/b", res.Root)
	}
}

func TestRootResolver_CwdFallback_UsedWhenAllowed(t *testing.T) {
	r := NewRootResolver(nil, true, "/home/user/proj")
	res, err := r.Resolve("")
	if err != nil {
		t.Fatal(err)
	}
	if res.Root != "/home/user/proj" {
		t.Errorf("Root = %q, want cwd fallback", res.Root)
	}
}
