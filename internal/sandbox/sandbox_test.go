package sandbox

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/cursorcli-mcp/workspace-server/internal/mcperr"
)

func TestValidate_Accepts(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	sb, err := New(root, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []string{"file.txt", "a/b/c.json", "./nested/./file"}
	for _, rel := range cases {
		t.Run(rel, func(t *testing.T) {
			res, err := sb.Validate(rel)
			if err != nil {
				t.Fatalf("Validate(%q): unexpected error %v", rel, err)
			}
			if res.Class != ClassOk {
				t.Fatalf("Validate(%q): class = %v, want ClassOk", rel, res.Class)
			}
			want, _ := filepath.EvalSymlinks(filepath.Join(root, rel))
			if want == "" {
				want = filepath.Join(root, rel)
			}
			if filepath.Clean(res.Resolved) != filepath.Clean(want) {
				t.Errorf("Validate(%q): resolved = %q, want %q", rel, res.Resolved, want)
			}
		})
	}
}

func TestValidate_RelativeTraversalIsPathTraversal(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	sb, err := New(root, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	badPaths := []string{"../escape", "../../etc/passwd", "foo/../../escape", ".."}
	for _, rel := range badPaths {
		t.Run(rel, func(t *testing.T) {
			_, err := sb.Validate(rel)
			e, ok := mcperr.As(err)
			if !ok {
				t.Fatalf("Validate(%q): expected *mcperr.Error, got %v", rel, err)
			}
			if e.Kind != mcperr.PathTraversal {
				t.Errorf("Validate(%q): kind = %v, want PathTraversal", rel, e.Kind)
			}
			if e.Context["attemptedPath"] != rel {
				t.Errorf("Validate(%q): attemptedPath context = %v, want %q", rel, e.Context["attemptedPath"], rel)
			}
		})
	}
}

func TestValidate_AbsoluteOutsideRootIsOutsideRoot(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	sb, err := New(root, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	outside := t.TempDir() // a sibling temp dir, guaranteed outside root
	_, err = sb.Validate(outside)
	e, ok := mcperr.As(err)
	if !ok {
		t.Fatalf("Validate(%q): expected *mcperr.Error, got %v", outside, err)
	}
	if e.Kind != mcperr.OutsideRoot {
		t.Errorf("Validate(%q): kind = %v, want OutsideRoot", outside, e.Kind)
	}
}

func TestValidate_BlockedPattern(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	sb, err := New(root, []string{"**/*.secret", ".env"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, rel := range []string{"a/b/token.secret", ".env"} {
		t.Run(rel, func(t *testing.T) {
			_, err := sb.Validate(rel)
			e, ok := mcperr.As(err)
			if !ok {
				t.Fatalf("Validate(%q): expected *mcperr.Error, got %v", rel, err)
			}
			if e.Kind != mcperr.BlockedPattern {
				t.Errorf("Validate(%q): kind = %v, want BlockedPattern", rel, e.Kind)
			}
		})
	}
}

func TestValidate_SymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}
	t.Parallel()

	root := t.TempDir()
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	link := filepath.Join(root, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	sb, err := New(root, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = sb.Validate("escape/secret.txt")
	e, ok := mcperr.As(err)
	if !ok {
		t.Fatalf("Validate: expected *mcperr.Error, got %v", err)
	}
	if e.Kind != mcperr.PathTraversal {
		t.Errorf("Validate: kind = %v, want PathTraversal", e.Kind)
	}
}

func TestValidate_EmptyPath(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	sb, err := New(root, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = sb.Validate("")
	if err == nil {
		t.Fatal("Validate(\"\"): expected error, got nil")
	}
}

func TestRoot_ResolvesSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}
	t.Parallel()

	real := t.TempDir()
	parent := t.TempDir()
	link := filepath.Join(parent, "workspace")
	if err := os.Symlink(real, link); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	sb, err := New(link, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	wantRoot, _ := filepath.EvalSymlinks(real)
	if sb.Root() != filepath.Clean(wantRoot) {
		t.Errorf("Root() = %q, want %q", sb.Root(), wantRoot)
	}
}
