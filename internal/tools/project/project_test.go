package project_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cursorcli-mcp/workspace-server/internal/sandbox"
	"github.com/cursorcli-mcp/workspace-server/internal/tools/project"
)

func seedWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	mustWrite := func(rel, content string) {
		full := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	mustWrite("main.go", "package main\n")
	mustWrite("pkg/lib.go", "package pkg\n")
	mustWrite("node_modules/dep/index.js", "module.exports = {}\n")
	mustWrite(".gitignore", "node_modules/\n*.log\n")
	mustWrite("debug.log", "noisy\n")
	if err := os.MkdirAll(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}
	return root
}

func newPort(t *testing.T) (*project.Port, string) {
	t.Helper()
	root := seedWorkspace(t)
	sb, err := sandbox.New(root, nil)
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	return project.New(sb), root
}

func TestInfo_DetectsGitAndCountsFiles(t *testing.T) {
	t.Parallel()
	port, root := newPort(t)

	info, err := port.Info(context.Background())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.VCS != "git" {
		t.Errorf("VCS = %q, want git", info.VCS)
	}
	if info.Root != root {
		t.Errorf("Root = %q, want %q", info.Root, root)
	}
	if info.FileCount == 0 {
		t.Error("expected a non-zero file count")
	}
}

func TestSearch_HonorsGitignore(t *testing.T) {
	t.Parallel()
	port, _ := newPort(t)

	matches, err := port.Search(context.Background(), "**/*.go", true)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := map[string]bool{"main.go": true, "pkg/lib.go": true}
	if len(matches) != len(want) {
		t.Fatalf("matches = %v, want exactly %v", matches, want)
	}
	for _, m := range matches {
		if !want[m] {
			t.Errorf("unexpected match %q", m)
		}
	}
}

func TestSearch_WithoutGitignoreFindsEverything(t *testing.T) {
	t.Parallel()
	port, _ := newPort(t)

	matches, err := port.Search(context.Background(), "**/*.js", false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0] != "node_modules/dep/index.js" {
		t.Errorf("matches = %v, want [node_modules/dep/index.js]", matches)
	}
}

func TestTree_RespectsMaxDepthAndExclude(t *testing.T) {
	t.Parallel()
	port, _ := newPort(t)

	tree, err := port.Tree(context.Background(), 1, []string{"node_modules/**", ".git/**"})
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if !tree.IsDir {
		t.Fatal("root node should be a directory")
	}
	for _, child := range tree.Children {
		if child.Name == "node_modules" || child.Name == ".git" {
			t.Errorf("excluded entry %q appeared in tree", child.Name)
		}
		if child.IsDir && len(child.Children) != 0 {
			t.Errorf("depth limit of 1 should leave %q's children empty, got %d", child.Name, len(child.Children))
		}
	}
}
