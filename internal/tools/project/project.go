// Package project implements [mcp.ProjectPort]: workspace introspection,
// glob search with `.gitignore` honoring, and a depth/exclude-bounded
// directory tree.
//
// Grounded on the teacher's filesystem-walk style in
// internal/mcp/tools/fileio (directory traversal via the stdlib) combined
// with `github.com/bmatcuk/doublestar/v4`, the same glob-matching
// dependency `internal/sandbox` uses for blocked patterns — reused here
// both for workspace-tree exclude globs and for parsing `.gitignore` lines
// as glob patterns, since no `.gitignore`-specific parser in the retrieved
// pack has a confirmed (directly observed) API to build against without
// running the toolchain (see DESIGN.md).
package project

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/cursorcli-mcp/workspace-server/internal/mcp"
	"github.com/cursorcli-mcp/workspace-server/internal/mcperr"
	"github.com/cursorcli-mcp/workspace-server/internal/sandbox"
)

// Port implements [mcp.ProjectPort] rooted at the sandbox's workspace root.
type Port struct {
	sb *sandbox.Sandbox
}

// New constructs a Port rooted at sb.
func New(sb *sandbox.Sandbox) *Port {
	return &Port{sb: sb}
}

// Info implements [mcp.ProjectPort].
func (p *Port) Info(ctx context.Context) (mcp.ProjectInfo, error) {
	root := p.sb.Root()

	vcs := ""
	if _, err := os.Stat(filepath.Join(root, ".git")); err == nil {
		vcs = "git"
	}

	count := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	if err != nil {
		return mcp.ProjectInfo{}, mcperr.Wrap(mcperr.InternalError, "project: walk failed while counting files", err)
	}

	return mcp.ProjectInfo{
		Root:      root,
		Name:      filepath.Base(root),
		VCS:       vcs,
		FileCount: count,
	}, nil
}

// Search implements [mcp.ProjectPort], matching pattern (doublestar glob
// syntax) against POSIX-form paths relative to the workspace root.
func (p *Port) Search(ctx context.Context, pattern string, honorGitignore bool) ([]string, error) {
	root := p.sb.Root()

	var ignore []string
	if honorGitignore {
		var err error
		ignore, err = loadGitignore(root)
		if err != nil {
			return nil, mcperr.Wrap(mcperr.InternalError, "project: read .gitignore", err)
		}
	}

	var matches []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		posixRel := filepath.ToSlash(rel)

		if honorGitignore && matchesAny(ignore, posixRel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		ok, matchErr := doublestar.Match(pattern, posixRel)
		if matchErr == nil && ok {
			matches = append(matches, posixRel)
		}
		return nil
	})
	if err != nil {
		return nil, mcperr.Wrap(mcperr.InternalError, "project: search walk failed", err)
	}

	sort.Strings(matches)
	return matches, nil
}

// Tree implements [mcp.ProjectPort].
func (p *Port) Tree(ctx context.Context, maxDepth int, exclude []string) (mcp.TreeNode, error) {
	root := p.sb.Root()
	node, err := buildTree(ctx, root, root, 0, maxDepth, exclude)
	if err != nil {
		return mcp.TreeNode{}, err
	}
	node.Name = filepath.Base(root)
	return node, nil
}

func buildTree(ctx context.Context, root, dir string, depth, maxDepth int, exclude []string) (mcp.TreeNode, error) {
	select {
	case <-ctx.Done():
		return mcp.TreeNode{}, ctx.Err()
	default:
	}

	node := mcp.TreeNode{Name: filepath.Base(dir), IsDir: true}
	if maxDepth > 0 && depth >= maxDepth {
		return node, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return mcp.TreeNode{}, mcperr.Wrap(mcperr.InternalError, "project: read dir during tree build", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		rel, _ := filepath.Rel(root, full)
		posixRel := filepath.ToSlash(rel)
		if matchesAny(exclude, posixRel) {
			continue
		}

		if e.IsDir() {
			child, err := buildTree(ctx, root, full, depth+1, maxDepth, exclude)
			if err != nil {
				return mcp.TreeNode{}, err
			}
			node.Children = append(node.Children, child)
		} else {
			node.Children = append(node.Children, mcp.TreeNode{Name: e.Name()})
		}
	}
	return node, nil
}

// loadGitignore parses root/.gitignore into doublestar glob patterns.
// Blank lines and `#` comments are skipped; this is a pragmatic subset of
// full gitignore semantics (no negation, no anchored-vs-unanchored
// distinction), sufficient for the search-time exclusion spec §6 asks for.
func loadGitignore(root string) ([]string, error) {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "/")
		if strings.HasSuffix(line, "/") {
			patterns = append(patterns, line+"**")
			continue
		}
		// A gitignore entry without a trailing slash matches either the
		// entry itself or, if it names a directory, anything beneath it.
		patterns = append(patterns, line, line+"/**")
	}
	return patterns, scanner.Err()
}

func matchesAny(patterns []string, posixRel string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, posixRel); err == nil && ok {
			return true
		}
	}
	return false
}
