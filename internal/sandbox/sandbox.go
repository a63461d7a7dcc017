// Package sandbox implements the workspace server's path security
// validator (spec component C1): every path a tool handler touches is
// resolved and authorized against a workspace root before any I/O happens.
//
// Validation follows the algorithm in spec §4.5: root resolution once at
// construction, relative-vs-absolute classification, physical-path
// (symlink) re-resolution to defeat escapes through a symlinked directory,
// and a glob-based block list matched against the POSIX form of the
// relative path.
package sandbox

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/cursorcli-mcp/workspace-server/internal/mcperr"
)

// Sandbox validates candidate paths against a resolved workspace root. The
// zero value is not usable; construct with [New]. A Sandbox is stateless
// per call and safe for concurrent use.
type Sandbox struct {
	// root is the absolute, physical-path-resolved workspace root. All
	// comparisons are performed relative to this value.
	root string

	// blockedPatterns are glob patterns (doublestar syntax) matched against
	// the POSIX-form relative path of a candidate. Any match rejects.
	blockedPatterns []string
}

// New creates a Sandbox rooted at projectRoot. projectRoot is made absolute
// and resolved through the OS's physical-path operation (following
// symlinks); if the root does not yet exist, the absolute (unresolved)
// form is used as a fallback, matching spec §4.5 step 1.
func New(projectRoot string, blockedPatterns []string) (*Sandbox, error) {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.InternalError, "sandbox: resolve project root", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Root does not exist yet (or is otherwise unresolvable) — fall
		// back to the absolute form, per spec §4.5 step 1.
		resolved = abs
	}

	pats := make([]string, len(blockedPatterns))
	copy(pats, blockedPatterns)

	return &Sandbox{root: filepath.Clean(resolved), blockedPatterns: pats}, nil
}

// Root returns the resolved physical workspace root.
func (s *Sandbox) Root() string { return s.root }

// Classification is the four-valued result of [Sandbox.Validate].
type Classification int

const (
	// ClassOk means the path was accepted; Resolved holds the absolute
	// physical path.
	ClassOk Classification = iota
	ClassPathTraversal
	ClassOutsideRoot
	ClassBlockedPattern
)

// Result is the outcome of validating one candidate path.
type Result struct {
	Class    Classification
	Resolved string // valid only when Class == ClassOk
}

// normalizeSeparators normalises both slash and backslash separators to the OS-native
// form, per spec §4.5 step 2: "Both slash and backslash separators are
// accepted on input."
func normalizeSeparators(p string) string {
	if filepath.Separator == '/' {
		return strings.ReplaceAll(p, "\\", "/")
	}
	return strings.ReplaceAll(p, "/", "\\")
}

// Validate resolves and authorizes inputPath against the sandbox root. It
// returns an [*mcperr.Error] of kind [mcperr.PathTraversal],
// [mcperr.OutsideRoot], or [mcperr.BlockedPattern] on rejection, or a nil
// error with a Result of ClassOk on success.
func (s *Sandbox) Validate(inputPath string) (Result, error) {
	if inputPath == "" {
		return Result{}, mcperr.New(mcperr.PathTraversal, "sandbox: path must not be empty").
			WithContext("attemptedPath", inputPath)
	}

	norm := normalizeSeparators(inputPath)
	isAbsInput := filepath.IsAbs(norm)

	var candidate string
	if isAbsInput {
		candidate = filepath.Clean(norm)
	} else {
		candidate = filepath.Clean(filepath.Join(s.root, norm))
	}

	// Traversal/outside-root classification against the *logical* (not yet
	// symlink-resolved) candidate, per spec §4.5 step 3.
	rel, err := filepath.Rel(s.root, candidate)
	if err != nil {
		return Result{}, mcperr.New(mcperr.OutsideRoot, "sandbox: cannot relate path to root").
			WithContext("attemptedPath", inputPath)
	}
	if escapesRoot(rel) {
		kind := mcperr.OutsideRoot
		if !isAbsInput {
			kind = mcperr.PathTraversal
		}
		return Result{}, mcperr.New(kind, "sandbox: path escapes the workspace root").
			WithContext("attemptedPath", inputPath)
	}

	// Physical-path re-check (step 4): resolve symlinks on the candidate,
	// falling back to resolving its parent directory when the candidate
	// itself does not exist yet.
	resolved, err := s.resolvePhysical(candidate)
	if err != nil {
		return Result{}, mcperr.Wrap(mcperr.InternalError, "sandbox: resolve physical path", err).
			WithContext("attemptedPath", inputPath)
	}

	physRel, err := filepath.Rel(s.root, resolved)
	if err != nil || escapesRoot(physRel) {
		kind := mcperr.OutsideRoot
		if !isAbsInput {
			kind = mcperr.PathTraversal
		}
		return Result{}, mcperr.New(kind, "sandbox: physical path escapes the workspace root").
			WithContext("attemptedPath", inputPath)
	}

	// Block-pattern matching against the POSIX-form relative path (step 6).
	posixRel := filepath.ToSlash(physRel)
	for _, pat := range s.blockedPatterns {
		matched, err := doublestar.Match(pat, posixRel)
		if err == nil && matched {
			return Result{}, mcperr.New(mcperr.BlockedPattern, "sandbox: path matches a blocked pattern").
				WithContext("attemptedPath", inputPath).
				WithContext("pattern", pat)
		}
	}

	return Result{Class: ClassOk, Resolved: resolved}, nil
}

// escapesRoot reports whether a filepath.Rel result indicates the target
// falls outside the root: either an absolute result (no common prefix on
// Windows-style volumes) or a path that begins with a ".." component.
func escapesRoot(rel string) bool {
	if rel == "." {
		return false
	}
	if filepath.IsAbs(rel) {
		return true
	}
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolvePhysical resolves candidate through the OS physical-path
// operation. If candidate does not exist, its parent directory is resolved
// instead and the original basename is rejoined, defeating symlink-based
// escapes where a directory inside the root points out of the root (spec
// §4.5 step 4).
func (s *Sandbox) resolvePhysical(candidate string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		return filepath.Clean(resolved), nil
	}

	parent := filepath.Dir(candidate)
	base := filepath.Base(candidate)

	resolvedParent, err := filepath.EvalSymlinks(parent)
	if err != nil {
		// Parent doesn't exist either (e.g. a multi-level create); walk up
		// until we find a resolvable ancestor, then rejoin the remainder
		// logically (no further symlinks can exist below an ancestor that
		// doesn't exist yet).
		return s.resolveDeepest(candidate)
	}

	return filepath.Join(resolvedParent, base), nil
}

// resolveDeepest walks up candidate's ancestry until it finds a directory
// that exists and can be resolved, then rejoins the unresolved remainder.
func (s *Sandbox) resolveDeepest(candidate string) (string, error) {
	dir := filepath.Dir(candidate)
	var remainder []string
	remainder = append(remainder, filepath.Base(candidate))

	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			joined := append([]string{resolved}, reverse(remainder)...)
			return filepath.Join(joined...), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding anything resolvable;
			// fall back to the logically-cleaned candidate.
			return filepath.Clean(candidate), nil
		}
		remainder = append(remainder, filepath.Base(dir))
		dir = parent
	}
}

func reverse(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}
