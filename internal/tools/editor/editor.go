// Package editor provides the shipped [mcp.EditorPort] implementation: an
// in-process façade standing in for the real editor collaborator, which
// lives outside this process and is out of scope (spec §1).
//
// Grounded on the teacher's mock-collaborator style in
// pkg/provider/vad/mock: a single mutex-guarded struct holding the state a
// real backend would otherwise own, with methods that validate and mutate
// it the same way a live editor connection would.
package editor

import (
	"context"
	"sort"
	"sync"

	"github.com/cursorcli-mcp/workspace-server/internal/mcp"
	"github.com/cursorcli-mcp/workspace-server/internal/mcperr"
)

type document struct {
	lines []string
	pos   mcp.CursorPosition
}

// Port is the shipped EditorPort façade. It tracks a set of "open"
// documents and a single active document in memory, applying line/column
// edits the way an editor buffer would.
type Port struct {
	mu     sync.Mutex
	docs   map[string]*document
	active string
}

// New constructs an empty Port with no open documents.
func New() *Port {
	return &Port{docs: make(map[string]*document)}
}

var _ mcp.EditorPort = (*Port)(nil)

// IsReady implements [mcp.EditorPort]. The façade is always ready.
func (p *Port) IsReady(ctx context.Context) (bool, error) {
	return true, nil
}

// Open implements [mcp.EditorPort], opening path as the active document if
// it is not already tracked.
func (p *Port) Open(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.docs[path]; !ok {
		p.docs[path] = &document{lines: []string{""}, pos: mcp.CursorPosition{Line: 1, Column: 1}}
	}
	p.active = path
	return nil
}

// Active implements [mcp.EditorPort].
func (p *Port) Active(ctx context.Context) (string, mcp.CursorPosition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == "" {
		return "", mcp.CursorPosition{}, mcperr.New(mcperr.InvalidArguments, "editor: no document is active")
	}
	doc := p.docs[p.active]
	return p.active, doc.pos, nil
}

// Insert implements [mcp.EditorPort], splicing text into path's buffer at
// pos (1-based line/column) and leaving the cursor at the end of the
// inserted text.
func (p *Port) Insert(ctx context.Context, path string, pos mcp.CursorPosition, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, err := p.lookup(path)
	if err != nil {
		return err
	}
	if err := validatePosition(doc, pos); err != nil {
		return err
	}

	line := doc.lines[pos.Line-1]
	col := pos.Column - 1
	inserted := line[:col] + text + line[col:]
	replaced := splitLines(inserted)

	newLines := make([]string, 0, len(doc.lines)+len(replaced)-1)
	newLines = append(newLines, doc.lines[:pos.Line-1]...)
	newLines = append(newLines, replaced...)
	newLines = append(newLines, doc.lines[pos.Line:]...)
	doc.lines = newLines
	doc.pos = endOfInsertion(pos, replaced)
	return nil
}

// Replace implements [mcp.EditorPort], replacing the span [from, to) with
// text and leaving the cursor at the end of the replacement.
func (p *Port) Replace(ctx context.Context, path string, from, to mcp.CursorPosition, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, err := p.lookup(path)
	if err != nil {
		return err
	}
	if err := validatePosition(doc, from); err != nil {
		return err
	}
	if err := validatePosition(doc, to); err != nil {
		return err
	}
	if to.Line < from.Line || (to.Line == from.Line && to.Column < from.Column) {
		return mcperr.New(mcperr.InvalidArguments, "editor: replace range end precedes start")
	}

	head := doc.lines[from.Line-1][:from.Column-1]
	tail := doc.lines[to.Line-1][to.Column-1:]
	replaced := splitLines(head + text + tail)

	newLines := make([]string, 0, len(doc.lines)-(to.Line-from.Line)+len(replaced))
	newLines = append(newLines, doc.lines[:from.Line-1]...)
	newLines = append(newLines, replaced...)
	newLines = append(newLines, doc.lines[to.Line:]...)
	doc.lines = newLines
	doc.pos = endOfInsertion(from, replaced)
	return nil
}

// Snapshot returns the current buffer content of path, for tests and
// diagnostics. Not part of [mcp.EditorPort].
func (p *Port) Snapshot(path string) ([]string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, ok := p.docs[path]
	if !ok {
		return nil, false
	}
	out := make([]string, len(doc.lines))
	copy(out, doc.lines)
	return out, true
}

// OpenPaths returns the currently tracked document paths, sorted. Not part
// of [mcp.EditorPort].
func (p *Port) OpenPaths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	paths := make([]string, 0, len(p.docs))
	for path := range p.docs {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func (p *Port) lookup(path string) (*document, error) {
	doc, ok := p.docs[path]
	if !ok {
		return nil, mcperr.New(mcperr.InvalidArguments, "editor: document is not open").WithContext("path", path)
	}
	return doc, nil
}

func validatePosition(doc *document, pos mcp.CursorPosition) error {
	if pos.Line < 1 || pos.Line > len(doc.lines) {
		return mcperr.New(mcperr.InvalidArguments, "editor: line out of range").WithContext("line", pos.Line)
	}
	line := doc.lines[pos.Line-1]
	if pos.Column < 1 || pos.Column > len(line)+1 {
		return mcperr.New(mcperr.InvalidArguments, "editor: column out of range").WithContext("column", pos.Column)
	}
	return nil
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func endOfInsertion(start mcp.CursorPosition, inserted []string) mcp.CursorPosition {
	if len(inserted) == 1 {
		return mcp.CursorPosition{Line: start.Line, Column: start.Column + len(inserted[0])}
	}
	return mcp.CursorPosition{Line: start.Line + len(inserted) - 1, Column: len(inserted[len(inserted)-1]) + 1}
}
