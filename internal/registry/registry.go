// Package registry implements the workspace server's tool registry (spec
// component C4): a name -> {schema, handler, enabled} binding store with
// insertion-order-stable enabled-only listing.
package registry

import (
	"context"
	"sync"

	"github.com/cursorcli-mcp/workspace-server/internal/mcp"
	"github.com/cursorcli-mcp/workspace-server/internal/mcperr"
)

// Handler executes a tool call against already-validated arguments and
// returns tool content or a domain error. Handlers receive a context that
// is cancelled when the executor's deadline (spec §4.4) elapses or the
// server drains (spec §4.8); a cooperative handler should poll ctx.Done()
// at natural suspension points, per spec §9.
type Handler func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error)

// entry is the internal record for one registered tool. All fields except
// enabled are frozen after [Registry.Register], per spec §3 "Tool
// Definition".
type entry struct {
	name        string
	description string
	fields      []Field
	schema      *Schema
	handler     Handler
	enabled     bool
}

// Listing is one row of [Registry.List], shaped for the `tools/list`
// reply (spec §6).
type Listing struct {
	Name        string
	Description string
	InputSchema *Schema
}

// Registry holds tool bindings. The zero value is ready to use. A Registry
// is safe for concurrent use; mutation happens only at startup and on
// hot-reload enable/disable (spec §5 "Shared resources").
type Registry struct {
	mu    sync.RWMutex
	byName map[string]*entry
	order  []string // insertion order, for stable [Registry.List]
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{byName: make(map[string]*entry)}
}

// Register binds name to description, fields, and handler, enabled by
// default. It fails with an [mcperr.InvalidArguments] error if name is
// empty, handler is nil, or name is already taken; the taxonomy has no
// separate kind for a duplicate name.
func (r *Registry) Register(name, description string, fields []Field, handler Handler) error {
	if name == "" {
		return mcperr.New(mcperr.InvalidArguments, "registry: tool name must not be empty")
	}
	if handler == nil {
		return mcperr.Newf(mcperr.InvalidArguments, "registry: tool %q requires a handler", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byName == nil {
		r.byName = make(map[string]*entry)
	}
	if _, exists := r.byName[name]; exists {
		return mcperr.Newf(mcperr.InvalidArguments, "registry: tool %q is already registered", name).
			WithContext("tool", name)
	}

	r.byName[name] = &entry{
		name:        name,
		description: description,
		fields:      fields,
		schema:      BuildSchema(fields),
		handler:     handler,
		enabled:     true,
	}
	r.order = append(r.order, name)
	return nil
}

// Unregister removes a tool entirely. Fails with [mcperr.NotFound] if
// absent.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; !ok {
		return mcperr.Newf(mcperr.NotFound, "registry: tool %q is not registered", name)
	}
	delete(r.byName, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetEnabled flips the enabled flag for name. Fails with [mcperr.NotFound]
// if absent.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byName[name]
	if !ok {
		return mcperr.Newf(mcperr.NotFound, "registry: tool %q is not registered", name)
	}
	e.enabled = enabled
	return nil
}

// ApplyAllowlist enables exactly the tools named in allowed and disables
// every other registered tool, per spec §4.8 ("build registry (apply
// allowlist)"). Unknown names in allowed are ignored — a tool that was
// never registered cannot be enabled into existence.
func (r *Registry) ApplyAllowlist(allowed []string) {
	set := make(map[string]bool, len(allowed))
	for _, n := range allowed {
		set[n] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range r.byName {
		e.enabled = set[name]
	}
}

// lookupResult is what [Registry.Lookup] reports about a tool name.
type lookupResult struct {
	Fields  []Field
	Handler Handler
	Enabled bool
}

// Lookup returns the fields+handler for name and whether it is enabled. ok
// is false iff name is not registered at all.
func (r *Registry) Lookup(name string) (res lookupResult, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.byName[name]
	if !exists {
		return lookupResult{}, false
	}
	return lookupResult{Fields: e.fields, Handler: e.handler, Enabled: e.enabled}, true
}

// List returns every enabled tool's listing, in registration order, per
// spec §4.3 "list()".
func (r *Registry) List() []Listing {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Listing, 0, len(r.order))
	for _, name := range r.order {
		e := r.byName[name]
		if !e.enabled {
			continue
		}
		out = append(out, Listing{Name: e.name, Description: e.description, InputSchema: e.schema})
	}
	return out
}
