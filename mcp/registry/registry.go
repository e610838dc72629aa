// Package registry implements the name-keyed lookup tables mcp.Server's
// tools/prompts/resources handlers dispatch through: register a callable
// once at startup, then resolve it by name (or, for resources, by URI) on
// every tools/call, prompts/get, or resources/read.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// Entry is one registered, named item: its declared input schema plus the
// value (a handler func, a resource body, ...) the Registry hands back.
type Entry[T any] struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
	resolved    *jsonschema.Resolved
	Value       T
}

// Registry is a generic name->entry map. It is safe for concurrent use.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries map[string]*Entry[T]
}

// New constructs an empty Registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[string]*Entry[T])}
}

// Register adds entry under entry.Name, replacing any prior entry of the
// same name. If entry.Schema is set it is resolved eagerly so a malformed
// schema is rejected at registration time rather than on first call.
func (r *Registry[T]) Register(entry *Entry[T]) error {
	if entry.Name == "" {
		return fmt.Errorf("registry: entry name must not be empty")
	}
	if entry.Schema != nil {
		resolved, err := entry.Schema.Resolve(nil)
		if err != nil {
			return fmt.Errorf("registry: resolving schema for %q: %w", entry.Name, err)
		}
		entry.resolved = resolved
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.Name] = entry
	return nil
}

// Get returns the entry registered under name, if any.
func (r *Registry[T]) Get(name string) (*Entry[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	return entry, ok
}

// List returns every registered entry. The order is unspecified.
func (r *Registry[T]) List() []*Entry[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry[T], 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	return out
}

// Len reports how many entries are registered.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Validate checks args against the named entry's resolved schema, if it has
// one. A missing entry is an error; an entry with a nil schema accepts any
// args.
func (r *Registry[T]) Validate(name string, args interface{}) error {
	entry, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("registry: no entry named %q", name)
	}
	if entry.resolved == nil {
		return nil
	}
	return entry.resolved.Validate(args)
}

// InvalidArgsError reports that args failed schema validation for name.
type InvalidArgsError struct {
	Name string
	Err  error
}

func (e *InvalidArgsError) Error() string {
	return fmt.Sprintf("registry: invalid arguments for %q: %v", e.Name, e.Err)
}

func (e *InvalidArgsError) Unwrap() error { return e.Err }

// NotFoundError reports that no entry is registered under Name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("registry: no entry named %q", e.Name)
}

// contextKey namespaces values Execute/Read helpers may stash in ctx; kept
// here rather than in tools.go/prompts.go/resources.go since all three share
// it.
type contextKey string

const sessionContextKey contextKey = "mcp.session"

// WithSession attaches session to ctx so a registered handler can reach back
// into the calling mcp.Session (e.g. for policy evaluation keyed on client
// identity) without every handler signature carrying it explicitly.
func WithSession(ctx context.Context, session interface{}) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFromContext retrieves the value WithSession attached, if any.
func SessionFromContext(ctx context.Context) (interface{}, bool) {
	session := ctx.Value(sessionContextKey)
	return session, session != nil
}
