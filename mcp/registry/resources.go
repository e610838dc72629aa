package registry

import (
	"context"
	"encoding/json"
	"sync"
)

// ResourceInfo is one resource's resources/list entry, mirroring
// mcp.Resource's shape without importing it (see tools.go's comment).
type ResourceInfo struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// ResourceHandler reads one registered resource's current contents,
// returning the wire-ready resources/read result payload.
type ResourceHandler func(ctx context.Context, uri string) (json.RawMessage, error)

// resourceEntry pairs a resource's listing metadata with its read handler.
type resourceEntry struct {
	ResourceInfo
	handler ResourceHandler
}

// ResourceRegistry is the resources/list + resources/read + subscribe backing
// store. Unlike tools and prompts, resources are addressed by URI on the
// wire (subscribe/unsubscribe/read all take a uri, not a name), so entries
// are indexed by URI rather than by name.
type ResourceRegistry struct {
	mu        sync.RWMutex
	byURI     map[string]*resourceEntry
	subscribe map[string]map[string]bool // uri -> set of subscriber session ids
}

// NewResourceRegistry constructs an empty ResourceRegistry.
func NewResourceRegistry() *ResourceRegistry {
	return &ResourceRegistry{
		byURI:     make(map[string]*resourceEntry),
		subscribe: make(map[string]map[string]bool),
	}
}

// Register adds a resource, replacing any prior entry with the same URI.
func (r *ResourceRegistry) Register(resource ResourceInfo, handler ResourceHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byURI[resource.URI] = &resourceEntry{ResourceInfo: resource, handler: handler}
	return nil
}

// List returns every registered resource's listing metadata.
func (r *ResourceRegistry) List() []ResourceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ResourceInfo, 0, len(r.byURI))
	for _, entry := range r.byURI {
		out = append(out, entry.ResourceInfo)
	}
	return out
}

// Read invokes the handler registered for uri. A missing resource yields
// *NotFoundError.
func (r *ResourceRegistry) Read(ctx context.Context, uri string) (json.RawMessage, error) {
	r.mu.RLock()
	entry, ok := r.byURI[uri]
	r.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Name: uri}
	}
	return entry.handler(ctx, uri)
}

// Subscribe records sessionID as a subscriber of uri. A missing resource
// yields *NotFoundError, which mcp.Server reports as METHOD_NOT_FOUND.
func (r *ResourceRegistry) Subscribe(uri, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byURI[uri]; !ok {
		return &NotFoundError{Name: uri}
	}
	subscribers, ok := r.subscribe[uri]
	if !ok {
		subscribers = make(map[string]bool)
		r.subscribe[uri] = subscribers
	}
	subscribers[sessionID] = true
	return nil
}

// Unsubscribe removes sessionID from uri's subscriber set. Unsubscribing a
// session that was never subscribed is a no-op, matching the teacher
// transport layer's general tolerance of idempotent teardown calls.
func (r *ResourceRegistry) Unsubscribe(uri, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subscribers, ok := r.subscribe[uri]; ok {
		delete(subscribers, sessionID)
	}
}

// Subscribers returns the session ids currently subscribed to uri.
func (r *ResourceRegistry) Subscribers(uri string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subscribers := r.subscribe[uri]
	out := make([]string, 0, len(subscribers))
	for sessionID := range subscribers {
		out = append(out, sessionID)
	}
	return out
}
