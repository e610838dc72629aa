package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ToolHandler implements one registered tool's behavior. args is the raw
// "arguments" field of a tools/call request, already validated against the
// tool's input schema by the time the handler runs; the returned bytes are
// the wire-ready tools/call result payload (e.g. a marshaled
// mcp.CallToolResult) - this package has no dependency on mcp's concrete
// types, only on json.RawMessage, so mcp can depend on registry without a
// cycle.
type ToolHandler func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// ToolInfo is one tool's tools/list entry.
type ToolInfo struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}

// ToolRegistry is the tools/list + tools/call backing store: a Registry[ToolHandler]
// plus the list/call signatures the session layer dispatches through.
type ToolRegistry struct {
	reg *Registry[ToolHandler]
}

// NewToolRegistry constructs an empty ToolRegistry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{reg: New[ToolHandler]()}
}

// Register adds a tool. schema may be nil for tools that accept no arguments.
func (r *ToolRegistry) Register(name, description string, schema *jsonschema.Schema, handler ToolHandler) error {
	return r.reg.Register(&Entry[ToolHandler]{
		Name:        name,
		Description: description,
		Schema:      schema,
		Value:       handler,
	})
}

// List returns every registered tool's listing metadata.
func (r *ToolRegistry) List() []ToolInfo {
	entries := r.reg.List()
	out := make([]ToolInfo, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ToolInfo{Name: entry.Name, Description: entry.Description, Schema: entry.Schema})
	}
	return out
}

// Execute validates args against the named tool's input schema and, if that
// passes, invokes its handler. A missing tool yields *NotFoundError; a
// schema violation yields *InvalidArgsError - callers map the former to
// METHOD_NOT_FOUND and the latter to INVALID_PARAMS.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	entry, ok := r.reg.Get(name)
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	if entry.resolved != nil {
		var decoded interface{}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &decoded); err != nil {
				return nil, &InvalidArgsError{Name: name, Err: err}
			}
		}
		if err := entry.resolved.Validate(decoded); err != nil {
			return nil, &InvalidArgsError{Name: name, Err: err}
		}
	}
	result, err := entry.Value(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("registry: tool %q: %w", name, err)
	}
	return result, nil
}
