package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// PromptArgument describes one named argument a prompt accepts, mirroring
// mcp.PromptArgument's shape without importing it (see tools.go's comment
// on why this package stays independent of the mcp package's types).
type PromptArgument struct {
	Name        string
	Description string
	Required    bool
}

// PromptHandler renders one registered prompt template given its named
// arguments (prompts/get's "arguments" map, always string-valued per spec),
// returning the wire-ready prompts/get result payload.
type PromptHandler func(ctx context.Context, arguments map[string]string) (json.RawMessage, error)

// PromptInfo is one prompt's prompts/list entry.
type PromptInfo struct {
	Name        string
	Description string
	Arguments   []PromptArgument
}

// PromptRegistry is the prompts/list + prompts/get backing store.
type PromptRegistry struct {
	reg *Registry[PromptHandler]

	mu        sync.RWMutex
	arguments map[string][]PromptArgument
}

// NewPromptRegistry constructs an empty PromptRegistry.
func NewPromptRegistry() *PromptRegistry {
	return &PromptRegistry{
		reg:       New[PromptHandler](),
		arguments: make(map[string][]PromptArgument),
	}
}

// Register adds a prompt template. args describes the named arguments the
// handler accepts, echoed back verbatim in prompts/list.
func (r *PromptRegistry) Register(name, description string, args []PromptArgument, handler PromptHandler) error {
	if err := r.reg.Register(&Entry[PromptHandler]{
		Name:        name,
		Description: description,
		Value:       handler,
	}); err != nil {
		return err
	}
	r.mu.Lock()
	r.arguments[name] = args
	r.mu.Unlock()
	return nil
}

// List returns every registered prompt's listing metadata.
func (r *PromptRegistry) List() []PromptInfo {
	entries := r.reg.List()
	out := make([]PromptInfo, 0, len(entries))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, entry := range entries {
		out = append(out, PromptInfo{Name: entry.Name, Description: entry.Description, Arguments: r.arguments[entry.Name]})
	}
	return out
}

// Get validates that every argument the prompt marks required is present,
// then renders it. A missing prompt yields *NotFoundError; a missing
// required argument yields *InvalidArgsError.
func (r *PromptRegistry) Get(ctx context.Context, name string, arguments map[string]string) (json.RawMessage, error) {
	entry, ok := r.reg.Get(name)
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	r.mu.RLock()
	required := r.arguments[name]
	r.mu.RUnlock()
	for _, arg := range required {
		if arg.Required {
			if _, present := arguments[arg.Name]; !present {
				return nil, &InvalidArgsError{Name: name, Err: fmt.Errorf("missing required argument %q", arg.Name)}
			}
		}
	}
	return entry.Value(ctx, arguments)
}
