package tool

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/model"
)

// Registry maps tool names to implementations. Registration order is
// preserved so tool definitions reach the provider deterministically.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools *orderedmap.OrderedMap[string, Tool]
}

// NewRegistry creates a registry pre-populated with tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: orderedmap.New[string, Tool]()}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool. It reports false for nil tools or empty names.
func (r *Registry) Register(t Tool) bool {
	if t == nil || t.Name() == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools.Set(t.Name(), t)
	return true
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools.Get(name)
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools.Len()
}

// Definitions returns the provider facing declarations of all tools.
func (r *Registry) Definitions() []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]model.ToolDefinition, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		defs = append(defs, model.ToolDefinition{
			Name:        pair.Value.Name(),
			Description: pair.Value.Description(),
			Parameters:  pair.Value.Parameters(),
		})
	}
	return defs
}

// Subset returns a new registry holding only the named tools, in the order
// given. Unknown names fail with *core.ToolNotFoundError.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	out := NewRegistry()
	for _, name := range names {
		t, ok := r.Lookup(name)
		if !ok {
			return nil, &core.ToolNotFoundError{Name: name, Available: r.Names()}
		}
		out.Register(t)
	}
	return out, nil
}
