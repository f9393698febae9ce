package agent

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/langswarm/langswarm/core"
)

// Registry maps agent ids to agents. It is an explicit value injected into
// the engine; there is no process-wide instance.
type Registry struct {
	mu     sync.RWMutex
	agents *orderedmap.OrderedMap[string, *Agent]
}

// NewRegistry creates a registry holding agents.
func NewRegistry(agents ...*Agent) *Registry {
	r := &Registry{agents: orderedmap.New[string, *Agent]()}
	for _, a := range agents {
		r.Register(a)
	}
	return r
}

// Register inserts or replaces the agent under its id. It returns false for
// a nil agent.
func (r *Registry) Register(a *Agent) bool {
	if a == nil || a.ID() == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents.Set(a.ID(), a)
	return true
}

// Remove deletes an agent and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.agents.Delete(id)
	return ok
}

// Lookup resolves id or fails with *core.AgentNotFoundError.
func (r *Registry) Lookup(id string) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.agents.Get(id); ok {
		return a, nil
	}
	return nil, &core.AgentNotFoundError{ID: id, Known: r.listLocked()}
}

// List returns every registered id in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked()
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.agents.Len()
}

func (r *Registry) listLocked() []string {
	ids := make([]string, 0, r.agents.Len())
	for pair := r.agents.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}
