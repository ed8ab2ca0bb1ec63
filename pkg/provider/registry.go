package provider

import (
	"fmt"
	"sync"
)

// Registry maps provider identifiers to their adapters. The orchestrator
// looks up the adapter for each request's provider tag; an unknown
// provider fails that unit without touching the network.
//
// All methods are safe for concurrent access.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register adds an adapter under its own name. Registering the same name
// twice replaces the previous adapter.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Lookup returns the adapter for the given provider name.
func (r *Registry) Lookup(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	return a, nil
}

// Names returns the registered provider names, in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
