package collector

import (
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/fastquant/internal/core"
)

// Registry manages price providers
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Resolve returns the named provider or ErrProviderNotFound
func (r *Registry) Resolve(name string) (Provider, error) {
	if p, ok := r.Get(name); ok {
		return p, nil
	}
	return nil, core.WrapError(core.ErrProviderNotFound, fmt.Errorf("%q", name))
}

// Names returns the registered provider names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
