package notifier

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/fastquant/internal/backtest"
	"github.com/newthinker/fastquant/internal/core"
)

// Registry manages notifier instances
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
}

// NewRegistry creates a new notifier registry
func NewRegistry() *Registry {
	return &Registry{
		notifiers: make(map[string]Notifier),
	}
}

// Register adds a notifier to the registry
func (r *Registry) Register(n Notifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := n.Name()
	if _, exists := r.notifiers[name]; exists {
		return fmt.Errorf("notifier %s already registered", name)
	}

	r.notifiers[name] = n
	return nil
}

// Get retrieves a notifier by name
func (r *Registry) Get(name string) (Notifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, exists := r.notifiers[name]
	if !exists {
		return nil, core.WrapError(core.ErrNotifierFailed, fmt.Errorf("notifier %s not found", name))
	}
	return n, nil
}

// Names returns the registered notifier names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.notifiers))
	for name := range r.notifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered notifiers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.notifiers)
}

// NotifyAll sends a result to all registered notifiers. Failures are
// collected per notifier and never stop the others.
func (r *Registry) NotifyAll(ctx context.Context, result *backtest.Result) map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	errs := make(map[string]error)
	for name, n := range r.notifiers {
		if err := n.Send(ctx, result); err != nil {
			errs[name] = core.WrapError(core.ErrNotifierFailed, err)
		}
	}
	return errs
}

// NotifyAllBatch sends a batch of results to all registered notifiers
func (r *Registry) NotifyAllBatch(ctx context.Context, results []*backtest.Result) map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	errs := make(map[string]error)
	if len(results) == 0 {
		return errs
	}
	for name, n := range r.notifiers {
		if err := n.SendBatch(ctx, results); err != nil {
			errs[name] = core.WrapError(core.ErrNotifierFailed, err)
		}
	}
	return errs
}
