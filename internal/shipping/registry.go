package shipping

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownMethod is returned for a method id with no registered factory.
var ErrUnknownMethod = errors.New("shipping: unknown method")

// Deps are handed to every method factory.
type Deps struct {
	Tax           TaxResolver
	PriceDecimals int32
}

// Factory builds a method instance from its stored configuration.
type Factory func(cfg ZoneMethod, deps Deps) (Method, error)

// Registry maps method ids to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the built in methods.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(MethodFlatRate, NewFlatRate)
	r.Register(MethodFreeShipping, NewFreeShipping)
	r.Register(MethodLocalPickup, NewLocalPickup)
	return r
}

// Register adds or replaces the factory for id.
func (r *Registry) Register(id string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = f
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[id]
	return ok
}

// IDs lists registered method ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for id := range r.factories {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Build constructs the method described by cfg.
func (r *Registry) Build(cfg ZoneMethod, deps Deps) (Method, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.MethodID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, cfg.MethodID)
	}
	if cfg.Settings == nil {
		cfg.Settings = map[string]string{}
	}
	return f(cfg, deps)
}
