package backend

import (
	"fmt"
	"sync"
)

// Factory builds a backend instance for a system with the given core count.
type Factory func(numCores int) (Backend, error)

// Registry keeps backend factories keyed by enable-method name. Exactly one
// backend is selected per system at startup; the registry only exists so
// platform descriptions can name their mechanism as a string.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given enable-method name.
func (r *Registry) Register(method string, factory Factory) error {
	if r == nil {
		return fmt.Errorf("registry is nil")
	}
	if method == "" {
		return fmt.Errorf("enable method cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("backend factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[method]; exists {
		return fmt.Errorf("backend already registered: %s", method)
	}
	r.factories[method] = factory
	return nil
}

// Select builds the backend for the named enable method.
func (r *Registry) Select(method string, numCores int) (Backend, error) {
	if r == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	r.mu.RLock()
	factory, ok := r.factories[method]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown enable method %q", method)
	}
	b, err := factory(numCores)
	if err != nil {
		return nil, fmt.Errorf("enable method %s failed: %w", method, err)
	}
	return b, nil
}

// Methods returns the registered enable-method names.
func (r *Registry) Methods() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	return out
}

// DefaultRegistry carries the built-in enable methods.
var DefaultRegistry = NewRegistry()

func init() {
	DefaultRegistry.Register("sim-psci", func(numCores int) (Backend, error) {
		return NewSimBackend(numCores), nil
	})
	DefaultRegistry.Register("sim-spin-table", func(numCores int) (Backend, error) {
		b := NewSimBackend(numCores)
		b.DisableOp(OpDie)
		b.DisableOp(OpKill)
		b.DisableOp(OpDisable)
		return b, nil
	})
}
