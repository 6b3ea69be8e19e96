package action

import (
	"context"
	"sort"
	"sync"
)

// Handler runs one action. It returns the response body, an
// *job.ActionError to report a declared failure, or any other error to
// signal that it crashed.
type Handler interface {
	Run(ctx context.Context, body map[string]any) (map[string]any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, body map[string]any) (map[string]any, error)

// Run calls f.
func (f HandlerFunc) Run(ctx context.Context, body map[string]any) (map[string]any, error) {
	return f(ctx, body)
}

// Factory constructs a Handler. It is called once per invocation, so
// handlers may keep per-call state.
type Factory func() Handler

// Registry maps action names to handler factories.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty action registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register binds name to factory, replacing any previous binding.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// RegisterFunc binds name to a stateless handler function.
func (r *Registry) RegisterFunc(name string, fn HandlerFunc) {
	r.Register(name, func() Handler { return fn })
}

// Get returns the factory for name.
// Returns false if no action is registered under that name.
func (r *Registry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns all registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered actions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}
