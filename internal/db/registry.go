package db

import (
	"metriclens/internal/domain"
)

type connection struct {
	adapter domain.Adapter
	grammar domain.Grammar
}

// Registry maps logical connection names to adapters and grammars. Register
// everything at startup; lookups after that are read-only and safe to share
// across concurrent requests.
type Registry struct {
	conns map[string]connection
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{conns: map[string]connection{}}
}

// Register adds a named connection. A nil grammar leaves the connection's
// capabilities unknown, which routes planning to the software-join fallback.
func (r *Registry) Register(name string, adapter domain.Adapter, grammar domain.Grammar) {
	r.conns[name] = connection{adapter: adapter, grammar: grammar}
}

// Adapter returns the adapter for a connection name.
func (r *Registry) Adapter(name string) (domain.Adapter, error) {
	c, ok := r.conns[name]
	if !ok || c.adapter == nil {
		return nil, domain.ErrNotFound("no adapter registered for connection %q", name)
	}
	return c.adapter, nil
}

// Grammar returns the grammar for a connection name.
func (r *Registry) Grammar(name string) (domain.Grammar, error) {
	c, ok := r.conns[name]
	if !ok || c.grammar == nil {
		return nil, domain.ErrNotFound("no grammar registered for connection %q", name)
	}
	return c.grammar, nil
}
