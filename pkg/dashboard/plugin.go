package dashboard

import (
	"fmt"
	"sort"
)

// Plugin contributes dashboards.
type Plugin interface {
	Name() string
	Version() string
	Register(registry *Registry) error
}

// Registry accumulates the definitions of one plugin during registration.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// RegisterDashboard validates and stores def.
func (r *Registry) RegisterDashboard(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if _, exists := r.defs[def.Key]; exists {
		return fmt.Errorf("dashboard %s already registered", def.Key)
	}
	r.defs[def.Key] = def
	return nil
}

// Dashboards returns the registered definitions sorted by key.
func (r *Registry) Dashboards() []Definition {
	out := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
