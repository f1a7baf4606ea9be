package backend

import "strings"

// Info describes a backend for listings.
type Info struct {
	ID      ID     `json:"id"`
	Name    string `json:"name"`
	Planned bool   `json:"planned,omitempty"`
}

// Registry maps backend identifiers to adapters. It is immutable once built.
type Registry struct {
	order    []ID
	adapters map[ID]Adapter
	infos    map[ID]Info
}

// NewRegistry returns the registry of built-in backends.
func NewRegistry() *Registry {
	return NewRegistryWith(
		[]Adapter{NewCopilot(), NewCodex(), NewClaude()},
		[]Info{
			{ID: Copilot, Name: "GitHub Copilot CLI"},
			{ID: Codex, Name: "OpenAI Codex CLI"},
			{ID: Claude, Name: "Anthropic Claude CLI", Planned: true},
		},
	)
}

// NewRegistryWith builds a registry from explicit adapters. Adapters without
// a matching Info are listed under their ID.
func NewRegistryWith(adapters []Adapter, infos []Info) *Registry {
	r := &Registry{
		adapters: make(map[ID]Adapter, len(adapters)),
		infos:    make(map[ID]Info, len(adapters)),
	}
	for _, info := range infos {
		r.infos[info.ID] = info
	}
	for _, a := range adapters {
		id := a.ID()
		if _, dup := r.adapters[id]; dup {
			continue
		}
		r.order = append(r.order, id)
		r.adapters[id] = a
		if _, ok := r.infos[id]; !ok {
			r.infos[id] = Info{ID: id, Name: string(id)}
		}
	}
	return r
}

// Resolve returns the adapter for id. Unknown identifiers yield false.
func (r *Registry) Resolve(id string) (Adapter, bool) {
	a, ok := r.adapters[ID(id)]
	return a, ok
}

// IDs returns the registered identifiers in registration order.
func (r *Registry) IDs() []ID {
	return append([]ID(nil), r.order...)
}

// Describe returns listing information in registration order.
func (r *Registry) Describe() []Info {
	out := make([]Info, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.infos[id])
	}
	return out
}

// Known returns the identifiers as a comma separated string for messages.
func (r *Registry) Known() string {
	names := make([]string, 0, len(r.order))
	for _, id := range r.order {
		names = append(names, string(id))
	}
	return strings.Join(names, ", ")
}
