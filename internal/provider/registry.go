package provider

import "sort"

// Registry holds the closed set of connectable providers. It is built once
// at startup from configuration and read-only afterwards.
type Registry struct {
	providers map[string]Descriptor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Descriptor)}
}

// Register adds a provider to the registry, replacing any previous descriptor
// with the same name.
func (r *Registry) Register(d Descriptor) {
	r.providers[d.Name()] = d
}

// Get returns the descriptor for name, or ErrProviderNotFound.
func (r *Registry) Get(name string) (Descriptor, error) {
	d, ok := r.providers[name]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return d, nil
}

// Names returns the registered provider names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
