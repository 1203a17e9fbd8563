package device

import (
	"fmt"
	"sort"
	"strings"
)

// Factory builds devices of one kind from their raw configuration.
type Factory struct {
	Kind string
	New  func(index int, params map[string]any) (Device, error)
}

// Registry maps device kinds to factories. It is built explicitly from the
// factories the caller wires in; there is no process-wide registration.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry from the given factories.
func NewRegistry(factories ...Factory) *Registry {
	r := &Registry{factories: make(map[string]Factory, len(factories))}
	for _, f := range factories {
		r.factories[f.Kind] = f
	}
	return r
}

// Kinds returns the registered device kinds, sorted.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Build instantiates every device in the configuration, ordered by kind then
// index so the device set is deterministic across runs.
func (r *Registry) Build(devices map[string]map[int]map[string]any) ([]Device, error) {
	kinds := make([]string, 0, len(devices))
	for kind := range devices {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	var out []Device
	for _, kind := range kinds {
		factory, ok := r.factories[kind]
		if !ok {
			return nil, fmt.Errorf("unknown device kind %q, available kinds: %s",
				kind, strings.Join(r.Kinds(), ", "))
		}

		indexes := make([]int, 0, len(devices[kind]))
		for idx := range devices[kind] {
			indexes = append(indexes, idx)
		}
		sort.Ints(indexes)

		for _, idx := range indexes {
			d, err := factory.New(idx, devices[kind][idx])
			if err != nil {
				return nil, fmt.Errorf("initializing %s %d: %w", kind, idx, err)
			}
			out = append(out, d)
		}
	}
	return out, nil
}
