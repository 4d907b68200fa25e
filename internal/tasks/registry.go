package tasks

import (
	"fmt"
	"sync"

	"github.com/tradelens/ingestor/internal/window"
)

// Registry holds task descriptors in registration order
type Registry struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]Descriptor
}

// NewRegistry creates a registry and registers descriptors in order
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]Descriptor)}
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a descriptor. Names must be unique and every task needs a
// window policy and a function.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return &ConfigurationError{Err: fmt.Errorf("%w: name is required", ErrInvalidTask)}
	}
	if d.Run == nil {
		return &ConfigurationError{Task: d.Name, Err: fmt.Errorf("%w: run function is required", ErrInvalidTask)}
	}
	if d.Policy == nil {
		return &ConfigurationError{Task: d.Name, Err: window.ErrMissingPolicy}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[d.Name]; exists {
		return &ConfigurationError{Task: d.Name, Err: ErrDuplicateTask}
	}
	r.byName[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// Get returns the descriptor registered under name
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// Names returns the registered task names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tasks
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Select resolves a selection of task names into descriptors ordered by
// registration. An empty selection selects every task. Duplicates are ignored.
// Any unknown name fails the whole selection.
func (r *Registry) Select(names []string) ([]Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(names) == 0 {
		out := make([]Descriptor, 0, len(r.order))
		for _, name := range r.order {
			out = append(out, r.byName[name])
		}
		return out, nil
	}

	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := r.byName[name]; !ok {
			return nil, &ConfigurationError{Task: name, Err: ErrUnknownTask}
		}
		wanted[name] = struct{}{}
	}

	out := make([]Descriptor, 0, len(wanted))
	for _, name := range r.order {
		if _, ok := wanted[name]; ok {
			out = append(out, r.byName[name])
		}
	}
	return out, nil
}
