package queue

import (
	"fmt"
	"sync"

	"github.com/nuulab/disqueue/internal/job"
)

// Registry holds the set of known queue descriptors for a process.
// Constructed and injected at startup, never package-level state, so
// multiple registries (e.g. in tests) never interfere with each other.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
	order       []string
}

// NewRegistry builds a Registry from a list of descriptors, validating
// each one. The order descriptors are passed in is preserved by List.
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{descriptors: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if err := r.add(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if _, exists := r.descriptors[d.Name]; exists {
		return fmt.Errorf("queue %q registered twice", d.Name)
	}
	r.descriptors[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// Get returns the descriptor for name, if registered.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[name]
	return d, ok
}

// List returns all descriptors in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.descriptors[name])
	}
	return out
}

// Validate checks that queueName exists and that priority (if non-empty)
// is one of its configured priorities. Used by the submission surface to
// reject bad requests before they reach the store.
func (r *Registry) Validate(queueName string, priority job.Priority) error {
	d, ok := r.Get(queueName)
	if !ok {
		return &job.ValidationError{Field: "queue", Reason: fmt.Sprintf("unknown queue %q", queueName)}
	}
	if priority != "" && !d.AllowsPriority(priority) {
		return &job.ValidationError{Field: "priority", Reason: fmt.Sprintf("queue %q does not accept priority %q", queueName, priority)}
	}
	return nil
}
