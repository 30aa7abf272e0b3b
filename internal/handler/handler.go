// Package handler holds the per-queue job handler registry.
package handler

import (
	"context"
	"fmt"

	"github.com/nuulab/disqueue/internal/job"
)

// Func processes a single job's payload. Returning an error marks the
// attempt as failed, which the processor routes through the queue's
// retry strategy.
type Func func(ctx context.Context, payload job.Payload) error

// Registry maps queue names to their handler. Constructed per-process,
// never global, so tests never leak handlers into each other.
type Registry struct {
	handlers map[string]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Func)}
}

// Register installs h as the handler for queueName, overwriting any
// previous registration.
func (r *Registry) Register(queueName string, h Func) {
	r.handlers[queueName] = h
}

// Get retrieves the handler for queueName.
func (r *Registry) Get(queueName string) (Func, bool) {
	h, ok := r.handlers[queueName]
	return h, ok
}

// Count returns the number of registered handlers.
func (r *Registry) Count() int {
	return len(r.handlers)
}

// Execute looks up and runs the handler for queueName. A missing handler
// is reported as an error rather than a panic - the processor treats it
// exactly like any other handler failure.
func (r *Registry) Execute(ctx context.Context, queueName string, payload job.Payload) error {
	h, ok := r.Get(queueName)
	if !ok {
		return fmt.Errorf("no handler registered for queue %q", queueName)
	}
	return h(ctx, payload)
}
