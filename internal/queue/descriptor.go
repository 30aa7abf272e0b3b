// Package queue holds the declarative description of each logical queue:
// which priorities it listens on, which retry strategy governs its jobs,
// and whether failures land in the dead-letter stream.
package queue

import (
	"fmt"

	"github.com/nuulab/disqueue/internal/job"
)

// Descriptor declares one logical queue. The zero value is invalid;
// construct via NewDescriptor or Validate before use.
type Descriptor struct {
	Name          string
	Priorities    []job.Priority
	RetryStrategy string
	RetryLimit    int
	EnableDLQ     bool
}

// NewDescriptor builds a Descriptor, defaulting Priorities to the full
// canonical set when none are given.
func NewDescriptor(name string, priorities []job.Priority, retryStrategy string, retryLimit int, enableDLQ bool) Descriptor {
	if len(priorities) == 0 {
		priorities = job.AllPriorities()
	}
	return Descriptor{
		Name:          name,
		Priorities:    job.SortPriorities(priorities),
		RetryStrategy: retryStrategy,
		RetryLimit:    retryLimit,
		EnableDLQ:     enableDLQ,
	}
}

// Validate checks the descriptor's own invariants (name present, at least
// one known priority, non-negative retry limit).
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("queue descriptor: name is required")
	}
	if len(d.Priorities) == 0 {
		return fmt.Errorf("queue %q: at least one priority is required", d.Name)
	}
	for _, p := range d.Priorities {
		if !job.ValidPriority(p) {
			return fmt.Errorf("queue %q: unknown priority %q", d.Name, p)
		}
	}
	if d.RetryLimit < 0 {
		return fmt.Errorf("queue %q: retry limit cannot be negative", d.Name)
	}
	return nil
}

// Streams returns the broker stream names for this queue, one per
// priority, ordered high to default.
func (d Descriptor) Streams() []string {
	streams := make([]string, len(d.Priorities))
	for i, p := range d.Priorities {
		streams[i] = StreamKey(d.Name, p)
	}
	return streams
}

// StreamKey computes the broker key for a given queue name and priority,
// matching the disqueue:<queue>:<priority> layout.
func StreamKey(queueName string, priority job.Priority) string {
	return fmt.Sprintf("disqueue:%s:%s", queueName, priority)
}

// AllowsPriority reports whether p is one of d's configured priorities.
func (d Descriptor) AllowsPriority(p job.Priority) bool {
	for _, allowed := range d.Priorities {
		if allowed == p {
			return true
		}
	}
	return false
}
