package queue

import "github.com/nuulab/disqueue/internal/job"

// DefaultQueueRetryStrategy and DefaultQueueRetryLimit govern the
// "default" queue's retry policy in DefaultDescriptors, overridable at
// startup from DISQUEUE_RETRY_STRATEGY/DISQUEUE_MAX_RETRIES via
// config.Config.ApplyRetryDefaults. Every other queue below declares its
// own policy explicitly.
var (
	DefaultQueueRetryStrategy = "exponential"
	DefaultQueueRetryLimit    = 3
)

// DefaultDescriptors returns a starter set of queues mirroring the example
// queues declared in this system's original queue registry config: a
// catch-all default queue, an image-processing queue restricted to
// high/medium priority, an email queue on a fixed retry schedule, and a
// billing queue with no dead-letter (billing failures page a human
// instead of sitting in the DLQ).
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		NewDescriptor("default", job.AllPriorities(), DefaultQueueRetryStrategy, DefaultQueueRetryLimit, true),
		NewDescriptor("image_processing", []job.Priority{job.PriorityHigh, job.PriorityMedium}, "exponential", 5, true),
		NewDescriptor("email", []job.Priority{job.PriorityMedium, job.PriorityLow}, "fixed", 2, true),
		NewDescriptor("billing", []job.Priority{job.PriorityHigh}, "fixed", 1, false),
	}
}
