package store

// Hash and stream keys shared by every RedisStore instance. These match
// the broker layout named by the specification this queue implements.
const (
	dlqStream      = "job:dlq"
	statusHashKey  = "job_status"
	retriesHashKey = "job_retries"
	lastIDHashKey  = "job_last_ids"
	dedupKeyPrefix = "dedup:"
)

func dedupKey(jobID string) string {
	return dedupKeyPrefix + jobID
}
