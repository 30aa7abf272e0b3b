// Package config loads DisQueue's process configuration from the
// environment: one LoadConfig call at startup, sensible defaults for
// anything unset, fail fast on anything invalid.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nuulab/disqueue/internal/job"
	"github.com/nuulab/disqueue/internal/logger"
	"github.com/nuulab/disqueue/internal/queue"
	"github.com/nuulab/disqueue/internal/retry"
)

// Config holds process-wide configuration for every DisQueue binary.
type Config struct {
	// RedisURL is the connection URL for the broker.
	RedisURL string
	// APIPort is the port the submission HTTP server listens on.
	APIPort string
	// WorkerConcurrency is the number of concurrent worker goroutines.
	WorkerConcurrency int
	// JobTimeout is the configured per-job timeout. It is logged at
	// startup; the processor does not enforce it.
	JobTimeout time.Duration
	// CronSchedulerEnabled enables the housekeeping cron (DLQ sweep,
	// queue depth refresh).
	CronSchedulerEnabled bool
	// CronSchedulerInterval is the housekeeping cron's schedule, given
	// as a standard cron expression.
	CronSchedulerInterval string
	// DefaultPriority is the priority assumed for a submission that omits
	// one.
	DefaultPriority job.Priority
	// RetryStrategy and MaxRetries are the retry policy for the "default"
	// queue in queue.DefaultDescriptors; other queues declare their own.
	RetryStrategy string
	MaxRetries    int
	// FixedDelay, ExpBase and ExpFactor tune the retry strategies'
	// backoff calculations across every queue.
	FixedDelay time.Duration
	ExpBase    time.Duration
	ExpFactor  float64
	// Logging configuration.
	Logging *logger.Config
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379"),
		APIPort:               getEnv("API_PORT", "8080"),
		WorkerConcurrency:     getEnvAsInt("WORKER_CONCURRENCY", 5),
		JobTimeout:            getEnvAsDuration("JOB_TIMEOUT", 5*time.Minute),
		CronSchedulerEnabled:  getEnvAsBool("CRON_SCHEDULER_ENABLED", true),
		CronSchedulerInterval: getEnv("CRON_SCHEDULER_INTERVAL", "@every 1m"),
		DefaultPriority:       job.Priority(getEnv("DISQUEUE_DEFAULT_PRIORITY", string(job.PriorityDefault))),
		RetryStrategy:         getEnv("DISQUEUE_RETRY_STRATEGY", retry.NameExponential),
		MaxRetries:            getEnvAsInt("DISQUEUE_MAX_RETRIES", 3),
		FixedDelay:            getEnvAsDuration("DISQUEUE_FIXED_DELAY", retry.DefaultFixedDelay),
		ExpBase:               getEnvAsDuration("DISQUEUE_EXP_BASE", retry.DefaultExpBase),
		ExpFactor:             getEnvAsFloat("DISQUEUE_EXP_FACTOR", retry.DefaultExpFactor),
		Logging:               loadLoggingConfig(),
	}

	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL cannot be empty")
	}
	if cfg.APIPort == "" {
		return nil, fmt.Errorf("API_PORT cannot be empty")
	}
	if cfg.WorkerConcurrency < 1 {
		return nil, fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if !job.ValidPriority(cfg.DefaultPriority) {
		return nil, fmt.Errorf("DISQUEUE_DEFAULT_PRIORITY %q is not a known priority", cfg.DefaultPriority)
	}
	if cfg.RetryStrategy != retry.NameFixed && cfg.RetryStrategy != retry.NameExponential {
		return nil, fmt.Errorf("DISQUEUE_RETRY_STRATEGY %q is not a known strategy", cfg.RetryStrategy)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("DISQUEUE_MAX_RETRIES cannot be negative")
	}

	if err := cfg.Logging.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	return cfg, nil
}

// ApplyRetryDefaults pushes this config's retry tuning onto the retry and
// queue packages' overridable defaults, the way logger.SetDefault wires a
// built *Logger into that package's package-level default. Call once at
// process startup, after LoadConfig and before building any queue
// registry or processor.
func (c *Config) ApplyRetryDefaults() {
	retry.DefaultFixedDelay = c.FixedDelay
	retry.DefaultExpBase = c.ExpBase
	retry.DefaultExpFactor = c.ExpFactor
	queue.DefaultQueueRetryStrategy = c.RetryStrategy
	queue.DefaultQueueRetryLimit = c.MaxRetries
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}

// loadLoggingConfig loads logging configuration from environment variables.
func loadLoggingConfig() *logger.Config {
	cfg := logger.DefaultConfig()

	if level := getEnv("LOG_LEVEL", ""); level != "" {
		cfg.Level = logger.LogLevel(level)
	}
	if format := getEnv("LOG_FORMAT", ""); format != "" {
		cfg.Format = logger.LogFormat(format)
	}

	cfg.Console.Enabled = getEnvAsBool("LOG_CONSOLE_ENABLED", true)
	cfg.Console.Color = getEnvAsBool("LOG_COLOR", true)
	cfg.Console.BufferSize = getEnvAsInt("LOG_CONSOLE_BUFFER_SIZE", 65536)
	cfg.Console.FlushInterval = getEnvAsDuration("LOG_CONSOLE_FLUSH_INTERVAL", 100*time.Millisecond)

	cfg.File.Enabled = getEnvAsBool("LOG_FILE_ENABLED", false)
	cfg.File.Path = getEnv("LOG_FILE_PATH", "/var/log/disqueue/disqueue.log")
	cfg.File.MaxSizeMB = getEnvAsInt("LOG_FILE_MAX_SIZE_MB", 100)
	cfg.File.MaxBackups = getEnvAsInt("LOG_FILE_MAX_BACKUPS", 5)
	cfg.File.MaxAgeDays = getEnvAsInt("LOG_FILE_MAX_AGE_DAYS", 30)
	cfg.File.Compress = getEnvAsBool("LOG_FILE_COMPRESS", true)
	cfg.File.BufferSize = getEnvAsInt("LOG_FILE_BUFFER_SIZE", 10000)
	cfg.File.BatchSize = getEnvAsInt("LOG_FILE_BATCH_SIZE", 100)
	cfg.File.BatchInterval = getEnvAsDuration("LOG_FILE_BATCH_INTERVAL", 100*time.Millisecond)

	cfg.Elasticsearch.Enabled = getEnvAsBool("LOG_ES_ENABLED", false)
	cfg.Elasticsearch.Mode = getEnv("LOG_ES_MODE", "self-managed")

	cfg.Elasticsearch.Addresses = getEnvAsStringSlice("LOG_ES_ADDRESSES", []string{"http://localhost:9200"})
	cfg.Elasticsearch.Username = getEnv("LOG_ES_USERNAME", "")
	cfg.Elasticsearch.Password = getEnv("LOG_ES_PASSWORD", "")

	cfg.Elasticsearch.CloudID = getEnv("LOG_ES_CLOUD_ID", "")
	cfg.Elasticsearch.APIKey = getEnv("LOG_ES_API_KEY", "")

	cfg.Elasticsearch.IndexPrefix = getEnv("LOG_ES_INDEX_PREFIX", "disqueue-logs")
	cfg.Elasticsearch.BulkSize = getEnvAsInt("LOG_ES_BULK_SIZE", 100)
	cfg.Elasticsearch.FlushInterval = getEnvAsDuration("LOG_ES_FLUSH_INTERVAL", 5*time.Second)
	cfg.Elasticsearch.Workers = getEnvAsInt("LOG_ES_WORKERS", 2)
	cfg.Elasticsearch.MaxRetries = getEnvAsInt("LOG_ES_MAX_RETRIES", 3)
	cfg.Elasticsearch.RetryBackoff = getEnvAsDuration("LOG_ES_RETRY_BACKOFF", 1*time.Second)
	cfg.Elasticsearch.CircuitBreaker = getEnvAsBool("LOG_ES_CIRCUIT_BREAKER", true)
	cfg.Elasticsearch.FailureThreshold = getEnvAsInt("LOG_ES_FAILURE_THRESHOLD", 5)
	cfg.Elasticsearch.ResetTimeout = getEnvAsDuration("LOG_ES_RESET_TIMEOUT", 30*time.Second)

	return cfg
}
