// Package main provides the DisQueue housekeeping process: periodic
// dead-letter requeue sweeps and queue depth metric refreshes.
package main

import (
	"fmt"
	"net/http"
	_ "net/http/pprof" // #nosec G108 - pprof is intentionally exposed for debugging, isolated to separate port
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nuulab/disqueue/internal/config"
	"github.com/nuulab/disqueue/internal/housekeeping"
	"github.com/nuulab/disqueue/internal/logger"
	"github.com/nuulab/disqueue/internal/queue"
	"github.com/nuulab/disqueue/internal/store"
	"github.com/redis/go-redis/v9"
)

// connectWithRetry attempts to connect to the broker with exponential
// backoff, matching the teacher's scheduler startup resilience since
// housekeeping, like the scheduler, typically starts alongside Redis in
// the same compose/k8s rollout and may race it.
func connectWithRetry(redisURL string, maxRetries int, log logger.Logger) (*store.RedisStore, error) {
	var s *store.RedisStore
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		s, err = store.NewRedisStore(redisURL)
		if err == nil {
			return s, nil
		}

		// #nosec G115 - attempt is bounded by maxRetries, overflow not possible
		delay := time.Duration(1<<uint(attempt)) * time.Second
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		log.Warn("failed to connect to broker, retrying",
			"attempt", attempt+1, "max_attempts", maxRetries, "error", err, "retry_in", delay)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect to broker after %d attempts: %w", maxRetries, err)
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := log.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close logger: %v\n", err)
		}
	}()
	logger.SetDefault(log)
	cfg.ApplyRetryDefaults()

	hkLog := log.WithComponent(logger.ComponentHousekeeping).WithSource(logger.LogSourceInternal)
	hkLog.Info("housekeeping starting", "redis_url", cfg.RedisURL, "enabled", cfg.CronSchedulerEnabled)

	if !cfg.CronSchedulerEnabled {
		hkLog.Info("housekeeping disabled via CRON_SCHEDULER_ENABLED, exiting")
		return
	}

	pprofPort := os.Getenv("PPROF_PORT")
	if pprofPort == "" {
		pprofPort = "6062"
	}
	go func() {
		hkLog.Info("starting pprof server", "port", pprofPort)
		server := &http.Server{
			Addr:              ":" + pprofPort,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if err := server.ListenAndServe(); err != nil {
			hkLog.Error("pprof server failed", "error", err)
		}
	}()

	s, err := connectWithRetry(cfg.RedisURL, 5, hkLog)
	if err != nil {
		hkLog.Error("failed to connect to broker", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := s.Close(); err != nil {
			hkLog.Error("failed to close broker connection", "error", err)
		}
	}()
	hkLog.Info("successfully connected to broker")

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		hkLog.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}
	lockClient := redis.NewClient(opts)
	defer func() {
		if err := lockClient.Close(); err != nil {
			hkLog.Error("failed to close lock client", "error", err)
		}
	}()

	registry, err := queue.NewRegistry(queue.DefaultDescriptors()...)
	if err != nil {
		hkLog.Error("failed to build queue registry", "error", err)
		os.Exit(1)
	}

	runner := housekeeping.NewRunner(s, registry, lockClient)
	if err := runner.Start(cfg.CronSchedulerInterval); err != nil {
		hkLog.Error("failed to start housekeeping schedule", "error", err)
		os.Exit(1)
	}
	hkLog.Info("housekeeping ready", "schedule", cfg.CronSchedulerInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	hkLog.Info("received shutdown signal, initiating graceful shutdown", "signal", sig)

	runner.Stop()
	hkLog.Info("housekeeping shut down successfully")
}
