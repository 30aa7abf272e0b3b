// Package main provides the DisQueue worker process for dispatching
// queued jobs to handlers, with dedup, retry, and dead-lettering.
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" // #nosec G108 - pprof is intentionally exposed for debugging, isolated to separate port
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nuulab/disqueue/internal/config"
	"github.com/nuulab/disqueue/internal/handler"
	"github.com/nuulab/disqueue/internal/logger"
	"github.com/nuulab/disqueue/internal/metrics"
	"github.com/nuulab/disqueue/internal/queue"
	"github.com/nuulab/disqueue/internal/result"
	"github.com/nuulab/disqueue/internal/store"
	"github.com/nuulab/disqueue/internal/worker"
	"github.com/redis/go-redis/v9"
)

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

	workerLog := log.WithComponent(logger.ComponentWorker).WithSource(logger.LogSourceInternal)
	workerLog.Info("worker starting",
		"concurrency", cfg.WorkerConcurrency,
		"job_timeout", cfg.JobTimeout,
		"redis_url", cfg.RedisURL)

	pprofPort := os.Getenv("PPROF_PORT")
	if pprofPort == "" {
		pprofPort = "6061"
	}
	go func() {
		workerLog.Info("starting pprof server", "port", pprofPort)
		server := &http.Server{
			Addr:              ":" + pprofPort,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if err := server.ListenAndServe(); err != nil {
			workerLog.Error("pprof server failed", "error", err)
		}
	}()

	s, err := store.NewRedisStore(cfg.RedisURL)
	if err != nil {
		workerLog.Error("failed to connect to broker", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := s.Close(); err != nil {
			workerLog.Error("failed to close broker connection", "error", err)
		}
	}()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		workerLog.Error("failed to parse redis url for result backend", "error", err)
		os.Exit(1)
	}
	resultBackend := result.NewRedisBackend(redis.NewClient(opts), 1*time.Hour, 24*time.Hour)
	defer func() {
		if err := resultBackend.Close(); err != nil {
			workerLog.Error("failed to close result backend", "error", err)
		}
	}()

	handlers := handler.NewRegistry()
	// TODO: replace example handlers with real ones registered against
	// your own queue names.
	handlers.Register("default", handler.HandleDefault)
	handlers.Register("image_processing", handler.HandleImageProcessing)
	handlers.Register("email", handler.HandleEmail)
	handlers.Register("billing", handler.HandleBilling)
	workerLog.Info("registered job handlers", "count", handlers.Count())

	descriptors := queue.DefaultDescriptors()
	registry, err := queue.NewRegistry(descriptors...)
	if err != nil {
		workerLog.Error("failed to build queue registry", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bindings := make([]worker.Binding, 0, len(registry.List()))
	for _, d := range registry.List() {
		b, err := worker.NewBinding(ctx, s, handlers, d)
		if err != nil {
			workerLog.Error("failed to bind queue", "queue", d.Name, "error", err)
			os.Exit(1)
		}
		b.Processor.WithResultBackend(resultBackend)
		bindings = append(bindings, b)
	}

	pool := worker.NewPool(s, bindings)
	pool.Start(ctx, cfg.WorkerConcurrency)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m := metrics.Default().GetMetrics()
				workerLog.Info("system metrics",
					"jobs_processed", m.TotalJobsProcessed,
					"jobs_completed", m.TotalJobsCompleted,
					"jobs_failed", m.TotalJobsFailed,
					"duplicates", m.TotalDuplicates,
					"dlq_appends", m.TotalDLQAppends,
					"uptime", m.Uptime.String())
			}
		}
	}()

	sig := <-sigChan
	workerLog.Info("received shutdown signal, initiating graceful shutdown", "signal", sig)
	cancel()
	pool.Stop()
	workerLog.Info("worker shut down successfully")
}
