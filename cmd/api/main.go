// Package main provides the DisQueue HTTP submission server.
package main

import (
	"fmt"
	"net/http"
	_ "net/http/pprof" // #nosec G108 - pprof is intentionally exposed for debugging, isolated to separate port
	"os"
	"time"

	"github.com/nuulab/disqueue/internal/api"
	"github.com/nuulab/disqueue/internal/config"
	"github.com/nuulab/disqueue/internal/logger"
	"github.com/nuulab/disqueue/internal/queue"
	"github.com/nuulab/disqueue/internal/result"
	"github.com/nuulab/disqueue/internal/store"
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

	apiLog := log.WithComponent(logger.ComponentAPI).WithSource(logger.LogSourceInternal)
	apiLog.Info("api server starting",
		"redis_url", cfg.RedisURL,
		"api_port", cfg.APIPort,
		"job_timeout", cfg.JobTimeout)

	pprofPort := os.Getenv("PPROF_PORT")
	if pprofPort == "" {
		pprofPort = "6060"
	}
	go func() {
		apiLog.Info("starting pprof server", "port", pprofPort)
		pprofServer := &http.Server{
			Addr:              ":" + pprofPort,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if err := pprofServer.ListenAndServe(); err != nil {
			apiLog.Error("pprof server failed", "error", err)
		}
	}()

	s, err := store.NewRedisStore(cfg.RedisURL)
	if err != nil {
		apiLog.Error("failed to connect to broker", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := s.Close(); err != nil {
			apiLog.Error("failed to close broker connection", "error", err)
		}
	}()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		apiLog.Error("failed to parse redis url for result backend", "error", err)
		os.Exit(1)
	}
	resultBackend := result.NewRedisBackend(redis.NewClient(opts), 1*time.Hour, 24*time.Hour)
	defer func() {
		if err := resultBackend.Close(); err != nil {
			apiLog.Error("failed to close result backend", "error", err)
		}
	}()

	registry, err := queue.NewRegistry(queue.DefaultDescriptors()...)
	if err != nil {
		apiLog.Error("failed to build queue registry", "error", err)
		os.Exit(1)
	}

	srv := api.NewServer(s, registry, resultBackend, cfg.DefaultPriority)

	addr := ":" + cfg.APIPort
	apiLog.Info("api server listening", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil {
		apiLog.Error("api server failed", "error", err)
		os.Exit(1)
	}
}
