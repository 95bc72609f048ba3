package main

import (
	"context"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/guileen/respool/api"
	"github.com/guileen/respool/config"
	"github.com/guileen/respool/logger"
	"github.com/guileen/respool/manager"
)

func main() {
	startTime := time.Now()
	logger.Info("Starting respool diagnostics server", "startup_time", startTime.Format(time.RFC3339))

	cfg := config.Load()
	logger.Info("Configuration loaded",
		"max_pool_size_bytes", cfg.MaxPoolSizeBytes,
		"high_watermark", cfg.HighWaterMark,
		"low_watermark", cfg.LowWaterMark,
		"max_idle_time", cfg.MaxIdleTime.String(),
		"max_resource_count", cfg.MaxResourceCount,
		"eviction_policy", string(cfg.EvictionPolicy),
	)

	var opts []manager.Option
	if os.Getenv("RESPOOL_TRACE_ALLOCATIONS") != "" {
		logger.Info("Allocation tracing enabled")
		opts = append(opts, manager.WithAllocationTracing())
	}

	mgr, err := manager.New(cfg, opts...)
	if err != nil {
		logger.Error("Failed to create resource manager", "error", err)
		log.Fatalf("failed to create resource manager: %v", err)
	}

	restHandler := api.NewRESTHandler(mgr)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Register pprof handlers for profiling
	r.HandleFunc("/debug/pprof/", pprof.Index)
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	r.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	r.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	r.Handle("/debug/pprof/allocs", pprof.Handler("allocs"))
	r.Handle("/debug/pprof/block", pprof.Handler("block"))
	r.Handle("/debug/pprof/mutex", pprof.Handler("mutex"))

	restHandler.RegisterRoutes(r)

	port := ":8080"
	if p := os.Getenv("PORT"); p != "" {
		port = ":" + p
	}

	server := &http.Server{
		Addr:    port,
		Handler: r,
	}

	go func() {
		logger.Info("HTTP server listening", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed to start", "error", err, "port", port)
			log.Fatalf("HTTP server failed to start: %v", err)
		}
	}()

	// Periodic maintenance drives idle eviction while the server runs
	maintenanceInterval := 30 * time.Second
	if cfg.MaxIdleTime > 0 && cfg.MaxIdleTime < maintenanceInterval {
		maintenanceInterval = cfg.MaxIdleTime
	}
	stopMaintenance := make(chan struct{})
	go func() {
		ticker := time.NewTicker(maintenanceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := mgr.PerformMaintenance(); err != nil {
					logger.Warn("Maintenance pass failed", "error", err)
				}
			case <-stopMaintenance:
				return
			}
		}
	}()

	initDuration := time.Since(startTime)
	logger.Info("Server initialization complete", "init_duration", initDuration.String())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownStart := time.Now()
	logger.Info("Shutting down...", "shutdown_start", shutdownStart.Format(time.RFC3339))
	close(stopMaintenance)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	if err := mgr.Close(); err != nil {
		logger.Error("Resource manager shutdown failed", "error", err)
	}

	shutdownDuration := time.Since(shutdownStart)
	logger.Info("Shutdown complete", "shutdown_duration", shutdownDuration.String())
}
