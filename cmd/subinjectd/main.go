package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/subinject/subinject/internal/cache"
	"github.com/subinject/subinject/internal/config"
	"github.com/subinject/subinject/internal/fetch"
	"github.com/subinject/subinject/internal/logging"
	"github.com/subinject/subinject/internal/metrics"
	"github.com/subinject/subinject/internal/provider"
	"github.com/subinject/subinject/internal/server"
	"github.com/subinject/subinject/internal/store"
	"github.com/subinject/subinject/internal/tracing"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}

	// Initialize tracing
	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint)
		if err != nil {
			logger.Fatalf("Failed to initialize tracing: %v", err)
		}
		defer closer.Close()
	}

	// Initialize artifact store
	artifacts, err := store.New(cfg.Store)
	if err != nil {
		logger.Fatalf("Failed to initialize artifact store: %v", err)
	}

	// Initialize fetch cache
	var sourceCache *cache.Cache
	if cfg.Cache.Enabled {
		sourceCache, err = cache.New(cfg.Cache)
		if err != nil {
			logger.Fatalf("Failed to connect to fetch cache: %v", err)
		}
		defer sourceCache.Close()
	}

	fetcher := fetch.New(cfg.Fetch)
	builder := provider.New(cfg.Server, fetcher, sourceCache, artifacts, logger)

	// Start the artifact server. Bind failure is fatal: there is no
	// degraded mode for the server the returned URLs point at.
	srv := server.New(cfg.Server, artifacts, builder, logger)
	if err := srv.Start(); err != nil {
		logger.Fatalf("Failed to start artifact server: %v", err)
	}

	// Start the metrics server
	var metricsSrv *metrics.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metrics.NewServer(cfg.Metrics.Port, logger)
		go func() {
			if err := metricsSrv.Start(); err != nil {
				logger.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	logger.Infof("subinjectd ready on %s:%d", cfg.Server.Host, cfg.Server.Port)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		logger.WithError(err).Error("Artifact server shutdown failed")
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("Metrics server shutdown failed")
		}
	}

	logger.Info("Stopped")
}
