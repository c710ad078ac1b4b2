package main

import (
	"context"
	"os"
	"time"

	"github.com/MikeAA97/IPAM-Prefix-Allocator/internal/ipam"
	"github.com/MikeAA97/IPAM-Prefix-Allocator/internal/ipam/config"
	"github.com/MikeAA97/IPAM-Prefix-Allocator/internal/shared/logger"
	_ "github.com/mattn/go-sqlite3"
)

const version = "1.0.0"

func main() {
	ctx := context.Background()

	// Initialize logger first
	log := logger.NewProduction("ipamd", version)
	log.InfoContext(ctx, "starting ipamd", "version", version)

	// Load configuration
	loader := config.NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		log.ErrorCtx(ctx, "failed to load configuration", err)
		os.Exit(1)
	}

	// Update logger with configured settings
	log = logger.New(logger.Config{
		Level:     logger.LogLevel(cfg.Log.Level),
		Format:    logger.OutputFormat(cfg.Log.Format),
		Component: "ipamd",
		Version:   version,
	})
	log.DebugContext(ctx, "configuration loaded successfully")

	// Create service instance
	service, err := ipam.NewService(cfg, version, log)
	if err != nil {
		log.ErrorCtx(ctx, "failed to create service", err)
		os.Exit(1)
	}

	// Start service with proper error handling
	if err := service.Start(ctx); err != nil {
		log.ErrorCtx(ctx, "failed to start service", err)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if stopErr := service.Stop(shutdownCtx); stopErr != nil {
			log.ErrorCtx(ctx, "failed to cleanup service after startup failure", stopErr)
		}

		os.Exit(1)
	}

	// Blocks until SIGINT/SIGTERM; the service handles signal registration
	// and graceful shutdown internally
	service.WaitForShutdown()

	log.InfoContext(ctx, "main process exiting")
}
