package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mailbrief/config"
	"mailbrief/internal/bootstrap"
	"mailbrief/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Service: "mailbrief",
	})

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}
	logger.Init(logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Service: "mailbrief",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies: %v", err)
	}
	defer cleanup()

	if !cfg.SchedulerEnabled {
		logger.Info("Scheduler disabled by config, exiting")
		return
	}

	if err := deps.Scheduler.Start(ctx); err != nil {
		logger.Fatal("Failed to start scheduler: %v", err)
	}

	logger.Info("mailbrief worker %s started", cfg.WorkerID)
	<-ctx.Done()
	logger.Info("Shutting down (timeout: %v)...", shutdownTimeout)

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		deps.Scheduler.Stop(stopCtx)
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Shut down gracefully")
	case <-stopCtx.Done():
		logger.Warn("Shutdown timed out, forcing exit")
		os.Exit(1)
	}
}
