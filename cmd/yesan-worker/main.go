package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"yesan/internal/amqp"
	"yesan/internal/backend"
	"yesan/internal/cli"
	"yesan/internal/config"
	applog "yesan/internal/log"
	"yesan/internal/mirror"
	"yesan/internal/services"
	"yesan/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig(applog.ComponentWorker)
	logger.Info("Starting yesan-worker")

	if cfg.MirrorBackend == config.MirrorNone {
		logger.Error("The worker needs a mirror backend", "mirror", cfg.MirrorBackend)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := cli.SignalContext()
	defer stop()

	f := backend.NewFactory(logger)
	budget, err := f.Budget(cfg)
	if err != nil {
		return err
	}
	repo, err := f.Repository(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()
	remote, err := f.Mirror(ctx, cfg)
	if err != nil {
		return err
	}

	// The worker shares the server's database; it never notifies anyone,
	// the server's messages drive the syncer.
	expenses := services.NewExpenseService(repo, budget,
		services.WithUploader(remote),
		services.WithLogger(logger))
	syncer := mirror.NewSyncer(expenses, remote, mirror.Config{Debounce: cfg.SyncDebounce}, logger)
	if err := syncer.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer client.Close()

	w := worker.NewSyncWorker(syncer, logger)
	consumeErr := client.Consume(ctx, w.HandleSyncMessage)

	logger.Info("Shutting down worker...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := syncer.Sync(shutdownCtx); err != nil && !errors.Is(err, mirror.ErrNotLoaded) {
		logger.Error("Final mirror push failed", applog.FieldError, err)
	}
	if err := syncer.Stop(shutdownCtx); err != nil {
		logger.Warn("Shutdown timeout reached", applog.FieldError, err)
	}
	return consumeErr
}
