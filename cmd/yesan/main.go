package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"yesan/internal/amqp"
	"yesan/internal/backend"
	"yesan/internal/cache"
	"yesan/internal/cli"
	"yesan/internal/config"
	"yesan/internal/directory"
	apphttp "yesan/internal/http"
	applog "yesan/internal/log"
	"yesan/internal/mirror"
	"yesan/internal/services"
)

const maxSessions = 1000

func main() {
	cfg, logger := cli.LoadConfig(applog.ComponentApp)
	if err := run(cfg, logger); err != nil {
		logger.Error("Server error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := cli.SignalContext()
	defer stop()

	b, err := backend.NewFactory(logger).Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("Backend close failed", applog.FieldError, err)
		}
	}()

	sessions := cache.NewLRUCache[directory.Session](maxSessions, cfg.SessionTTL)
	caches := cache.NewManager()
	caches.Register("sessions", sessions)
	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()

	dir := directory.NewService(b.Directory.Data,
		directory.WithTitleSource(b.Directory.Title),
		directory.WithAsOf(cfg.DirectoryAsOf),
		directory.WithLogger(logger))
	gate := directory.NewGate(b.Directory.Secret, sessions, logger)

	opts := []services.Option{services.WithLogger(logger)}
	if b.Mirror != nil {
		opts = append(opts, services.WithUploader(b.Mirror))
	}
	expenses := services.NewExpenseService(b.Repository, b.Budget, opts...)

	var control apphttp.SyncController
	var syncer *mirror.Syncer
	switch cfg.SyncMode {
	case config.SyncAMQP:
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return fmt.Errorf("connect to broker: %w", err)
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("AMQP close failed", applog.FieldError, err)
			}
		}()
		expenses.SetNotifier(client)
		control = client
		logger.Info("Sync hand-off via AMQP", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	default:
		syncer = mirror.NewSyncer(expenses, b.Mirror, mirror.Config{Debounce: cfg.SyncDebounce}, logger)
		// The push loop outlives the signal so shutdown can flush it.
		if err := syncer.Start(context.WithoutCancel(ctx)); err != nil {
			return err
		}
		expenses.SetNotifier(syncer)
		if syncer.Enabled() {
			control = syncer
		}
	}

	// Warm the directory; a failure here only means the first search loads it.
	go func() {
		if _, err := dir.Load(ctx); err != nil {
			logger.Warn("Directory preload failed", applog.FieldError, err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Expenses:  expenses,
		Directory: dir,
		Gate:      gate,
		Sync:      control,
		Logger:    logger,
	}, apphttp.Options{
		SessionTTL:     cfg.SessionTTL,
		RequestTimeout: cfg.HTTPTimeout,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting yesan server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"directory", cfg.DirectorySource,
			"mirror", cfg.MirrorBackend,
			"sync", cfg.SyncMode)
		return srv.ListenAndServe()
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if syncer != nil {
			if serr := syncer.Sync(shutdownCtx); serr != nil && !errors.Is(serr, mirror.ErrNotLoaded) && !errors.Is(serr, mirror.ErrDisabled) {
				logger.Error("Final mirror push failed", applog.FieldError, serr)
			}
			if serr := syncer.Stop(shutdownCtx); serr != nil {
				logger.Error("Mirror syncer stop failed", applog.FieldError, serr)
			}
		}
		return err
	})
	return g.Wait()
}
