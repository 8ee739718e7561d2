package main

import (
	"context"
	"os"
	"time"

	"guida/internal/amqp"
	"guida/internal/cli"
	"guida/internal/services"
	"guida/internal/worker"
)

func main() {
	cfg, logger := cli.MustLoadConfig()
	logger.Info("Starting guida-worker", "backend", cfg.DataBackend)

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	// Snapshots live in SQLite whatever backend serves the records.
	be, err := cli.OpenBackend(startCtx, cfg, logger, true)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if be.Reports != nil {
		logger.Info("Report sheet enabled", "sheet", cfg.GoogleReportSheet)
	} else {
		logger.Info("Report sheet disabled - snapshots only")
	}

	amqpClient, err := amqp.NewClient(startCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		_ = be.Close()
		os.Exit(1)
	}

	analytics := services.NewAnalyticsService(be.Source, services.AnalyticsOptions{
		Store:    be.Store,
		Location: cfg.Location(),
		Logger:   logger,
	})
	reports := services.NewReportService(analytics, be.Snapshots, be.Reports, amqpClient, logger)
	w := worker.NewRefreshWorker(reports, amqpClient, 2*time.Minute, logger)

	ctx, stop, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Error("AMQP close error", "error", err)
		}
		if err := be.Close(); err != nil {
			logger.Error("Backend close error", "error", err)
		}
	})

	if err := w.Run(ctx); err != nil {
		logger.Error("Message consumption failed", "error", err)
		stop()
	}
	<-done
	logger.Info("Worker stopped")
}
