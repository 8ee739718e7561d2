package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"guida/internal/aggregate"
	"guida/internal/amqp"
	"guida/internal/cache"
	"guida/internal/cli"
	apphttp "guida/internal/http"
	applog "guida/internal/log"
	"guida/internal/services"
)

func main() {
	cfg, logger := cli.MustLoadConfig()
	logger.Info("Starting guida server", "backend", cfg.DataBackend, "port", cfg.Port)

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	be, err := cli.OpenBackend(startCtx, cfg, logger, false)
	startCancel()
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	summaries := cache.NewLRUCache[aggregate.Summary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
	cacheManager := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	cacheManager.Register(summaries)
	cacheManager.StartCleanup(time.Minute)

	// AMQP is optional: without it refresh requests answer 503.
	var amqpClient *amqp.Client
	var publisher services.RefreshPublisher
	if cfg.AMQPEnabled() {
		connectCtx, connectCancel := context.WithTimeout(context.Background(), 30*time.Second)
		amqpClient, err = amqp.NewClient(connectCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		connectCancel()
		if err != nil {
			logger.Warn("AMQP unavailable, refresh requests disabled", "error", err)
			amqpClient = nil
		} else {
			publisher = amqpClient
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	analytics := services.NewAnalyticsService(be.Source, services.AnalyticsOptions{
		Cache:     summaries,
		Store:     be.Store,
		Publisher: publisher,
		Location:  cfg.Location(),
		Logger:    logger,
	})

	srv := apphttp.NewServer(apphttp.Options{
		Addr:             ":" + cfg.Port,
		Analytics:        analytics,
		Store:            be.Store,
		Ready:            be.Ping,
		CacheStats:       summaries.Stats,
		Logger:           logger,
		RateLimitRPM:     cfg.RateLimitRPM,
		DefaultRangeDays: cfg.DefaultRangeDays,
	})

	ctx, _, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
		if err := be.Close(); err != nil {
			logger.Error("Backend close error", "error", err)
		}
	})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
