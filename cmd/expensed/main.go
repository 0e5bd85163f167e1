package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mispesos/engine/internal/common"
	"github.com/mispesos/engine/internal/export"
	"github.com/mispesos/engine/internal/inference"
	"github.com/mispesos/engine/internal/interpret"
	"github.com/mispesos/engine/internal/metrics"
	"github.com/mispesos/engine/internal/recognize"
	"github.com/mispesos/engine/internal/server"
	"github.com/mispesos/engine/internal/storage"
	"github.com/mispesos/engine/internal/taskqueue"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("config.invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store storage.RecordStore
	var err error
	switch cfg.Storage.Driver {
	case "postgres":
		var pg *storage.PostgresStore
		pg, err = storage.OpenPostgres(ctx, storage.PostgresConfig{
			DSN:             cfg.Storage.DSN,
			MaxConns:        cfg.Storage.MaxConns,
			MinConns:        cfg.Storage.MinConns,
			MaxConnLifetime: cfg.Storage.MaxConnLifetime,
			MaxConnIdleTime: cfg.Storage.MaxConnIdleTime,
			DialTimeout:     cfg.Storage.DialTimeout,
		}, logger)
		if err == nil {
			if err = pg.HealthCheck(ctx, cfg.Storage.DialTimeout); err != nil {
				logger.Error("storage.health.failed", "error", err)
				os.Exit(1)
			}
			store = pg
		}
	default:
		store, err = storage.OpenSQLite(ctx, cfg.Storage.DSN, logger)
	}
	if err != nil {
		logger.Error("storage.open.failed", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	client := inference.NewClient(inference.Config{
		BaseURL:     cfg.Inference.URL,
		Model:       cfg.Inference.Model,
		Temperature: cfg.Inference.Temperature,
		Timeout:     cfg.Inference.Timeout,
	}, logger)
	if err := client.Ping(ctx); err != nil {
		// The pattern fallback keeps interpretation available without it.
		logger.Warn("inference.unreachable", "url", cfg.Inference.URL, "error", err)
	}

	pattern := interpret.NewPatternExtractor(interpret.PatternConfig{
		FoundConfidence: cfg.Interpret.FallbackConfidence,
		MissConfidence:  cfg.Interpret.MissConfidence,
	})
	retrier := interpret.NewRetryingInterpreter(client, pattern, interpret.RetryConfig{
		MaxRetries:       cfg.Inference.MaxRetries,
		BaseDelay:        cfg.Inference.BaseDelay,
		AcceptConfidence: cfg.Interpret.AcceptConfidence,
	}, logger)
	cache := interpret.NewResponseCache(
		interpret.WithTTL(cfg.Interpret.CacheTTL),
		interpret.WithMaxEntries(cfg.Interpret.CacheMaxEntries),
		interpret.WithMinConfidence(cfg.Interpret.AcceptConfidence),
	)
	agg := metrics.NewAggregator(logger, metrics.WithResetInterval(cfg.Metrics.ResetInterval))
	interp := interpret.NewInterpreter(cache, retrier, agg, logger)

	recognizer := recognize.NewTesseract(recognize.Config{
		Bin:       cfg.Recognition.TesseractBin,
		Languages: cfg.Recognition.Languages,
	}, nil, logger)

	queue := taskqueue.New(recognizer, interp, store, logger,
		taskqueue.WithWorkers(cfg.Queue.Workers),
		taskqueue.WithQueueSize(cfg.Queue.Size),
		taskqueue.WithTaskTimeout(cfg.Queue.TaskTimeout),
	)

	exporter := export.NewService(store, logger)

	srv := server.New(interp, queue, exporter, agg, logger, server.Config{
		MaxImageBytes: cfg.Queue.MaxImageBytes,
	})

	go func() {
		logger.Info("http.listen", "addr", cfg.Server.Addr)
		if err := srv.Start(cfg.Server.Addr); err != nil && err != http.ErrServerClosed {
			logger.Error("http.serve.failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown.begin")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http.shutdown.failed", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	logger.Info("shutdown.done")
}
