package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/hrrr-zarr-analysis/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/hrrr-zarr-analysis/internal/adapter/kafka"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/adapter/objstore"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/config"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/hrrr"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/observability"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/watch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bucket, err := objstore.Open(ctx, cfg.BucketURL)
	if err != nil {
		logger.Error("failed to open archive bucket", "url", cfg.BucketURL, "error", err)
		os.Exit(1)
	}
	defer bucket.Close()

	kinds := make([]hrrr.Kind, 0, len(cfg.WatchKinds))
	for _, s := range cfg.WatchKinds {
		kind, err := hrrr.ParseKind(s)
		if err != nil {
			logger.Error("invalid watch kind", "error", err)
			os.Exit(1)
		}
		kinds = append(kinds, kind)
	}

	publisher := kafkaadapter.NewPublisher(cfg, logger)
	store := objstore.NewInstrumentedStore(bucket, metrics)
	watcher := watch.New(store, publisher, logger, metrics, watch.Options{
		Interval: cfg.WatchInterval,
		Kinds:    kinds,
		Source:   cfg.BucketURL,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, watcher, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start run watcher.
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Error("watcher error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := publisher.Close(); err != nil {
		logger.Error("kafka publisher close error", "error", err)
	}

	logger.Info("shutdown complete")
}
