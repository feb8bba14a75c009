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
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/adapter/objstore"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/analysis"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/config"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/observability"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/render"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/zarr"
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

	// Reads pass through the cache first, then the global fetch limit,
	// then the fetch counters, so cache hits never spend a permit.
	var store zarr.Store = objstore.NewInstrumentedStore(bucket, metrics)
	store = objstore.NewLimitedStore(store, cfg.FetchConcurrency)
	store = objstore.NewCachedStore(store, cfg.ChunkCacheSize, metrics)

	svc := analysis.New(store, logger, metrics)
	srv := httpadapter.NewAnalysisServer(cfg.HTTPAddr, bucket, svc,
		render.DefaultStyle(), cfg.RequestTimeout, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	logger.Info("analysis server started",
		"addr", cfg.HTTPAddr,
		"bucket", cfg.BucketURL,
		"fetch_concurrency", cfg.FetchConcurrency,
		"chunk_cache_size", cfg.ChunkCacheSize)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
