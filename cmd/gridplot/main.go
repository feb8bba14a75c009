// Command gridplot reduces a window of archive cycles to a single
// statistic field and renders it as a filled-contour PNG, optionally
// exporting the reduced grid to NetCDF.
//
// Usage:
//
//	go run ./cmd/gridplot \
//	  -bucket 's3://hrrrzarr?region=us-west-1' \
//	  -var TMP -start 2020080106 -hours 4 -stat std \
//	  -out tmp_std.png -netcdf tmp_std.nc
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/hrrr-zarr-analysis/internal/adapter/objstore"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/analysis"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/export"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/grid"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/hrrr"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/observability"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/render"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/zarr"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	bucketURL := flag.String("bucket", "s3://hrrrzarr?region=us-west-1", "archive bucket URL")
	variable := flag.String("var", "", "variable name, e.g. TMP")
	level := flag.String("level", "", "level name; defaults to the variable's catalog level")
	start := flag.String("start", "", "first cycle, yyyymmddhh or RFC 3339")
	hours := flag.Int("hours", 4, "number of consecutive cycles")
	kindName := flag.String("kind", "anl", "product kind: anl or fcst")
	lead := flag.Int("lead", 0, "forecast lead hour, fcst only")
	statName := flag.String("stat", "std", "reduction: mean or std")
	out := flag.String("out", "", "output PNG path")
	ncOut := flag.String("netcdf", "", "optional NetCDF output path")
	stylePath := flag.String("style", "", "TOML style file; empty uses the built-in style")
	cmap := flag.String("cmap", "", "colormap override")
	cacheSize := flag.Int("cache", 256, "chunk cache entries")
	fetch := flag.Int("fetch", 8, "concurrent chunk fetches against the bucket")
	flag.Parse()

	if *variable == "" || *start == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -var, -start")
	}
	if *out == "" && *ncOut == "" {
		return fmt.Errorf("nothing to write: set -out and/or -netcdf")
	}

	startTime, err := hrrr.ParseCycleTime(*start)
	if err != nil {
		return err
	}
	kind, err := hrrr.ParseKind(*kindName)
	if err != nil {
		return err
	}
	stat, err := grid.ParseStat(*statName)
	if err != nil {
		return err
	}

	style := render.DefaultStyle()
	if *stylePath != "" {
		if style, err = render.LoadStyle(*stylePath); err != nil {
			return err
		}
	}
	if *cmap != "" {
		style.Colormap = *cmap
		if err := style.Validate(); err != nil {
			return err
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bucket, err := objstore.Open(ctx, *bucketURL)
	if err != nil {
		return err
	}
	defer bucket.Close()

	var store zarr.Store = objstore.NewInstrumentedStore(bucket, metrics)
	store = objstore.NewLimitedStore(store, *fetch)
	store = objstore.NewCachedStore(store, *cacheSize, metrics)

	svc := analysis.New(store, logger, metrics)
	result, err := svc.Reduce(ctx, analysis.Request{
		Variable: *variable,
		Level:    *level,
		Kind:     kind,
		Start:    startTime,
		Hours:    *hours,
		Lead:     *lead,
		Stat:     stat,
	})
	if err != nil {
		return err
	}

	s := result.Summary
	logger.Info("reduction finished",
		"cells", s.Count, "nan", s.NaN,
		"min", s.Min, "max", s.Max, "mean", s.Mean)

	if *out != "" {
		data, err := render.FieldPNG(ctx, result.Field, style)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", *out, err)
		}
		logger.Info("wrote plot", "path", *out, "bytes", len(data))
	}

	if *ncOut != "" {
		if err := export.WriteNetCDF(ctx, *ncOut, result.Reduced); err != nil {
			return err
		}
		logger.Info("wrote netcdf", "path", *ncOut)
	}
	return nil
}
