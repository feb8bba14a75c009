// Command gridsync mirrors an archive subtree into another bucket,
// usually a local file bucket, so repeated reads stay off the network.
//
// Usage:
//
//	go run ./cmd/gridsync \
//	  -src 's3://hrrrzarr?region=us-west-1' \
//	  -dst 'file:///var/data/hrrr?metadata=skip' \
//	  -run 2020080106 -level 2m_above_ground -var TMP -verify
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
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/hrrr"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/mirror"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	srcURL := flag.String("src", "s3://hrrrzarr?region=us-west-1", "source bucket URL")
	dstURL := flag.String("dst", "", "destination bucket URL")
	prefix := flag.String("prefix", "", "key prefix to mirror; overrides -run")
	runArg := flag.String("run", "", "cycle to mirror, yyyymmddhh or RFC 3339")
	kindName := flag.String("kind", "anl", "product kind: anl or fcst")
	level := flag.String("level", "", "mirror a single variable group: its level")
	variable := flag.String("var", "", "mirror a single variable group: its variable")
	workers := flag.Int("workers", mirror.DefaultWorkers, "concurrent object copies")
	overwrite := flag.Bool("overwrite", false, "copy objects even when sizes already match")
	verify := flag.Bool("verify", false, "byte-compare the mirror after copying")
	flag.Parse()

	if *dstURL == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -dst")
	}

	p := *prefix
	if p == "" {
		if *runArg == "" {
			flag.Usage()
			return fmt.Errorf("set -prefix or -run")
		}
		t, err := hrrr.ParseCycleTime(*runArg)
		if err != nil {
			return err
		}
		kind, err := hrrr.ParseKind(*kindName)
		if err != nil {
			return err
		}
		r := hrrr.NewRun(t, kind)
		if *level != "" && *variable != "" {
			p = r.GroupPath(*level, *variable) + "/"
		} else {
			p = r.Root() + "/"
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := objstore.Open(ctx, *srcURL)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := objstore.Open(ctx, *dstURL)
	if err != nil {
		return err
	}
	defer dst.Close()

	opts := mirror.Options{Workers: *workers, Overwrite: *overwrite}
	if _, err := mirror.Copy(ctx, src, dst, p, opts, logger); err != nil {
		return err
	}

	if *verify {
		report, err := mirror.Verify(ctx, src, dst, p, *workers)
		if err != nil {
			return err
		}
		if !report.OK() {
			for _, key := range report.Missing {
				logger.Error("missing from mirror", "key", key)
			}
			for _, key := range report.Mismatched {
				logger.Error("mirror bytes differ", "key", key)
			}
			return fmt.Errorf("verify failed: %d missing, %d mismatched of %d",
				len(report.Missing), len(report.Mismatched), report.Checked)
		}
		logger.Info("verify passed", "objects", report.Checked)
	}
	return nil
}
