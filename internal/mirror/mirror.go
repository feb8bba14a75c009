// Package mirror copies Zarr subtrees between object stores. Pulling a
// run to a local bucket before repeated reads turns every later chunk
// fetch into a disk read, which is the usual setup for benchmarking
// and for iterating on an analysis offline.
package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/hrrr-zarr-analysis/internal/adapter/objstore"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/zarr"
)

// DefaultWorkers is the copy concurrency used when the caller does not
// choose one.
const DefaultWorkers = 8

// Options tune a copy.
type Options struct {
	Workers   int  // concurrent object copies
	Overwrite bool // copy even when the destination size already matches
}

// Stats reports what one copy did.
type Stats struct {
	Copied  int
	Skipped int
	Bytes   int64 // bytes written, not counting skipped objects
}

// Copy mirrors every object under prefix from src to dst. Objects
// whose destination size already matches are skipped unless Overwrite
// is set; sizes catch partial earlier copies, not corruption, which is
// Verify's job.
func Copy(ctx context.Context, src, dst *objstore.Bucket, prefix string, opts Options, logger *slog.Logger) (Stats, error) {
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers
	}

	var objects []objstore.ObjectInfo
	err := src.List(ctx, prefix, func(info objstore.ObjectInfo) error {
		objects = append(objects, info)
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	if len(objects) == 0 {
		return Stats{}, fmt.Errorf("no objects under %q in %s", prefix, src.URL())
	}

	var copied, skipped, bytesCopied atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, obj := range objects {
		g.Go(func() error {
			if !opts.Overwrite {
				size, err := dst.Size(gctx, obj.Key)
				switch {
				case err == nil && size == obj.Size:
					skipped.Add(1)
					return nil
				case err != nil && !errors.Is(err, zarr.ErrNotFound):
					return err
				}
			}
			data, err := src.Get(gctx, obj.Key)
			if err != nil {
				return err
			}
			if err := dst.Put(gctx, obj.Key, data); err != nil {
				return err
			}
			copied.Add(1)
			bytesCopied.Add(int64(len(data)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Copied:  int(copied.Load()),
		Skipped: int(skipped.Load()),
		Bytes:   bytesCopied.Load(),
	}
	logger.Info("mirror complete", "prefix", prefix,
		"copied", stats.Copied, "skipped", stats.Skipped, "bytes", stats.Bytes)
	return stats, nil
}

// Report is the outcome of a verification pass.
type Report struct {
	Checked    int
	Missing    []string // keys absent from the destination
	Mismatched []string // keys whose bytes differ
}

// OK reports whether the destination holds every source object
// byte-for-byte.
func (r *Report) OK() bool {
	return len(r.Missing) == 0 && len(r.Mismatched) == 0
}

// Verify re-reads every object under prefix from both sides and
// byte-compares them.
func Verify(ctx context.Context, src, dst *objstore.Bucket, prefix string, workers int) (*Report, error) {
	if workers < 1 {
		workers = DefaultWorkers
	}

	var keys []string
	err := src.List(ctx, prefix, func(info objstore.ObjectInfo) error {
		keys = append(keys, info.Key)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	report := &Report{Checked: len(keys)}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, key := range keys {
		g.Go(func() error {
			want, err := src.Get(gctx, key)
			if err != nil {
				return err
			}
			got, err := dst.Get(gctx, key)
			if errors.Is(err, zarr.ErrNotFound) {
				mu.Lock()
				report.Missing = append(report.Missing, key)
				mu.Unlock()
				return nil
			}
			if err != nil {
				return err
			}
			if !bytes.Equal(want, got) {
				mu.Lock()
				report.Mismatched = append(report.Mismatched, key)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(report.Missing)
	sort.Strings(report.Mismatched)
	return report, nil
}
