// Package bench times repeated reads of one archive array and captures
// runtime profiles around them. Reading the same array from the remote
// archive and from a local mirror, sequentially and in parallel, is
// how slow-read reports get narrowed down to network, decompression,
// or lock contention.
package bench

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/hrrr-zarr-analysis/internal/zarr"
)

// Options tune one scenario.
type Options struct {
	Reads      int // total full-array reads; default 8
	Parallel   int // concurrent readers; default 1
	FetchLimit int // chunk-fetch concurrency within one read; 0 keeps the array default
}

func (o Options) withDefaults() Options {
	if o.Reads < 1 {
		o.Reads = 8
	}
	if o.Parallel < 1 {
		o.Parallel = 1
	}
	return o
}

// Result aggregates the timings of one scenario.
type Result struct {
	Name     string
	Reads    int
	Parallel int
	Elems    int // elements per read
	Chunks   int // chunk objects per read

	Wall time.Duration // whole-scenario wall time
	Min  time.Duration
	Mean time.Duration
	Max  time.Duration
}

// String formats the result as one report line.
func (r *Result) String() string {
	return fmt.Sprintf("%-16s %3d reads x %2d readers  wall=%-10v min=%-10v mean=%-10v max=%v",
		r.Name, r.Reads, r.Parallel, r.Wall.Round(time.Microsecond),
		r.Min.Round(time.Microsecond), r.Mean.Round(time.Microsecond),
		r.Max.Round(time.Microsecond))
}

// TimeReads opens the array at path and reads it opts.Reads times
// through opts.Parallel concurrent readers, timing each full read.
func TimeReads(ctx context.Context, name string, store zarr.Store, path string, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	arr, err := zarr.OpenArray(ctx, store, path)
	if err != nil {
		return nil, err
	}
	if opts.FetchLimit > 0 {
		arr.FetchLimit = opts.FetchLimit
	}

	durations := make([]time.Duration, opts.Reads)
	begin := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallel)
	for i := range durations {
		g.Go(func() error {
			start := time.Now()
			if _, err := arr.Read(gctx); err != nil {
				return err
			}
			durations[i] = time.Since(start)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}

	result := &Result{
		Name:     name,
		Reads:    opts.Reads,
		Parallel: opts.Parallel,
		Elems:    arr.Size(),
		Chunks:   arr.NumChunks(),
		Wall:     time.Since(begin),
		Min:      durations[0],
		Max:      durations[0],
	}
	var total time.Duration
	for _, d := range durations {
		total += d
		if d < result.Min {
			result.Min = d
		}
		if d > result.Max {
			result.Max = d
		}
	}
	result.Mean = total / time.Duration(len(durations))
	return result, nil
}
