// Command gridbench times repeated reads of one archive array,
// sequentially and in parallel, optionally against a local mirror and
// through the chunk cache. It writes pprof CPU, mutex, and block
// profiles per scenario, which is where contention on shared state
// shows up when parallel reads do not scale.
//
// Usage:
//
//	go run ./cmd/gridbench \
//	  -bucket 's3://hrrrzarr?region=us-west-1' \
//	  -local 'file:///var/data/hrrr?metadata=skip' \
//	  -run 2020080106 -var TMP -parallel 8 -profiles ./profiles
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
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/bench"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/hrrr"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/observability"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/zarr"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

type scenario struct {
	name  string
	store zarr.Store
	opts  bench.Options
}

func run() error {
	bucketURL := flag.String("bucket", "s3://hrrrzarr?region=us-west-1", "archive bucket URL")
	localURL := flag.String("local", "", "optional mirror bucket URL to compare against the archive")
	runArg := flag.String("run", "", "cycle to read, yyyymmddhh or RFC 3339")
	kindName := flag.String("kind", "anl", "product kind: anl or fcst")
	level := flag.String("level", "2m_above_ground", "level name")
	variable := flag.String("var", "TMP", "variable name")
	reads := flag.Int("reads", 8, "full-array reads per scenario")
	parallel := flag.Int("parallel", 4, "concurrent readers in the parallel scenarios")
	fetch := flag.Int("fetch", 0, "chunk fetch concurrency per read; 0 keeps the array default")
	cacheSize := flag.Int("cache", 0, "chunk cache entries; 0 benchmarks uncached reads")
	profileDir := flag.String("profiles", "", "directory for pprof profiles; empty disables profiling")
	flag.Parse()

	if *runArg == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -run")
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
	node := r.Root() + "/" + hrrr.DataNode(*level, *variable)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	buckets := []struct {
		label string
		url   string
	}{{"remote", *bucketURL}}
	if *localURL != "" {
		buckets = append(buckets, struct{ label, url string }{"local", *localURL})
	}

	var scenarios []scenario
	for _, b := range buckets {
		bucket, err := objstore.Open(ctx, b.url)
		if err != nil {
			return err
		}
		defer bucket.Close()

		var store zarr.Store = bucket
		if *cacheSize > 0 {
			store = objstore.NewCachedStore(store, *cacheSize, metrics)
		}
		seq := bench.Options{Reads: *reads, Parallel: 1, FetchLimit: *fetch}
		par := bench.Options{Reads: *reads, Parallel: *parallel, FetchLimit: *fetch}
		scenarios = append(scenarios,
			scenario{name: b.label + "-seq", store: store, opts: seq},
			scenario{name: b.label + "-par", store: store, opts: par},
		)
	}

	logger.Info("benchmarking array reads", "node", node,
		"reads", *reads, "parallel", *parallel, "cache", *cacheSize)

	for _, sc := range scenarios {
		result, err := timeScenario(ctx, sc, node, *profileDir)
		if err != nil {
			return err
		}
		fmt.Println(result)
	}
	return nil
}

// timeScenario runs one scenario with profiling around it when a
// profile directory is set. Scenarios run one at a time because the
// mutex and block profile rates are process-global.
func timeScenario(ctx context.Context, sc scenario, node, profileDir string) (*bench.Result, error) {
	if profileDir == "" {
		return bench.TimeReads(ctx, sc.name, sc.store, node, sc.opts)
	}

	profiles, err := bench.StartProfiles(profileDir, sc.name)
	if err != nil {
		return nil, err
	}
	result, err := bench.TimeReads(ctx, sc.name, sc.store, node, sc.opts)
	if stopErr := profiles.Stop(); stopErr != nil && err == nil {
		err = stopErr
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
