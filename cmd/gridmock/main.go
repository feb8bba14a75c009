// Command gridmock writes a synthetic archive into a local directory,
// laid out exactly like the production bucket: one run root per cycle,
// consolidated variable groups, float16 chunks. Tests and local
// services point at it with a file:// bucket URL.
//
// Usage:
//
//	go run ./cmd/gridmock \
//	  -dir ./data/mock -start 2020080100 -runs 6 -vars TMP,DPT,REFC
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/hrrr-zarr-analysis/internal/adapter/objstore"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/hrrr"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dir := flag.String("dir", "", "output directory for the mock archive")
	start := flag.String("start", "2020080100", "first cycle, yyyymmddhh or RFC 3339")
	runs := flag.Int("runs", 6, "number of consecutive cycles")
	kindName := flag.String("kind", "anl", "product kind: anl or fcst")
	vars := flag.String("vars", "TMP,DPT", "comma-separated variables; levels come from the catalog")
	ny := flag.Int("ny", 24, "grid rows")
	nx := flag.Int("nx", 32, "grid columns")
	leads := flag.Int("leads", 2, "stored forecast leads, fcst only")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -dir")
	}

	startTime, err := hrrr.ParseCycleTime(*start)
	if err != nil {
		return err
	}
	kind, err := hrrr.ParseKind(*kindName)
	if err != nil {
		return err
	}

	type target struct{ level, variable string }
	var targets []target
	for _, v := range strings.Split(*vars, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		level, variable := "", v
		if i := strings.IndexByte(v, '/'); i >= 0 {
			level, variable = v[:i], v[i+1:]
		} else if l, ok := hrrr.DefaultLevel(variable); ok {
			level = l
		} else {
			return fmt.Errorf("variable %q not in the catalog; use level/NAME", variable)
		}
		targets = append(targets, target{level, variable})
	}
	if len(targets) == 0 {
		return fmt.Errorf("no variables to write")
	}

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		return err
	}
	abs, err := filepath.Abs(*dir)
	if err != nil {
		return err
	}
	url := "file://" + abs + "?metadata=skip"

	ctx := context.Background()
	bucket, err := objstore.Open(ctx, url)
	if err != nil {
		return err
	}
	defer bucket.Close()

	for _, r := range hrrr.Runs(startTime, *runs, kind) {
		for _, tgt := range targets {
			spec := hrrr.SampleSpec{
				Run:      r,
				Level:    tgt.level,
				Variable: tgt.variable,
				NY:       *ny,
				NX:       *nx,
				Leads:    *leads,
			}
			if err := hrrr.WriteSampleRun(ctx, bucket, spec); err != nil {
				return err
			}
		}
		log.Printf("%s: %d variable groups", r, len(targets))
	}

	log.Printf("mock archive ready: %s", url)
	return nil
}
