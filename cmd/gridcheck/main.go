// Command gridcheck runs integrity checks over one model run in a Zarr
// archive: hierarchy layout, array metadata, projection coordinates,
// and chunk decoding. Mirrored and generated archives can be gated on
// its exit code.
//
// Usage:
//
//	go run ./cmd/gridcheck \
//	  -bucket "file:///data/hrrr?metadata=skip" \
//	  -run 2020080106 -kind anl \
//	  -vars 2m_above_ground/TMP,surface/GUST
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/couchcryptid/hrrr-zarr-analysis/internal/adapter/objstore"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/hrrr"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/zarr"
)

// target is one variable group under inspection. Later phases skip
// targets an earlier phase could not open.
type target struct {
	level    string
	variable string

	vg  *zarr.Group
	arr *zarr.Array
}

func (t *target) name() string { return t.level + "/" + t.variable }

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	bucketURL := flag.String("bucket", "", "bucket URL (s3://, gs://, file://)")
	runArg := flag.String("run", "", "cycle time, yyyymmddhh or RFC 3339")
	kindArg := flag.String("kind", "anl", "product kind: anl or fcst")
	varsArg := flag.String("vars", "", "comma-separated level/VAR pairs; empty checks the whole catalog")
	skipData := flag.Bool("skip-data", false, "stop after the coordinate phase; do not download chunks")
	flag.Parse()

	if *bucketURL == "" || *runArg == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*bucketURL, *runArg, *kindArg, *varsArg, *skipData); code != 0 {
		os.Exit(code)
	}
}

func run(bucketURL, runArg, kindArg, varsArg string, skipData bool) int {
	ctx := context.Background()

	kind, err := hrrr.ParseKind(kindArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	cycle, err := hrrr.ParseCycleTime(runArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	r := hrrr.NewRun(cycle, kind)

	targets, err := parseTargets(varsArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	bucket, err := objstore.Open(ctx, bucketURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open bucket: %v\n", err)
		return 1
	}
	defer bucket.Close()

	fmt.Println("=== Zarr Run Integrity Validation ===")
	fmt.Printf("run %s in %s\n", r, bucketURL)

	// ── Run validation phases ──
	phases := []*phase{
		checkHierarchy(ctx, bucket, r, targets),
		checkMetadata(ctx, targets, kind),
		checkCoordinates(ctx, targets),
	}
	var cells, fill int
	if !skipData {
		p, c, f := checkData(ctx, targets)
		phases = append(phases, p)
		cells, fill = c, f
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-40s %s\n", p.name, status)
	}

	fmt.Println()
	if skipData {
		fmt.Printf("Checked %d variable groups (chunk data skipped)\n", len(targets))
	} else {
		fmt.Printf("Checked %d variable groups, %d cells, %d fill cells\n", len(targets), cells, fill)
	}

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll checks passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func parseTargets(s string) ([]*target, error) {
	if s == "" {
		var targets []*target
		for _, v := range hrrr.Variables() {
			targets = append(targets, &target{level: v.Level, variable: v.Variable})
		}
		return targets, nil
	}
	var targets []*target
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if level, variable, ok := strings.Cut(item, "/"); ok {
			targets = append(targets, &target{level: level, variable: variable})
			continue
		}
		level, ok := hrrr.DefaultLevel(item)
		if !ok {
			return nil, fmt.Errorf("variable %q not in the catalog; use level/NAME", item)
		}
		targets = append(targets, &target{level: level, variable: item})
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no variables requested")
	}
	return targets, nil
}

// ── Phase 1: Hierarchy ──
// The run root must open as a group and every variable group must open
// with consolidated metadata, the way the archive publishes them.

func checkHierarchy(ctx context.Context, store zarr.Store, r hrrr.Run, targets []*target) *phase {
	p := &phase{name: "Phase 1: Hierarchy (groups)"}

	if _, err := zarr.OpenGroup(ctx, store, r.Root()); err != nil {
		p.errorf("run root %s: %v", r.Root(), err)
	}
	for _, t := range targets {
		vg, err := zarr.OpenGroup(ctx, store, r.GroupPath(t.level, t.variable))
		if err != nil {
			p.errorf("%s: %v", t.name(), err)
			continue
		}
		if !vg.Consolidated() {
			p.errorf("%s: variable group is not consolidated", t.name())
		}
		t.vg = vg
	}
	return p
}

// ── Phase 2: Array metadata ──
// The nested data node must parse, carry the rank its product kind
// implies, and name its dimensions.

func checkMetadata(ctx context.Context, targets []*target, kind hrrr.Kind) *phase {
	p := &phase{name: "Phase 2: Array metadata"}

	wantRank := 2
	if kind == hrrr.Forecast {
		wantRank = 3
	}
	for _, t := range targets {
		if t.vg == nil {
			continue
		}
		arr, err := t.vg.Array(ctx, hrrr.VariableGroup(t.level, t.variable))
		if err != nil {
			p.errorf("%s: data array: %v", t.name(), err)
			continue
		}
		if arr.NDim() != wantRank {
			p.errorf("%s: rank %d, want %d for %s data", t.name(), arr.NDim(), wantRank, kind)
			continue
		}
		dims, ok := arr.Attrs()["_ARRAY_DIMENSIONS"].([]any)
		switch {
		case !ok:
			p.errorf("%s: missing _ARRAY_DIMENSIONS attribute", t.name())
		case len(dims) != arr.NDim():
			p.errorf("%s: _ARRAY_DIMENSIONS lists %d names for rank %d", t.name(), len(dims), arr.NDim())
		}
		t.arr = arr
	}
	return p
}

// ── Phase 3: Projection coordinates ──
// Both 1-D coordinate arrays must exist, match the data extents, and
// ascend strictly, or later axis math silently misplaces cells.

func checkCoordinates(ctx context.Context, targets []*target) *phase {
	p := &phase{name: "Phase 3: Projection coordinates"}

	for _, t := range targets {
		if t.arr == nil {
			continue
		}
		shape := t.arr.Shape()
		checkAxis(ctx, p, t, hrrr.YCoordName, shape[len(shape)-2])
		checkAxis(ctx, p, t, hrrr.XCoordName, shape[len(shape)-1])
	}
	return p
}

func checkAxis(ctx context.Context, p *phase, t *target, name string, want int) {
	arr, err := t.vg.Array(ctx, name)
	if err != nil {
		p.errorf("%s: %s: %v", t.name(), name, err)
		return
	}
	if arr.NDim() != 1 {
		p.errorf("%s: %s: want 1-D, got shape %v", t.name(), name, arr.Shape())
		return
	}
	values, err := arr.Read(ctx)
	if err != nil {
		p.errorf("%s: %s: %v", t.name(), name, err)
		return
	}
	if len(values) != want {
		p.errorf("%s: %s has %d points, data extent is %d", t.name(), name, len(values), want)
		return
	}
	for i := 1; i < len(values); i++ {
		if values[i] <= values[i-1] {
			p.errorf("%s: %s not strictly increasing at index %d", t.name(), name, i)
			return
		}
	}
}

// ── Phase 4: Chunk data ──
// Every chunk must download and decode. Fill cells (absent chunks) are
// tolerated and counted, but a field that is all fill means the data
// node holds no chunks at all.

func checkData(ctx context.Context, targets []*target) (*phase, int, int) {
	p := &phase{name: "Phase 4: Chunk data"}

	var cells, fill int
	for _, t := range targets {
		if t.arr == nil {
			continue
		}
		values, err := t.arr.Read(ctx)
		if err != nil {
			p.errorf("%s: read: %v", t.name(), err)
			continue
		}
		nan, inf := 0, 0
		for _, v := range values {
			switch {
			case math.IsNaN(v):
				nan++
			case math.IsInf(v, 0):
				inf++
			}
		}
		cells += len(values)
		fill += nan
		if inf > 0 {
			p.errorf("%s: %d infinite values", t.name(), inf)
		}
		if nan == len(values) {
			p.errorf("%s: every cell is fill; no chunk decoded", t.name())
		}
	}
	return p, cells, fill
}
