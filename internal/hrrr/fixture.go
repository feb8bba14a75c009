package hrrr

import (
	"context"
	"fmt"
	"math"
	"path"

	"github.com/couchcryptid/hrrr-zarr-analysis/internal/zarr"
)

// SampleSpec describes one synthetic run written by [WriteSampleRun].
// Zero fields take defaults, so tests can usually set just the Run.
type SampleSpec struct {
	Run      Run
	Level    string
	Variable string
	NY, NX   int
	Leads    int // stored forecast leads; ignored for analysis runs
}

func (s SampleSpec) withDefaults() SampleSpec {
	if s.Level == "" {
		s.Level = "2m_above_ground"
	}
	if s.Variable == "" {
		s.Variable = "TMP"
	}
	if s.NY == 0 {
		s.NY = 24
	}
	if s.NX == 0 {
		s.NX = 32
	}
	if s.Leads == 0 {
		s.Leads = 2
	}
	return s
}

// WriteSampleRun writes a synthetic run laid out exactly like the
// archive: nested data node, 1-D projection coordinates, xarray
// dimension attributes, float16 data under Blosc, and consolidated
// metadata at the variable group. It backs package tests and the mock
// archive generator.
func WriteSampleRun(ctx context.Context, store zarr.WriteStore, spec SampleSpec) error {
	spec = spec.withDefaults()
	run := spec.Run

	// Parent bookkeeping nodes so the run is a browsable hierarchy.
	root := zarr.NewTreeWriter(store, run.Root())
	if err := root.Group(ctx, "", nil); err != nil {
		return fmt.Errorf("sample run %s: %w", run, err)
	}
	if err := root.Group(ctx, spec.Level, nil); err != nil {
		return fmt.Errorf("sample run %s: %w", run, err)
	}

	// The variable group is consolidated on its own, the way the
	// archive consolidates each group for single-fetch opens.
	w := zarr.NewTreeWriter(store, run.GroupPath(spec.Level, spec.Variable))
	if err := w.Group(ctx, "", nil); err != nil {
		return fmt.Errorf("sample run %s: %w", run, err)
	}
	if err := writeCoord(ctx, w, XCoordName, sampleAxis(spec.NX)); err != nil {
		return fmt.Errorf("sample run %s: %w", run, err)
	}
	if err := writeCoord(ctx, w, YCoordName, sampleAxis(spec.NY)); err != nil {
		return fmt.Errorf("sample run %s: %w", run, err)
	}
	if err := w.Group(ctx, spec.Level, nil); err != nil {
		return fmt.Errorf("sample run %s: %w", run, err)
	}

	shape := []int{spec.NY, spec.NX}
	chunks := []int{(spec.NY + 1) / 2, spec.NX}
	dims := []string{YCoordName, XCoordName}
	if run.Kind == Forecast {
		shape = append([]int{spec.Leads}, shape...)
		chunks = append([]int{1}, chunks...)
		dims = append([]string{"time"}, dims...)
	}
	attrs := map[string]any{dimensionsAttr: dims}
	if info, ok := Lookup(spec.Level, spec.Variable); ok {
		attrs["units"] = info.Units
		attrs["long_name"] = info.Description
	}
	meta := zarr.NewArrayMeta(shape, chunks, "<f2", &zarr.CompressorConfig{
		ID: "blosc", CName: "lz4", CLevel: 5, Shuffle: 1,
	})
	node := path.Join(spec.Level, spec.Variable)
	if err := w.Array(ctx, node, meta, attrs, sampleData(spec)); err != nil {
		return fmt.Errorf("sample run %s: %w", run, err)
	}
	if err := w.Consolidate(ctx); err != nil {
		return fmt.Errorf("sample run %s: %w", run, err)
	}
	return nil
}

func writeCoord(ctx context.Context, w *zarr.TreeWriter, name string, values []float64) error {
	meta := zarr.NewArrayMeta([]int{len(values)}, []int{len(values)}, "<f8",
		&zarr.CompressorConfig{ID: "zlib", Level: 5})
	attrs := map[string]any{dimensionsAttr: []string{name}, "units": "m"}
	return w.Array(ctx, name, meta, attrs, values)
}

// sampleAxis returns n projection coordinates centered on the grid
// origin with the model's 3 km spacing.
func sampleAxis(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = (float64(i) - float64(n-1)/2) * 3000
	}
	return values
}

// SampleValue is the value WriteSampleRun stores at one cell. Values
// stay below 512 in magnitude and quantized to quarters so the float16
// encoding round-trips them exactly; tests can assert equality.
func SampleValue(spec SampleSpec, lead, j, i int) float64 {
	spec = spec.withDefaults()
	v := sampleBase(spec.Variable) +
		10*math.Sin(2*math.Pi*float64(i)/float64(spec.NX)) +
		6*math.Cos(2*math.Pi*float64(j)/float64(spec.NY)) +
		float64(spec.Run.Time.Hour()) + 0.5*float64(lead)
	return math.Round(v*4) / 4
}

func sampleBase(variable string) float64 {
	switch variable {
	case "TMP":
		return 288
	case "DPT":
		return 283
	case "RH", "TCDC":
		return 55
	case "UGRD":
		return 3
	case "VGRD":
		return -2
	case "GUST":
		return 8
	case "REFC":
		return 18
	case "CAPE":
		return 350
	default:
		return 100
	}
}

func sampleData(spec SampleSpec) []float64 {
	leads := 1
	if spec.Run.Kind == Forecast {
		leads = spec.Leads
	}
	data := make([]float64, 0, leads*spec.NY*spec.NX)
	for l := 0; l < leads; l++ {
		for j := 0; j < spec.NY; j++ {
			for i := 0; i < spec.NX; i++ {
				data = append(data, SampleValue(spec, l, j, i))
			}
		}
	}
	return data
}
