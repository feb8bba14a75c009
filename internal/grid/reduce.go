package grid

import (
	"context"
	"fmt"
	"math"
)

// Stat selects a reduction over the time dimension.
type Stat string

const (
	// Mean is the per-cell arithmetic mean over time.
	Mean Stat = "mean"
	// Std is the per-cell population standard deviation over time.
	Std Stat = "std"
)

// ParseStat validates a statistic name.
func ParseStat(s string) (Stat, error) {
	switch Stat(s) {
	case Mean, Std:
		return Stat(s), nil
	default:
		return "", fmt.Errorf("unknown statistic %q", s)
	}
}

// ReduceTime collapses the leading time dimension of the named field
// into a per-cell statistic. Concatenated fields reduce streaming, one
// time step held in memory at a time. NaN cells are skipped; a cell
// with no finite samples reduces to NaN.
func (d *Dataset) ReduceTime(ctx context.Context, name string, stat Stat) (*Field, error) {
	f, ok := d.fields[name]
	if !ok {
		return nil, fmt.Errorf("no field %q", name)
	}
	if len(f.dims) == 0 || f.dims[0] != TimeDim {
		return nil, fmt.Errorf("field %q has no leading %s dimension", name, TimeDim)
	}

	cells := product(f.shape[1:])
	count := make([]float64, cells)
	mean := make([]float64, cells)
	m2 := make([]float64, cells)

	// Welford update, one time step per call.
	accumulate := func(step []float64) {
		for i, v := range step {
			if math.IsNaN(v) {
				continue
			}
			count[i]++
			delta := v - mean[i]
			mean[i] += delta / count[i]
			m2[i] += delta * (v - mean[i])
		}
	}

	if len(f.parts) > 0 {
		for _, p := range f.parts {
			step, err := p.fetch(ctx)
			if err != nil {
				return nil, err
			}
			accumulate(step)
		}
	} else {
		cube, err := f.Values(ctx)
		if err != nil {
			return nil, err
		}
		for t := 0; t < f.shape[0]; t++ {
			accumulate(cube[t*cells : (t+1)*cells])
		}
	}

	out := make([]float64, cells)
	switch stat {
	case Mean:
		for i := range out {
			if count[i] == 0 {
				out[i] = math.NaN()
				continue
			}
			out[i] = mean[i]
		}
	case Std:
		for i := range out {
			if count[i] == 0 {
				out[i] = math.NaN()
				continue
			}
			out[i] = math.Sqrt(m2[i] / count[i])
		}
	default:
		return nil, fmt.Errorf("unknown statistic %q", stat)
	}

	attrs := cloneAttrs(f.attrs)
	attrs["cell_method"] = fmt.Sprintf("%s: %s", TimeDim, stat)
	return NewFieldValues(f.name, f.dims[1:], f.shape[1:], attrs, out)
}
