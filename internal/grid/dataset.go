package grid

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// TimeDim is the dimension name of the stacking axis used by
// ConcatTime and ReduceTime.
const TimeDim = "time"

// Dataset is a collection of fields sharing coordinate axes. Axes hold
// the 1-D coordinate values per dimension; coords hold derived 2-D
// coordinate fields such as latitude and longitude.
type Dataset struct {
	order  []string
	fields map[string]*Field
	axes   map[string][]float64
	coords map[string]*Field
	attrs  map[string]any
	times  []time.Time
}

// NewDataset creates an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{
		fields: map[string]*Field{},
		axes:   map[string][]float64{},
		coords: map[string]*Field{},
		attrs:  map[string]any{},
	}
}

// AddField adds a field. Names must be unique within the dataset.
func (d *Dataset) AddField(f *Field) error {
	if _, ok := d.fields[f.name]; ok {
		return fmt.Errorf("dataset already has a field %q", f.name)
	}
	d.fields[f.name] = f
	d.order = append(d.order, f.name)
	return nil
}

// Field returns the named field.
func (d *Dataset) Field(name string) (*Field, bool) {
	f, ok := d.fields[name]
	return f, ok
}

// FieldNames returns the field names in insertion order.
func (d *Dataset) FieldNames() []string {
	return append([]string(nil), d.order...)
}

// SetAxis sets the 1-D coordinate values of a dimension.
func (d *Dataset) SetAxis(dim string, values []float64) {
	d.axes[dim] = values
}

// Axis returns the coordinate values of a dimension.
func (d *Dataset) Axis(dim string) ([]float64, bool) {
	v, ok := d.axes[dim]
	return v, ok
}

// AssignCoord attaches a derived coordinate field, such as a 2-D
// latitude grid, replacing any previous coordinate of the same name.
func (d *Dataset) AssignCoord(f *Field) {
	d.coords[f.name] = f
}

// Coord returns the named coordinate field.
func (d *Dataset) Coord(name string) (*Field, bool) {
	f, ok := d.coords[name]
	return f, ok
}

// CoordNames returns the coordinate names in lexical order.
func (d *Dataset) CoordNames() []string {
	names := make([]string, 0, len(d.coords))
	for n := range d.coords {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SetAttr sets one dataset attribute.
func (d *Dataset) SetAttr(key string, value any) { d.attrs[key] = value }

// Attr returns one dataset attribute.
func (d *Dataset) Attr(key string) (any, bool) {
	v, ok := d.attrs[key]
	return v, ok
}

// Attrs returns the dataset attributes. The map is shared, not a copy.
func (d *Dataset) Attrs() map[string]any { return d.attrs }

// Times returns the values of the time axis, empty before ConcatTime.
func (d *Dataset) Times() []time.Time {
	return append([]time.Time(nil), d.times...)
}

// RenameDim renames a dimension across all fields, coordinate fields,
// and axes. The archive names the grid dimensions after the coordinate
// arrays ("projection_y_coordinate"); analysis code works with the
// short "y"/"x" names.
func (d *Dataset) RenameDim(from, to string) error {
	if from == to {
		return nil
	}
	if _, ok := d.axes[to]; ok {
		return fmt.Errorf("renaming dimension %q: %q already exists", from, to)
	}
	found := false
	for _, f := range d.fields {
		if f.hasDim(to) {
			return fmt.Errorf("renaming dimension %q: field %q already has %q", from, f.name, to)
		}
		if f.renameDim(from, to) {
			found = true
		}
	}
	for _, f := range d.coords {
		if f.renameDim(from, to) {
			found = true
		}
	}
	if v, ok := d.axes[from]; ok {
		d.axes[to] = v
		delete(d.axes, from)
		found = true
	}
	if !found {
		return fmt.Errorf("renaming dimension %q: no such dimension", from)
	}
	return nil
}

// ConcatTime stacks datasets along a new leading time dimension. Every
// dataset must carry the same fields with identical dimensions and
// shapes, and times must be strictly increasing with one entry per
// dataset. Axes, coordinates, and attributes come from the first
// dataset; field values stay lazy.
func ConcatTime(datasets []*Dataset, times []time.Time) (*Dataset, error) {
	if len(datasets) == 0 {
		return nil, fmt.Errorf("concatenating zero datasets")
	}
	if len(times) != len(datasets) {
		return nil, fmt.Errorf("concatenating %d datasets with %d times", len(datasets), len(times))
	}
	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			return nil, fmt.Errorf("times must be strictly increasing: %v is not after %v",
				times[i], times[i-1])
		}
	}

	first := datasets[0]
	for _, name := range first.order {
		ref := first.fields[name]
		for i, ds := range datasets[1:] {
			f, ok := ds.fields[name]
			if !ok {
				return nil, fmt.Errorf("dataset %d is missing field %q", i+1, name)
			}
			if !equalStrings(f.dims, ref.dims) || !equalInts(f.shape, ref.shape) {
				return nil, fmt.Errorf("field %q: dataset %d has %v%v, dataset 0 has %v%v",
					name, i+1, f.dims, f.shape, ref.dims, ref.shape)
			}
		}
	}
	for _, ds := range datasets[1:] {
		for _, name := range ds.order {
			if _, ok := first.fields[name]; !ok {
				return nil, fmt.Errorf("dataset 0 is missing field %q", name)
			}
		}
	}

	out := NewDataset()
	for dim, v := range first.axes {
		out.axes[dim] = v
	}
	for name, f := range first.coords {
		out.coords[name] = f
	}
	for k, v := range first.attrs {
		out.attrs[k] = v
	}
	out.times = append([]time.Time(nil), times...)

	for _, name := range first.order {
		ref := first.fields[name]
		parts := make([]*Field, len(datasets))
		for i, ds := range datasets {
			parts[i] = ds.fields[name]
		}
		stacked, err := NewField(
			name,
			append([]string{TimeDim}, ref.dims...),
			append([]int{len(datasets)}, ref.shape...),
			cloneAttrs(ref.attrs),
			concatLoader(parts),
		)
		if err != nil {
			return nil, err
		}
		stacked.parts = parts
		if err := out.AddField(stacked); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// concatLoader materializes a stacked field by fetching each source in
// time order.
func concatLoader(parts []*Field) Loader {
	return func(ctx context.Context) ([]float64, error) {
		step := parts[0].Size()
		out := make([]float64, step*len(parts))
		for i, p := range parts {
			values, err := p.fetch(ctx)
			if err != nil {
				return nil, err
			}
			copy(out[i*step:(i+1)*step], values)
		}
		return out, nil
	}
}

func cloneAttrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
