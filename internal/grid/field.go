// Package grid models gridded fields and datasets: named n-dimensional
// variables over shared coordinate axes, loaded lazily from an archive,
// stacked along time, and reduced to per-cell statistics.
package grid

import (
	"context"
	"fmt"
	"sync"
)

// Loader produces a field's row-major values on demand.
type Loader func(ctx context.Context) ([]float64, error)

// Field is one named variable on a grid. Values load lazily on the
// first access and stay materialized afterwards; a failed load is not
// cached and will be retried.
type Field struct {
	name  string
	dims  []string
	shape []int
	attrs map[string]any
	load  Loader

	mu     sync.Mutex
	values []float64
	loaded bool

	// parts holds the per-step source fields of a concatenated field,
	// letting reductions stream one step at a time.
	parts []*Field
}

// NewField creates a lazy field. dims and shape must have equal rank
// with positive extents.
func NewField(name string, dims []string, shape []int, attrs map[string]any, load Loader) (*Field, error) {
	if len(dims) != len(shape) {
		return nil, fmt.Errorf("field %q: %d dims for %d shape entries", name, len(dims), len(shape))
	}
	for d, n := range shape {
		if n < 1 {
			return nil, fmt.Errorf("field %q: dimension %q has extent %d", name, dims[d], n)
		}
	}
	if load == nil {
		return nil, fmt.Errorf("field %q: nil loader", name)
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &Field{
		name:  name,
		dims:  append([]string(nil), dims...),
		shape: append([]int(nil), shape...),
		attrs: attrs,
		load:  load,
	}, nil
}

// NewFieldValues creates a field over values that are already in
// memory.
func NewFieldValues(name string, dims []string, shape []int, attrs map[string]any, values []float64) (*Field, error) {
	f, err := NewField(name, dims, shape, attrs, func(context.Context) ([]float64, error) {
		return values, nil
	})
	if err != nil {
		return nil, err
	}
	if len(values) != f.Size() {
		return nil, fmt.Errorf("field %q: %d values for shape %v", name, len(values), shape)
	}
	f.values = values
	f.loaded = true
	return f, nil
}

// Name returns the field name.
func (f *Field) Name() string { return f.name }

// Dims returns a copy of the dimension names.
func (f *Field) Dims() []string { return append([]string(nil), f.dims...) }

// Shape returns a copy of the extents.
func (f *Field) Shape() []int { return append([]int(nil), f.shape...) }

// Size returns the total element count.
func (f *Field) Size() int { return product(f.shape) }

// Attrs returns the field's attributes. The map is shared, not a copy.
func (f *Field) Attrs() map[string]any { return f.attrs }

// SetAttr sets one attribute.
func (f *Field) SetAttr(key string, value any) { f.attrs[key] = value }

// Loaded reports whether the values are materialized.
func (f *Field) Loaded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

// Values returns the field's row-major values, loading and
// materializing them on first call. The slice is shared, not a copy.
func (f *Field) Values(ctx context.Context) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loaded {
		return f.values, nil
	}
	values, err := f.runLoader(ctx)
	if err != nil {
		return nil, err
	}
	f.values = values
	f.loaded = true
	return f.values, nil
}

// fetch returns the field's values without materializing them, so a
// streaming pass over many fields does not pin them all in memory.
func (f *Field) fetch(ctx context.Context) ([]float64, error) {
	f.mu.Lock()
	if f.loaded {
		values := f.values
		f.mu.Unlock()
		return values, nil
	}
	f.mu.Unlock()
	return f.runLoader(ctx)
}

func (f *Field) runLoader(ctx context.Context) ([]float64, error) {
	values, err := f.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading field %q: %w", f.name, err)
	}
	if len(values) != f.Size() {
		return nil, fmt.Errorf("field %q: loader produced %d values for shape %v", f.name, len(values), f.shape)
	}
	return values, nil
}

// renameDim replaces a dimension name in place.
func (f *Field) renameDim(from, to string) bool {
	for i, d := range f.dims {
		if d == from {
			f.dims[i] = to
			return true
		}
	}
	return false
}

// hasDim reports whether the field has a dimension named dim.
func (f *Field) hasDim(dim string) bool {
	for _, d := range f.dims {
		if d == dim {
			return true
		}
	}
	return false
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
