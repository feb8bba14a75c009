// Package export writes reduced datasets to NetCDF classic files so
// results feed GIS and notebook tooling directly.
package export

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"github.com/couchcryptid/hrrr-zarr-analysis/internal/crs"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/grid"
)

// gridMappingVar names the scalar variable carrying the CF grid
// mapping attributes; data variables point at it via "grid_mapping".
const gridMappingVar = "crs"

// standardNames annotates axis variables the CF way.
var standardNames = map[string]string{
	"y": "projection_y_coordinate",
	"x": "projection_x_coordinate",
}

// WriteNetCDF writes the named 2-D fields of ds, the axes they are
// gridded on, and the dataset's geographic coordinates to a
// classic-format NetCDF file at path. With no names every field is
// written. A failed write removes the partial file.
func WriteNetCDF(ctx context.Context, path string, ds *grid.Dataset, names ...string) (err error) {
	if len(names) == 0 {
		names = ds.FieldNames()
	}
	if len(names) == 0 {
		return fmt.Errorf("dataset has no fields to export")
	}

	cw, err := cdf.NewCDFWriter(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			cw.Close()
			os.Remove(path)
		}
	}()

	if err := addAxes(cw, ds, names[0]); err != nil {
		return err
	}
	for _, name := range ds.CoordNames() {
		coord, _ := ds.Coord(name)
		if err := addGridVar(ctx, cw, coord, nil); err != nil {
			return err
		}
	}
	if err := addGridMapping(cw); err != nil {
		return err
	}
	coordinates := strings.Join(ds.CoordNames(), " ")
	for _, name := range names {
		f, ok := ds.Field(name)
		if !ok {
			return fmt.Errorf("dataset has no field %q", name)
		}
		extra := map[string]any{"grid_mapping": gridMappingVar}
		if coordinates != "" {
			extra["coordinates"] = coordinates
		}
		if err := addGridVar(ctx, cw, f, extra); err != nil {
			return err
		}
	}

	global, err := attrMap(ds.Attrs(), map[string]any{"Conventions": "CF-1.8"})
	if err != nil {
		return err
	}
	if err := cw.AddGlobalAttrs(global); err != nil {
		return fmt.Errorf("global attributes: %w", err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// addAxes writes the 1-D coordinate variables for the dimensions of
// the field driving the export.
func addAxes(cw *cdf.CDFWriter, ds *grid.Dataset, name string) error {
	f, ok := ds.Field(name)
	if !ok {
		return fmt.Errorf("dataset has no field %q", name)
	}
	for _, dim := range f.Dims() {
		axis, ok := ds.Axis(dim)
		if !ok {
			return fmt.Errorf("dataset has no %q axis", dim)
		}
		raw := map[string]any{"units": "m"}
		if sn, ok := standardNames[dim]; ok {
			raw["standard_name"] = sn
		}
		attrs, err := attrMap(raw, nil)
		if err != nil {
			return err
		}
		if err := cw.AddVar(dim, api.Variable{
			Values:     axis,
			Dimensions: []string{dim},
			Attributes: attrs,
		}); err != nil {
			return fmt.Errorf("axis %q: %w", dim, err)
		}
	}
	return nil
}

// addGridVar writes one 2-D field, nesting its values row by row the
// way the CDF writer expects multidimensional data.
func addGridVar(ctx context.Context, cw *cdf.CDFWriter, f *grid.Field, extra map[string]any) error {
	shape := f.Shape()
	if len(shape) != 2 {
		return fmt.Errorf("variable %q has shape %v, want 2-D", f.Name(), shape)
	}
	values, err := f.Values(ctx)
	if err != nil {
		return err
	}
	attrs, err := attrMap(f.Attrs(), extra)
	if err != nil {
		return fmt.Errorf("variable %q: %w", f.Name(), err)
	}
	if err := cw.AddVar(f.Name(), api.Variable{
		Values:     reshape2(values, shape[0], shape[1]),
		Dimensions: f.Dims(),
		Attributes: attrs,
	}); err != nil {
		return fmt.Errorf("variable %q: %w", f.Name(), err)
	}
	return nil
}

func addGridMapping(cw *cdf.CDFWriter) error {
	attrs, err := attrMap(crs.GridMappingAttrs(), nil)
	if err != nil {
		return err
	}
	if err := cw.AddVar(gridMappingVar, api.Variable{
		Values:     int32(0),
		Attributes: attrs,
	}); err != nil {
		return fmt.Errorf("grid mapping: %w", err)
	}
	return nil
}

// reshape2 views a row-major slice as ny rows of nx values sharing the
// same backing array.
func reshape2(values []float64, ny, nx int) [][]float64 {
	rows := make([][]float64, ny)
	for j := range rows {
		rows[j] = values[j*nx : (j+1)*nx]
	}
	return rows
}

// attrMap merges and converts attributes into a CDF attribute map.
// Group attributes decoded from JSON arrive as float64, string, bool,
// and []any; only kinds the classic format stores survive, and keys
// with a leading underscore are xarray-internal and dropped.
func attrMap(attrs map[string]any, extra map[string]any) (api.AttributeMap, error) {
	merged := make(map[string]any, len(attrs)+len(extra))
	for k, v := range attrs {
		if strings.HasPrefix(k, "_") {
			continue
		}
		if cv, ok := cdfValue(v); ok {
			merged[k] = cv
		}
	}
	for k, v := range extra {
		if cv, ok := cdfValue(v); ok {
			merged[k] = cv
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	om, err := util.NewOrderedMap(keys, merged)
	if err != nil {
		return nil, fmt.Errorf("building attributes: %w", err)
	}
	return om, nil
}

func cdfValue(v any) (any, bool) {
	switch t := v.(type) {
	case string, float32, float64, int32, []float32, []float64, []int32:
		return t, true
	case int:
		return int32(t), true
	case int64:
		return int32(t), true
	case []any:
		out := make([]float64, 0, len(t))
		for _, e := range t {
			f, ok := toFloat(e)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	default:
		return nil, false
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}
