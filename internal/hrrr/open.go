package hrrr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/hrrr-zarr-analysis/internal/crs"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/grid"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/zarr"
)

// Dimension names a dataset carries after metadata repair.
const (
	DimY = "y"
	DimX = "x"
)

// Coordinate array names inside a variable group.
const (
	XCoordName = "projection_x_coordinate"
	YCoordName = "projection_y_coordinate"
)

// dimensionsAttr is the xarray attribute listing an array's dimension
// names in order.
const dimensionsAttr = "_ARRAY_DIMENSIONS"

// OpenHour opens one variable of one run as a dataset. For forecast
// runs it selects the first stored lead; use [OpenHourLead] for later
// leads.
func OpenHour(ctx context.Context, store zarr.Store, run Run, level, variable string) (*grid.Dataset, error) {
	return OpenHourLead(ctx, store, run, level, variable, 0)
}

// OpenHourLead opens one variable of one run at the given lead index.
// The data field stays lazy; only coordinate arrays and metadata are
// read up front.
//
// Beyond reading, this repairs what the archive leaves out: projection
// dimensions are renamed to "y"/"x", the grid mapping from package crs
// is attached to the dataset attributes, and 2-D latitude/longitude
// coordinates are derived lazily when the group ships none.
func OpenHourLead(ctx context.Context, store zarr.Store, run Run, level, variable string, lead int) (*grid.Dataset, error) {
	if lead < 0 {
		return nil, fmt.Errorf("open %s: negative lead index %d", run, lead)
	}
	if run.Kind != Forecast && lead > 0 {
		return nil, fmt.Errorf("open %s: analysis runs have no forecast leads", run)
	}

	groupPath := run.GroupPath(level, variable)
	vg, err := zarr.OpenGroup(ctx, store, groupPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", groupPath, err)
	}
	arr, err := vg.Array(ctx, VariableGroup(level, variable))
	if err != nil {
		return nil, fmt.Errorf("open %s: data array: %w", groupPath, err)
	}
	xvals, err := readCoord(ctx, vg, XCoordName)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", groupPath, err)
	}
	yvals, err := readCoord(ctx, vg, YCoordName)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", groupPath, err)
	}

	shape := arr.Shape()
	wantRank := 2
	if run.Kind == Forecast {
		wantRank = 3
	}
	if len(shape) != wantRank {
		return nil, fmt.Errorf("open %s: want rank %d for %s data, got shape %v", groupPath, wantRank, run.Kind, shape)
	}
	if run.Kind == Forecast && lead >= shape[0] {
		return nil, fmt.Errorf("open %s: lead index %d out of range, run stores %d leads", groupPath, lead, shape[0])
	}
	ny, nx := shape[len(shape)-2], shape[len(shape)-1]
	if len(yvals) != ny || len(xvals) != nx {
		return nil, fmt.Errorf("open %s: data shape %v does not match coordinates [%d %d]",
			groupPath, shape, len(yvals), len(xvals))
	}

	dims := arrayDims(arr)
	ydim, xdim := dims[len(dims)-2], dims[len(dims)-1]

	loader := grid.Loader(arr.Read)
	if run.Kind == Forecast {
		start := []int{lead, 0, 0}
		count := []int{1, ny, nx}
		loader = func(ctx context.Context) ([]float64, error) {
			return arr.ReadSection(ctx, start, count)
		}
	}
	field, err := grid.NewField(variable, []string{ydim, xdim}, []int{ny, nx},
		fieldAttrs(arr, run, level, variable, lead), loader)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", groupPath, err)
	}

	ds := grid.NewDataset()
	if err := ds.AddField(field); err != nil {
		return nil, err
	}
	ds.SetAxis(ydim, yvals)
	ds.SetAxis(xdim, xvals)
	if err := ds.RenameDim(ydim, DimY); err != nil {
		return nil, fmt.Errorf("open %s: %w", groupPath, err)
	}
	if err := ds.RenameDim(xdim, DimX); err != nil {
		return nil, fmt.Errorf("open %s: %w", groupPath, err)
	}
	if err := attachLatLon(ctx, ds, vg, xvals, yvals); err != nil {
		return nil, fmt.Errorf("open %s: %w", groupPath, err)
	}

	for k, v := range crs.GridMappingAttrs() {
		ds.SetAttr(k, v)
	}
	ds.SetAttr("run", run.ID())
	ds.SetAttr("kind", string(run.Kind))
	ds.SetAttr("valid_time", run.ValidTime(lead).Format(time.RFC3339))
	ds.SetAttr("source_path", groupPath)
	if u, ok := store.(interface{ URL() string }); ok {
		ds.SetAttr("source_bucket", u.URL())
	}
	return ds, nil
}

func readCoord(ctx context.Context, vg *zarr.Group, name string) ([]float64, error) {
	arr, err := vg.Array(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("coordinate %s: %w", name, err)
	}
	if arr.NDim() != 1 {
		return nil, fmt.Errorf("coordinate %s: want 1-D, got shape %v", name, arr.Shape())
	}
	return arr.Read(ctx)
}

// arrayDims returns the dimension names from the array's
// _ARRAY_DIMENSIONS attribute, falling back to the archive's
// conventional names when the attribute is missing or malformed.
func arrayDims(arr *zarr.Array) []string {
	raw, ok := arr.Attrs()[dimensionsAttr]
	if !ok {
		return defaultDims(arr.NDim())
	}
	list, ok := raw.([]any)
	if !ok || len(list) != arr.NDim() {
		return defaultDims(arr.NDim())
	}
	dims := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return defaultDims(arr.NDim())
		}
		dims = append(dims, s)
	}
	return dims
}

func defaultDims(rank int) []string {
	if rank == 3 {
		return []string{"time", YCoordName, XCoordName}
	}
	return []string{YCoordName, XCoordName}
}

func fieldAttrs(arr *zarr.Array, run Run, level, variable string, lead int) map[string]any {
	attrs := make(map[string]any)
	for k, v := range arr.Attrs() {
		if k == dimensionsAttr {
			continue
		}
		attrs[k] = v
	}
	if info, ok := Lookup(level, variable); ok {
		if _, ok := attrs["units"]; !ok {
			attrs["units"] = info.Units
		}
		if _, ok := attrs["long_name"]; !ok {
			attrs["long_name"] = info.Description
		}
	}
	attrs["level"] = level
	if run.Kind == Forecast {
		attrs["lead_hours"] = lead + 1
	}
	return attrs
}

// attachLatLon adds 2-D latitude/longitude coordinates. Groups that
// ship their own geographic arrays keep them; otherwise coordinates
// are derived from the projection axes. The derivation transforms
// every grid cell, so both coordinates stay lazy and share one pass.
func attachLatLon(ctx context.Context, ds *grid.Dataset, vg *zarr.Group, xvals, yvals []float64) error {
	dims := []string{DimY, DimX}
	shape := []int{len(yvals), len(xvals)}

	latArr, latErr := vg.Array(ctx, "latitude")
	lonArr, lonErr := vg.Array(ctx, "longitude")
	if latErr == nil && lonErr == nil {
		if !shapeIs(latArr.Shape(), shape) || !shapeIs(lonArr.Shape(), shape) {
			return fmt.Errorf("geographic coordinates have shape %v/%v, want %v",
				latArr.Shape(), lonArr.Shape(), shape)
		}
		return addLatLonFields(ds, dims, shape, grid.Loader(latArr.Read), grid.Loader(lonArr.Read))
	}

	var (
		once     sync.Once
		lat, lon []float64
		derr     error
	)
	derive := func() {
		once.Do(func() { lat, lon, derr = crs.LatLonGrid(xvals, yvals) })
	}
	latLoad := func(context.Context) ([]float64, error) {
		derive()
		return lat, derr
	}
	lonLoad := func(context.Context) ([]float64, error) {
		derive()
		return lon, derr
	}
	return addLatLonFields(ds, dims, shape, latLoad, lonLoad)
}

func addLatLonFields(ds *grid.Dataset, dims []string, shape []int, latLoad, lonLoad grid.Loader) error {
	lat, err := grid.NewField("latitude", dims, shape,
		map[string]any{"units": "degrees_north", "standard_name": "latitude"}, latLoad)
	if err != nil {
		return err
	}
	lon, err := grid.NewField("longitude", dims, shape,
		map[string]any{"units": "degrees_east", "standard_name": "longitude"}, lonLoad)
	if err != nil {
		return err
	}
	ds.AssignCoord(lat)
	ds.AssignCoord(lon)
	return nil
}

func shapeIs(got, want []int) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
