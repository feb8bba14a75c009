package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hrrr-zarr-analysis/internal/crs"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/grid"
)

func testDataset(t *testing.T) *grid.Dataset {
	t.Helper()
	ds := grid.NewDataset()

	tmp, err := grid.NewFieldValues("TMP", []string{"y", "x"}, []int{2, 3},
		map[string]any{
			"units":             "K",
			"level":             "2m_above_ground",
			"cell_method":       "time: mean",
			"_ARRAY_DIMENSIONS": []any{"y", "x"},
		},
		[]float64{270, 271, 272, 273, 274, 275})
	require.NoError(t, err)
	require.NoError(t, ds.AddField(tmp))

	ds.SetAxis("y", []float64{-1500, 1500})
	ds.SetAxis("x", []float64{-3000, 0, 3000})

	lat, lon, err := crs.LatLonGrid([]float64{-3000, 0, 3000}, []float64{-1500, 1500})
	require.NoError(t, err)
	latF, err := grid.NewFieldValues("latitude", []string{"y", "x"}, []int{2, 3},
		map[string]any{"units": "degrees_north"}, lat)
	require.NoError(t, err)
	lonF, err := grid.NewFieldValues("longitude", []string{"y", "x"}, []int{2, 3},
		map[string]any{"units": "degrees_east"}, lon)
	require.NoError(t, err)
	ds.AssignCoord(latF)
	ds.AssignCoord(lonF)

	ds.SetAttr("run", "20200801_06z_anl")
	ds.SetAttr("proj4", crs.Proj4)
	ds.SetAttr("skipped_bool", true)
	return ds
}

func TestWriteNetCDF_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmp_mean.nc")
	require.NoError(t, WriteNetCDF(context.Background(), path, testDataset(t)))

	g, err := netcdf.Open(path)
	require.NoError(t, err)
	defer g.Close()

	assert.ElementsMatch(t, []string{"y", "x", "latitude", "longitude", "crs", "TMP"},
		g.ListVariables())

	v, err := g.GetVariable("TMP")
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "x"}, v.Dimensions)
	assert.Equal(t, [][]float64{{270, 271, 272}, {273, 274, 275}}, v.Values)

	units, has := v.Attributes.Get("units")
	require.True(t, has)
	assert.Equal(t, "K", units)
	mapping, has := v.Attributes.Get("grid_mapping")
	require.True(t, has)
	assert.Equal(t, "crs", mapping)
	coords, has := v.Attributes.Get("coordinates")
	require.True(t, has)
	assert.Equal(t, "latitude longitude", coords)
	_, has = v.Attributes.Get("_ARRAY_DIMENSIONS")
	assert.False(t, has)

	y, err := g.GetVariable("y")
	require.NoError(t, err)
	assert.Equal(t, []float64{-1500, 1500}, y.Values)

	lat, err := g.GetVariable("latitude")
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "x"}, lat.Dimensions)

	mappingVar, err := g.GetVariable("crs")
	require.NoError(t, err)
	name, has := mappingVar.Attributes.Get("grid_mapping_name")
	require.True(t, has)
	assert.Equal(t, "lambert_conformal_conic", name)
	parallels, has := mappingVar.Attributes.Get("standard_parallel")
	require.True(t, has)
	assert.Equal(t, []float64{38.5, 38.5}, parallels)
	radius, has := mappingVar.Attributes.Get("earth_radius")
	require.True(t, has)
	assert.Equal(t, crs.EarthRadius, radius)

	conventions, has := g.Attributes().Get("Conventions")
	require.True(t, has)
	assert.Equal(t, "CF-1.8", conventions)
	run, has := g.Attributes().Get("run")
	require.True(t, has)
	assert.Equal(t, "20200801_06z_anl", run)
	_, has = g.Attributes().Get("skipped_bool")
	assert.False(t, has)
}

func TestWriteNetCDF_SelectsFields(t *testing.T) {
	ds := testDataset(t)
	extra, err := grid.NewFieldValues("DPT", []string{"y", "x"}, []int{2, 3},
		map[string]any{"units": "K"}, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	require.NoError(t, ds.AddField(extra))

	path := filepath.Join(t.TempDir(), "tmp_only.nc")
	require.NoError(t, WriteNetCDF(context.Background(), path, ds, "TMP"))

	g, err := netcdf.Open(path)
	require.NoError(t, err)
	defer g.Close()

	assert.Contains(t, g.ListVariables(), "TMP")
	assert.NotContains(t, g.ListVariables(), "DPT")
}

func TestWriteNetCDF_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("no fields", func(t *testing.T) {
		err := WriteNetCDF(context.Background(), filepath.Join(dir, "empty.nc"), grid.NewDataset())
		assert.Error(t, err)
	})

	t.Run("unknown field", func(t *testing.T) {
		err := WriteNetCDF(context.Background(), filepath.Join(dir, "unknown.nc"), testDataset(t), "REFC")
		assert.Error(t, err)
	})

	t.Run("missing axis", func(t *testing.T) {
		ds := grid.NewDataset()
		f, err := grid.NewFieldValues("TMP", []string{"y", "x"}, []int{1, 1}, nil, []float64{1})
		require.NoError(t, err)
		require.NoError(t, ds.AddField(f))

		path := filepath.Join(dir, "noaxis.nc")
		err = WriteNetCDF(context.Background(), path, ds)
		assert.Error(t, err)
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr), "partial file should be removed")
	})

	t.Run("not 2-D", func(t *testing.T) {
		ds := grid.NewDataset()
		f, err := grid.NewFieldValues("cube", []string{"time", "y", "x"}, []int{1, 1, 1}, nil, []float64{1})
		require.NoError(t, err)
		require.NoError(t, ds.AddField(f))
		ds.SetAxis("time", []float64{0})
		ds.SetAxis("y", []float64{0})
		ds.SetAxis("x", []float64{0})

		assert.Error(t, WriteNetCDF(context.Background(), filepath.Join(dir, "cube.nc"), ds))
	})
}
