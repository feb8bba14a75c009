package crs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectionOriginMapsToCenter(t *testing.T) {
	toLL, err := ToLonLat()
	require.NoError(t, err)

	lon, lat, err := toLL(0, 0)
	require.NoError(t, err)
	assert.InDelta(t, CentralLongitude, lon, 1e-6)
	assert.InDelta(t, CentralLatitude, lat, 1e-6)
}

func TestCentralMeridianStaysVertical(t *testing.T) {
	toLL, err := ToLonLat()
	require.NoError(t, err)

	lon, lat, err := toLL(0, 500e3)
	require.NoError(t, err)
	assert.InDelta(t, CentralLongitude, lon, 1e-6)
	assert.Greater(t, lat, CentralLatitude)

	lon, lat, err = toLL(0, -500e3)
	require.NoError(t, err)
	assert.InDelta(t, CentralLongitude, lon, 1e-6)
	assert.Less(t, lat, CentralLatitude)
}

func TestRoundTrip(t *testing.T) {
	toLL, err := ToLonLat()
	require.NoError(t, err)
	fromLL, err := FromLonLat()
	require.NoError(t, err)

	points := [][2]float64{
		{0, 0},
		{-2000e3, -1200e3},
		{1500e3, 900e3},
		{-750e3, 1400e3},
	}
	for _, p := range points {
		lon, lat, err := toLL(p[0], p[1])
		require.NoError(t, err)
		x, y, err := fromLL(lon, lat)
		require.NoError(t, err)
		assert.InDelta(t, p[0], x, 1e-3, "x for point %v", p)
		assert.InDelta(t, p[1], y, 1e-3, "y for point %v", p)
	}
}

func TestLatLonGrid(t *testing.T) {
	x := []float64{-3000, 0, 3000}
	y := []float64{-3000, 0, 3000, 6000}

	lat, lon, err := LatLonGrid(x, y)
	require.NoError(t, err)
	require.Len(t, lat, 12)
	require.Len(t, lon, 12)

	// Center cell sits on the projection origin.
	assert.InDelta(t, CentralLatitude, lat[1*3+1], 1e-6)
	assert.InDelta(t, CentralLongitude, lon[1*3+1], 1e-6)

	// Latitude grows with the row index, longitude with the column index.
	assert.Greater(t, lat[2*3+1], lat[1*3+1])
	assert.Greater(t, lon[1*3+2], lon[1*3+1])
	assert.Less(t, lon[1*3+0], lon[1*3+1])
}

func TestGridMappingAttrs(t *testing.T) {
	attrs := GridMappingAttrs()
	assert.Equal(t, "lambert_conformal_conic", attrs["grid_mapping_name"])
	assert.Equal(t, []float64{38.5, 38.5}, attrs["standard_parallel"])
	assert.Equal(t, EarthRadius, attrs["earth_radius"])
	assert.Contains(t, attrs["proj4"], "+proj=lcc")
}
