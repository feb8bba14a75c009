package hrrr

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hrrr-zarr-analysis/internal/zarr"
)

// traceStore is a map-backed store recording every Get so tests can
// assert which objects an open touches.
type traceStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    []string
}

func newTraceStore() *traceStore {
	return &traceStore{objects: map[string][]byte{}}
}

func (s *traceStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets = append(s.gets, key)
	b, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, zarr.ErrNotFound)
	}
	return append([]byte(nil), b...), nil
}

func (s *traceStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *traceStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets = nil
}

func (s *traceStore) fetched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.gets...)
}

func TestOpenHourRenamesDimsAndStaysLazy(t *testing.T) {
	ctx := context.Background()
	store := newTraceStore()
	run := NewRun(time.Date(2020, 8, 1, 6, 0, 0, 0, time.UTC), Analysis)
	spec := SampleSpec{Run: run, NY: 6, NX: 8}
	require.NoError(t, WriteSampleRun(ctx, store, spec))

	store.reset()
	ds, err := OpenHour(ctx, store, run, "2m_above_ground", "TMP")
	require.NoError(t, err)

	group := run.GroupPath("2m_above_ground", "TMP")
	assert.ElementsMatch(t, []string{
		group + "/.zmetadata",
		group + "/" + XCoordName + "/0",
		group + "/" + YCoordName + "/0",
	}, store.fetched(), "opening reads consolidated metadata and the 1-D coordinates, nothing else")

	field, ok := ds.Field("TMP")
	require.True(t, ok)
	assert.Equal(t, []string{DimY, DimX}, field.Dims())
	assert.Equal(t, []int{6, 8}, field.Shape())
	assert.False(t, field.Loaded())

	yaxis, ok := ds.Axis(DimY)
	require.True(t, ok)
	assert.Equal(t, sampleAxis(6), yaxis)
	xaxis, ok := ds.Axis(DimX)
	require.True(t, ok)
	assert.Equal(t, sampleAxis(8), xaxis)

	values, err := field.Values(ctx)
	require.NoError(t, err)
	assert.True(t, field.Loaded())
	for j := 0; j < 6; j++ {
		for i := 0; i < 8; i++ {
			assert.Equal(t, SampleValue(spec, 0, j, i), values[j*8+i], "cell (%d,%d)", j, i)
		}
	}

	for _, key := range store.fetched() {
		rest := strings.TrimPrefix(key, group+"/")
		if strings.HasPrefix(rest, "2m_above_ground/TMP/") {
			assert.NotContains(t, rest, ".z", "data node reads must be chunks only")
		}
	}
}

func TestOpenHourAttachesMetadata(t *testing.T) {
	ctx := context.Background()
	store := newTraceStore()
	run := NewRun(time.Date(2020, 8, 1, 6, 0, 0, 0, time.UTC), Analysis)
	require.NoError(t, WriteSampleRun(ctx, store, SampleSpec{Run: run}))

	ds, err := OpenHour(ctx, store, run, "2m_above_ground", "TMP")
	require.NoError(t, err)

	field, ok := ds.Field("TMP")
	require.True(t, ok)
	assert.Equal(t, "K", field.Attrs()["units"])
	assert.Equal(t, "temperature 2 m above ground", field.Attrs()["long_name"])
	assert.Equal(t, "2m_above_ground", field.Attrs()["level"])
	_, hasLead := field.Attrs()["lead_hours"]
	assert.False(t, hasLead, "analysis fields carry no lead")
	_, hasDims := field.Attrs()[dimensionsAttr]
	assert.False(t, hasDims, "xarray dimension bookkeeping must not leak through")

	attr := func(key string) any {
		v, _ := ds.Attr(key)
		return v
	}
	assert.Equal(t, "20200801_06z_anl", attr("run"))
	assert.Equal(t, "anl", attr("kind"))
	assert.Equal(t, "2020-08-01T06:00:00Z", attr("valid_time"))
	assert.Equal(t, run.GroupPath("2m_above_ground", "TMP"), attr("source_path"))
	assert.Equal(t, "lambert_conformal_conic", attr("grid_mapping_name"))
	assert.NotEmpty(t, attr("proj4"))
}

func TestOpenHourDerivesLatLon(t *testing.T) {
	ctx := context.Background()
	store := newTraceStore()
	run := NewRun(time.Date(2020, 8, 1, 6, 0, 0, 0, time.UTC), Analysis)
	// Odd extents put one cell exactly on the projection origin.
	require.NoError(t, WriteSampleRun(ctx, store, SampleSpec{Run: run, NY: 5, NX: 7}))

	ds, err := OpenHour(ctx, store, run, "2m_above_ground", "TMP")
	require.NoError(t, err)

	lat, ok := ds.Coord("latitude")
	require.True(t, ok)
	lon, ok := ds.Coord("longitude")
	require.True(t, ok)
	assert.Equal(t, []string{DimY, DimX}, lat.Dims())
	assert.Equal(t, []int{5, 7}, lat.Shape())
	assert.False(t, lat.Loaded(), "derived coordinates stay lazy")

	latv, err := lat.Values(ctx)
	require.NoError(t, err)
	lonv, err := lon.Values(ctx)
	require.NoError(t, err)

	center := 2*7 + 3
	assert.InDelta(t, 38.5, latv[center], 1e-6)
	assert.InDelta(t, -97.5, lonv[center], 1e-6)

	assert.Greater(t, latv[4*7+3], latv[3], "latitude grows with y")
	assert.Greater(t, lonv[center+3], lonv[center-3], "longitude grows with x")
}

func TestOpenHourLeadSelectsForecastSlice(t *testing.T) {
	ctx := context.Background()
	store := newTraceStore()
	run := NewRun(time.Date(2020, 8, 1, 6, 0, 0, 0, time.UTC), Forecast)
	spec := SampleSpec{Run: run, NY: 4, NX: 6, Leads: 3}
	require.NoError(t, WriteSampleRun(ctx, store, spec))

	ds, err := OpenHourLead(ctx, store, run, "2m_above_ground", "TMP", 1)
	require.NoError(t, err)

	field, ok := ds.Field("TMP")
	require.True(t, ok)
	assert.Equal(t, []string{DimY, DimX}, field.Dims())
	assert.Equal(t, []int{4, 6}, field.Shape())
	assert.Equal(t, 2, field.Attrs()["lead_hours"])

	values, err := field.Values(ctx)
	require.NoError(t, err)
	for j := 0; j < 4; j++ {
		for i := 0; i < 6; i++ {
			assert.Equal(t, SampleValue(spec, 1, j, i), values[j*6+i], "cell (%d,%d)", j, i)
		}
	}

	v, _ := ds.Attr("valid_time")
	assert.Equal(t, "2020-08-01T08:00:00Z", v, "lead index 1 is valid two hours after the cycle")
}

func TestOpenHourErrors(t *testing.T) {
	ctx := context.Background()
	store := newTraceStore()
	anl := NewRun(time.Date(2020, 8, 1, 6, 0, 0, 0, time.UTC), Analysis)
	fcst := NewRun(time.Date(2020, 8, 1, 6, 0, 0, 0, time.UTC), Forecast)
	require.NoError(t, WriteSampleRun(ctx, store, SampleSpec{Run: anl, NY: 4, NX: 4}))
	require.NoError(t, WriteSampleRun(ctx, store, SampleSpec{Run: fcst, NY: 4, NX: 4, Leads: 2}))

	t.Run("missing run", func(t *testing.T) {
		missing := NewRun(time.Date(2020, 8, 2, 0, 0, 0, 0, time.UTC), Analysis)
		_, err := OpenHour(ctx, store, missing, "2m_above_ground", "TMP")
		assert.ErrorIs(t, err, zarr.ErrNotFound)
	})

	t.Run("unknown variable", func(t *testing.T) {
		_, err := OpenHour(ctx, store, anl, "2m_above_ground", "DPT")
		assert.ErrorIs(t, err, zarr.ErrNotFound)
	})

	t.Run("negative lead", func(t *testing.T) {
		_, err := OpenHourLead(ctx, store, fcst, "2m_above_ground", "TMP", -1)
		assert.ErrorContains(t, err, "negative lead")
	})

	t.Run("lead on analysis run", func(t *testing.T) {
		_, err := OpenHourLead(ctx, store, anl, "2m_above_ground", "TMP", 1)
		assert.ErrorContains(t, err, "no forecast leads")
	})

	t.Run("lead past stored range", func(t *testing.T) {
		_, err := OpenHourLead(ctx, store, fcst, "2m_above_ground", "TMP", 5)
		assert.ErrorContains(t, err, "out of range")
	})
}
