package zarr

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArrayMeta(t *testing.T) {
	doc := `{
		"zarr_format": 2,
		"shape": [1059, 1799],
		"chunks": [150, 150],
		"dtype": "<f2",
		"compressor": {"id": "blosc", "cname": "zstd", "clevel": 9, "shuffle": 1, "blocksize": 0},
		"fill_value": null,
		"order": "C",
		"filters": null
	}`
	m, err := ParseArrayMeta([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, []int{1059, 1799}, m.Shape)
	assert.Equal(t, []int{150, 150}, m.Chunks)
	assert.Equal(t, "<f2", m.DType)
	require.NotNil(t, m.Compressor)
	assert.Equal(t, "blosc", m.Compressor.ID)
	assert.Equal(t, "zstd", m.Compressor.CName)
	assert.Equal(t, 1, m.Compressor.Shuffle)
	assert.Equal(t, ".", m.Separator())

	fill, err := m.FillFloat()
	require.NoError(t, err)
	assert.True(t, math.IsNaN(fill), "null fill on a float dtype reads as NaN")
}

func TestParseArrayMetaRejects(t *testing.T) {
	base := func() *ArrayMeta {
		return NewArrayMeta([]int{4, 6}, []int{2, 3}, "<f4", nil)
	}
	tests := []struct {
		name    string
		mutate  func(*ArrayMeta)
		wantErr string
	}{
		{"wrong format version", func(m *ArrayMeta) { m.ZarrFormat = 3 }, "only version 2"},
		{"fortran order", func(m *ArrayMeta) { m.Order = "F" }, "only C"},
		{"chunk rank mismatch", func(m *ArrayMeta) { m.Chunks = []int{2} }, "rank"},
		{"zero dimension", func(m *ArrayMeta) { m.Shape = []int{0, 6} }, "positive"},
		{"zero chunk", func(m *ArrayMeta) { m.Chunks = []int{0, 3} }, "positive"},
		{"empty shape", func(m *ArrayMeta) { m.Shape = nil; m.Chunks = nil }, "empty"},
		{"filters present", func(m *ArrayMeta) { m.Filters = []json.RawMessage{json.RawMessage(`{"id":"delta"}`)} }, "filters"},
		{"bad separator", func(m *ArrayMeta) { m.DimensionSeparator = "-" }, "dimension_separator"},
		{"bad dtype", func(m *ArrayMeta) { m.DType = "<c16" }, "dtype"},
		{"unknown compressor", func(m *ArrayMeta) { m.Compressor = &CompressorConfig{ID: "lzma"} }, "not supported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base()
			tt.mutate(m)
			err := m.Validate()
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestFillFloat(t *testing.T) {
	tests := []struct {
		name  string
		dtype string
		fill  string
		want  float64
	}{
		{"number", "<f4", `9999.0`, 9999},
		{"integer zero default", "<i2", `null`, 0},
		{"negative infinity", "<f8", `"-Infinity"`, math.Inf(-1)},
		{"positive infinity", "<f8", `"Infinity"`, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewArrayMeta([]int{2}, []int{2}, tt.dtype, nil)
			m.FillValue = json.RawMessage(tt.fill)
			got, err := m.FillFloat()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("nan string", func(t *testing.T) {
		m := NewArrayMeta([]int{2}, []int{2}, "<f4", nil)
		m.FillValue = json.RawMessage(`"NaN"`)
		got, err := m.FillFloat()
		require.NoError(t, err)
		assert.True(t, math.IsNaN(got))
	})

	t.Run("unsupported string", func(t *testing.T) {
		m := NewArrayMeta([]int{2}, []int{2}, "<f4", nil)
		m.FillValue = json.RawMessage(`"AAA="`)
		_, err := m.FillFloat()
		assert.Error(t, err)
	})
}

func TestSeparator(t *testing.T) {
	m := NewArrayMeta([]int{2}, []int{2}, "<f4", nil)
	assert.Equal(t, ".", m.Separator())
	m.DimensionSeparator = "/"
	assert.Equal(t, "/", m.Separator())
}

func TestParseConsolidatedMeta(t *testing.T) {
	doc := `{
		"zarr_consolidated_format": 1,
		"metadata": {
			".zgroup": {"zarr_format": 2},
			"temp/.zarray": {"zarr_format": 2, "shape": [4], "chunks": [2], "dtype": "<f4",
				"compressor": null, "fill_value": null, "order": "C", "filters": null}
		}
	}`
	c, err := ParseConsolidatedMeta([]byte(doc))
	require.NoError(t, err)
	assert.Len(t, c.Metadata, 2)
	assert.Contains(t, c.Metadata, "temp/.zarray")

	_, err = ParseConsolidatedMeta([]byte(`{"zarr_consolidated_format": 2, "metadata": {}}`))
	assert.ErrorContains(t, err, "only version 1")

	_, err = ParseConsolidatedMeta([]byte(`{"zarr_consolidated_format": 1}`))
	assert.ErrorContains(t, err, "no metadata")
}
