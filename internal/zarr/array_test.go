package zarr

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestArray stores a float64 array holding 0..n-1 row-major under
// path and returns the data for comparisons.
func writeTestArray(t *testing.T, store *memStore, path string, shape, chunks []int) []float64 {
	t.Helper()
	data := make([]float64, product(shape))
	for i := range data {
		data[i] = float64(i)
	}
	meta := NewArrayMeta(shape, chunks, "<f8", &CompressorConfig{ID: "zlib", Level: 5})
	w := NewTreeWriter(store, "")
	require.NoError(t, w.Array(context.Background(), path, meta, map[string]any{"units": "K"}, data))
	return data
}

func chunkGets(store *memStore, path string) []string {
	var keys []string
	for _, k := range store.gets {
		rest, ok := strings.CutPrefix(k, path+"/")
		if ok && !strings.HasPrefix(rest, ".z") {
			keys = append(keys, rest)
		}
	}
	return keys
}

func TestOpenArrayFetchesMetadataOnly(t *testing.T) {
	store := newMemStore()
	writeTestArray(t, store, "t2m", []int{4, 6}, []int{2, 3})
	store.gets = nil

	arr, err := OpenArray(context.Background(), store, "t2m")
	require.NoError(t, err)

	assert.Equal(t, []int{4, 6}, arr.Shape())
	assert.Equal(t, []int{2, 3}, arr.Chunks())
	assert.Equal(t, 2, arr.NDim())
	assert.Equal(t, 24, arr.Size())
	assert.Equal(t, 4, arr.NumChunks())
	assert.Equal(t, "K", arr.Attrs()["units"])

	assert.ElementsMatch(t, []string{"t2m/.zarray", "t2m/.zattrs"}, store.gets,
		"opening must not touch chunk objects")
}

func TestOpenArrayWithoutAttrs(t *testing.T) {
	store := newMemStore()
	writeTestArray(t, store, "t2m", []int{2, 2}, []int{2, 2})
	store.delete("t2m/.zattrs")

	arr, err := OpenArray(context.Background(), store, "t2m")
	require.NoError(t, err)
	assert.Empty(t, arr.Attrs())
}

func TestOpenArrayMissing(t *testing.T) {
	store := newMemStore()
	_, err := OpenArray(context.Background(), store, "absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArrayReadAssemblesChunks(t *testing.T) {
	// 6 columns over chunk width 4 leaves a partial edge chunk.
	store := newMemStore()
	data := writeTestArray(t, store, "t2m", []int{4, 6}, []int{2, 4})

	arr, err := OpenArray(context.Background(), store, "t2m")
	require.NoError(t, err)

	got, err := arr.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestArrayReadSectionFetchesOnlyCoveringChunks(t *testing.T) {
	store := newMemStore()
	data := writeTestArray(t, store, "t2m", []int{6, 6}, []int{2, 2})

	arr, err := OpenArray(context.Background(), store, "t2m")
	require.NoError(t, err)

	t.Run("chunk aligned", func(t *testing.T) {
		store.gets = nil
		got, err := arr.ReadSection(context.Background(), []int{2, 2}, []int{2, 2})
		require.NoError(t, err)

		assert.Equal(t, []float64{
			data[2*6+2], data[2*6+3],
			data[3*6+2], data[3*6+3],
		}, got)
		assert.Equal(t, []string{"1.1"}, chunkGets(store, "t2m"))
	})

	t.Run("straddles chunk boundaries", func(t *testing.T) {
		store.gets = nil
		got, err := arr.ReadSection(context.Background(), []int{1, 1}, []int{2, 2})
		require.NoError(t, err)

		assert.Equal(t, []float64{
			data[1*6+1], data[1*6+2],
			data[2*6+1], data[2*6+2],
		}, got)
		assert.ElementsMatch(t, []string{"0.0", "0.1", "1.0", "1.1"}, chunkGets(store, "t2m"))
	})

	t.Run("single element", func(t *testing.T) {
		store.gets = nil
		got, err := arr.ReadSection(context.Background(), []int{5, 0}, []int{1, 1})
		require.NoError(t, err)

		assert.Equal(t, []float64{data[5*6]}, got)
		assert.Equal(t, []string{"2.0"}, chunkGets(store, "t2m"))
	})
}

func TestArrayReadMissingChunkIsFill(t *testing.T) {
	// Null fill on a float dtype decodes to NaN, matching how the
	// archive represents never-written regions.
	store := newMemStore()
	data := writeTestArray(t, store, "t2m", []int{4, 4}, []int{2, 2})
	store.delete("t2m/1.1")

	arr, err := OpenArray(context.Background(), store, "t2m")
	require.NoError(t, err)

	got, err := arr.Read(context.Background())
	require.NoError(t, err)

	for j := 0; j < 4; j++ {
		for i := 0; i < 4; i++ {
			v := got[j*4+i]
			if j >= 2 && i >= 2 {
				assert.True(t, math.IsNaN(v), "cell (%d,%d) should read as fill", j, i)
			} else {
				assert.Equal(t, data[j*4+i], v, "cell (%d,%d)", j, i)
			}
		}
	}
}

func TestArrayReadSectionBounds(t *testing.T) {
	store := newMemStore()
	writeTestArray(t, store, "t2m", []int{4, 6}, []int{2, 3})

	arr, err := OpenArray(context.Background(), store, "t2m")
	require.NoError(t, err)

	tests := []struct {
		name  string
		start []int
		count []int
	}{
		{"rank mismatch", []int{0}, []int{2}},
		{"negative start", []int{-1, 0}, []int{2, 2}},
		{"zero count", []int{0, 0}, []int{0, 2}},
		{"past the end", []int{3, 0}, []int{2, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := arr.ReadSection(context.Background(), tt.start, tt.count)
			assert.ErrorContains(t, err, "section")
		})
	}
}

func TestConsolidatedGroupOpensArrayWithoutFetches(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	w := NewTreeWriter(store, "run")
	require.NoError(t, w.Group(ctx, "", map[string]any{"source": "test"}))
	require.NoError(t, w.Group(ctx, "surface", nil))
	meta := NewArrayMeta([]int{2, 3}, []int{2, 3}, "<f8", &CompressorConfig{ID: "zlib", Level: 5})
	require.NoError(t, w.Array(ctx, "surface/t2m", meta, map[string]any{"units": "K"},
		[]float64{1, 2, 3, 4, 5, 6}))
	require.NoError(t, w.Consolidate(ctx))

	store.gets = nil
	g, err := OpenGroup(ctx, store, "run")
	require.NoError(t, err)
	assert.True(t, g.Consolidated())
	assert.Equal(t, "test", g.Attrs()["source"])

	sub, err := g.Group(ctx, "surface")
	require.NoError(t, err)

	arr, err := sub.Array(ctx, "t2m")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, arr.Shape())
	assert.Equal(t, "K", arr.Attrs()["units"])

	assert.Equal(t, []string{"run/.zmetadata"}, store.gets,
		"consolidated metadata must answer all member lookups")

	got, err := arr.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, got)
}

func TestPlainGroupFallsBackWithoutConsolidation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	w := NewTreeWriter(store, "run")
	require.NoError(t, w.Group(ctx, "", nil))
	meta := NewArrayMeta([]int{2}, []int{2}, "<f8", nil)
	require.NoError(t, w.Array(ctx, "t2m", meta, nil, []float64{7, 8}))

	g, err := OpenGroup(ctx, store, "run")
	require.NoError(t, err)
	assert.False(t, g.Consolidated())

	arr, err := g.Array(ctx, "t2m")
	require.NoError(t, err)
	got, err := arr.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 8}, got)

	_, err = g.Array(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
