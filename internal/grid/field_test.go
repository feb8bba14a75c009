package grid

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestField_LoadsOnce(t *testing.T) {
	calls := 0
	f, err := NewField("TMP", []string{"y", "x"}, []int{2, 3}, nil, func(context.Context) ([]float64, error) {
		calls++
		return []float64{1, 2, 3, 4, 5, 6}, nil
	})
	require.NoError(t, err)
	assert.False(t, f.Loaded())

	v1, err := f.Values(context.Background())
	require.NoError(t, err)
	v2, err := f.Values(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, v1)
	assert.Equal(t, 1, calls, "loader should run once")
	assert.True(t, f.Loaded())
	assert.Equal(t, &v1[0], &v2[0], "repeated access returns the materialized slice")
}

func TestField_FailedLoadIsRetried(t *testing.T) {
	calls := 0
	f, err := NewField("TMP", []string{"x"}, []int{2}, nil, func(context.Context) ([]float64, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient")
		}
		return []float64{7, 8}, nil
	})
	require.NoError(t, err)

	_, err = f.Values(context.Background())
	require.Error(t, err)
	assert.False(t, f.Loaded())

	values, err := f.Values(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 8}, values)
	assert.Equal(t, 2, calls)
}

func TestField_LoaderSizeMismatch(t *testing.T) {
	f, err := NewField("TMP", []string{"x"}, []int{3}, nil, func(context.Context) ([]float64, error) {
		return []float64{1, 2}, nil
	})
	require.NoError(t, err)

	_, err = f.Values(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 values for shape [3]")
}

func TestNewField_Validation(t *testing.T) {
	_, err := NewField("bad", []string{"y", "x"}, []int{2}, nil, func(context.Context) ([]float64, error) { return nil, nil })
	assert.Error(t, err, "rank mismatch")

	_, err = NewField("bad", []string{"x"}, []int{0}, nil, func(context.Context) ([]float64, error) { return nil, nil })
	assert.Error(t, err, "zero extent")

	_, err = NewField("bad", []string{"x"}, []int{1}, nil, nil)
	assert.Error(t, err, "nil loader")
}

func TestNewFieldValues(t *testing.T) {
	f, err := NewFieldValues("x", []string{"x"}, []int{3}, map[string]any{"units": "m"}, []float64{0, 3000, 6000})
	require.NoError(t, err)
	assert.True(t, f.Loaded())
	assert.Equal(t, "m", f.Attrs()["units"])

	values, err := f.Values(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3000, 6000}, values)

	_, err = NewFieldValues("x", []string{"x"}, []int{3}, nil, []float64{1})
	assert.Error(t, err, "length mismatch")
}

func TestField_DimsAndShapeAreCopies(t *testing.T) {
	f, err := NewFieldValues("TMP", []string{"y", "x"}, []int{1, 2}, nil, []float64{1, 2})
	require.NoError(t, err)

	dims := f.Dims()
	dims[0] = "mutated"
	shape := f.Shape()
	shape[0] = 99

	assert.Equal(t, []string{"y", "x"}, f.Dims())
	assert.Equal(t, []int{1, 2}, f.Shape())
	assert.Equal(t, 2, f.Size())
}
