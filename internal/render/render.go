// Package render draws gridded fields as filled-contour PNG images.
// Values are classified into bands between level boundaries and each
// band is filled with one palette color, the raster equivalent of a
// filled contour plot.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/hrrr-zarr-analysis/internal/grid"
)

const (
	colorbarHeight = 12
	colorbarGap    = 4
)

// PlotLevels returns the band boundaries the style classifies values
// with. Explicit levels win; otherwise Bands equal intervals span the
// 2nd to 98th percentile of the finite values, with Min and Max
// pinning either end when set. Percentiles, not the raw extremes, so a
// few outlier cells cannot wash out the rest of the plot.
func PlotLevels(values []float64, style Style) ([]float64, error) {
	if len(style.Levels) > 0 {
		return style.Levels, nil
	}

	lo, hi, err := valueRange(values, style)
	if err != nil {
		return nil, err
	}
	levels := make([]float64, style.Bands+1)
	span := hi - lo
	for i := range levels {
		levels[i] = lo + span*float64(i)/float64(style.Bands)
	}
	return levels, nil
}

func valueRange(values []float64, style Style) (float64, float64, error) {
	var lo, hi float64
	if style.Min != nil {
		lo = *style.Min
	}
	if style.Max != nil {
		hi = *style.Max
	}
	if style.Min == nil || style.Max == nil {
		finite := make([]float64, 0, len(values))
		for _, v := range values {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				finite = append(finite, v)
			}
		}
		if len(finite) == 0 {
			return 0, 0, fmt.Errorf("no finite values to scale to")
		}
		sort.Float64s(finite)
		if style.Min == nil {
			lo = stat.Quantile(0.02, stat.Empirical, finite, nil)
		}
		if style.Max == nil {
			hi = stat.Quantile(0.98, stat.Empirical, finite, nil)
		}
	}
	if hi <= lo {
		// Flat field: widen to a unit band around the value.
		lo, hi = lo-0.5, lo+1.5
	}
	return lo, hi, nil
}

// bandIndex classifies v into the band whose boundaries bracket it.
// Values outside the boundaries clamp to the extreme bands.
func bandIndex(levels []float64, v float64) int {
	idx := sort.SearchFloat64s(levels, v) - 1
	if idx < 0 {
		return 0
	}
	if idx > len(levels)-2 {
		return len(levels) - 2
	}
	return idx
}

// Image rasterizes one band-classified grid. values is row-major with
// ny rows of nx cells, row 0 at the grid's south edge the way archive
// arrays are stored; the image puts north at the top. Each grid cell
// becomes a cell×cell pixel block. NaN cells stay transparent.
func Image(values []float64, ny, nx int, levels []float64, palette []color.NRGBA, cell int) (*image.RGBA, error) {
	if len(values) != ny*nx {
		return nil, fmt.Errorf("%d values for a %dx%d grid", len(values), ny, nx)
	}
	if len(palette) != len(levels)-1 {
		return nil, fmt.Errorf("%d colors for %d bands", len(palette), len(levels)-1)
	}
	if cell < 1 {
		return nil, fmt.Errorf("cell size %d", cell)
	}

	img := image.NewRGBA(image.Rect(0, 0, nx*cell, ny*cell))
	for j := 0; j < ny; j++ {
		row := values[j*nx : (j+1)*nx]
		top := (ny - 1 - j) * cell
		for i, v := range row {
			if math.IsNaN(v) {
				continue
			}
			fill(img, image.Rect(i*cell, top, (i+1)*cell, top+cell), palette[bandIndex(levels, v)])
		}
	}
	return img, nil
}

// Field renders a 2-D field with the style, appending a colorbar strip
// when the style asks for one.
func Field(ctx context.Context, f *grid.Field, style Style) (*image.RGBA, error) {
	if err := style.Validate(); err != nil {
		return nil, err
	}
	shape := f.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("field %q has shape %v, want 2-D", f.Name(), shape)
	}
	values, err := f.Values(ctx)
	if err != nil {
		return nil, err
	}
	levels, err := PlotLevels(values, style)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.Name(), err)
	}
	palette, err := Palette(style.Colormap, len(levels)-1)
	if err != nil {
		return nil, err
	}
	img, err := Image(values, shape[0], shape[1], levels, palette, style.CellSize)
	if err != nil {
		return nil, err
	}
	if style.Colorbar {
		img = withColorbar(img, palette)
	}
	return img, nil
}

// FieldPNG renders a 2-D field and encodes it as PNG.
func FieldPNG(ctx context.Context, f *grid.Field, style Style) ([]byte, error) {
	img, err := Field(ctx, f, style)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding field %q: %w", f.Name(), err)
	}
	return buf.Bytes(), nil
}

// withColorbar returns img with a horizontal band strip drawn below
// it, one segment per palette color from the lowest band to the
// highest.
func withColorbar(img *image.RGBA, palette []color.NRGBA) *image.RGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h+colorbarGap+colorbarHeight))
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)

	top := h + colorbarGap
	for i, c := range palette {
		left := i * w / len(palette)
		right := (i + 1) * w / len(palette)
		fill(out, image.Rect(left, top, right, top+colorbarHeight), c)
	}
	return out
}

func fill(img *image.RGBA, r image.Rectangle, c color.NRGBA) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}
