package render

import (
	"fmt"
	"image/color"
	"math"
	"sort"
)

// colormaps holds anchor colors, evenly spaced along [0,1] and
// interpolated linearly. The anchors follow the matplotlib palettes of
// the same names.
var colormaps = map[string][]color.NRGBA{
	"viridis": {
		{R: 68, G: 1, B: 84, A: 255},
		{R: 59, G: 82, B: 139, A: 255},
		{R: 33, G: 145, B: 140, A: 255},
		{R: 94, G: 201, B: 98, A: 255},
		{R: 253, G: 231, B: 37, A: 255},
	},
	"magma": {
		{R: 0, G: 0, B: 4, A: 255},
		{R: 81, G: 18, B: 124, A: 255},
		{R: 183, G: 55, B: 121, A: 255},
		{R: 252, G: 137, B: 97, A: 255},
		{R: 252, G: 253, B: 191, A: 255},
	},
	"coolwarm": {
		{R: 59, G: 76, B: 192, A: 255},
		{R: 144, G: 178, B: 254, A: 255},
		{R: 221, G: 221, B: 221, A: 255},
		{R: 245, G: 156, B: 125, A: 255},
		{R: 180, G: 4, B: 38, A: 255},
	},
	"greys": {
		{R: 250, G: 250, B: 250, A: 255},
		{R: 5, G: 5, B: 5, A: 255},
	},
}

// Colormaps returns the available colormap names, sorted.
func Colormaps() []string {
	names := make([]string, 0, len(colormaps))
	for name := range colormaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Palette samples n colors evenly from the named colormap.
func Palette(name string, n int) ([]color.NRGBA, error) {
	anchors, ok := colormaps[name]
	if !ok {
		return nil, fmt.Errorf("unknown colormap %q (have %v)", name, Colormaps())
	}
	if n < 1 {
		return nil, fmt.Errorf("palette size %d", n)
	}
	out := make([]color.NRGBA, n)
	for i := range out {
		pos := 0.5
		if n > 1 {
			pos = float64(i) / float64(n-1)
		}
		out[i] = sample(anchors, pos)
	}
	return out, nil
}

// sample interpolates the anchor colors at pos in [0,1].
func sample(anchors []color.NRGBA, pos float64) color.NRGBA {
	if pos <= 0 {
		return anchors[0]
	}
	if pos >= 1 {
		return anchors[len(anchors)-1]
	}
	scaled := pos * float64(len(anchors)-1)
	lo := int(math.Floor(scaled))
	frac := scaled - float64(lo)
	a, b := anchors[lo], anchors[lo+1]
	return color.NRGBA{
		R: lerp(a.R, b.R, frac),
		G: lerp(a.G, b.G, frac),
		B: lerp(a.B, b.B, frac),
		A: 255,
	}
}

func lerp(a, b uint8, frac float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*frac))
}
