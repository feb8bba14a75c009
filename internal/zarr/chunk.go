package zarr

import (
	"strconv"
	"strings"
)

// gridShape returns the number of chunks along each dimension:
// ceil(shape[i] / chunks[i]).
func gridShape(shape, chunks []int) []int {
	grid := make([]int, len(shape))
	for i := range shape {
		grid[i] = (shape[i] + chunks[i] - 1) / chunks[i]
	}
	return grid
}

// chunkKey renders grid indices as a storage key suffix, e.g. "2.0"
// with the "." separator or "2/0" with "/".
func chunkKey(idx []int, sep string) string {
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, sep)
}

// product multiplies the extents of a shape. Empty shapes count one
// element, matching NumPy scalars.
func product(shape []int) int {
	n := 1
	for _, v := range shape {
		n *= v
	}
	return n
}

// nextIndex advances idx through the odometer of grid shape, least
// significant dimension last. It reports false after the final index.
func nextIndex(idx, grid []int) bool {
	for d := len(idx) - 1; d >= 0; d-- {
		idx[d]++
		if idx[d] < grid[d] {
			return true
		}
		idx[d] = 0
	}
	return false
}

// strides computes row-major strides for a shape, in elements.
func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for d := len(shape) - 1; d >= 0; d-- {
		s[d] = acc
		acc *= shape[d]
	}
	return s
}

// fillRegion writes v over a rectangular region of a row-major buffer
// shaped dstShape, spanning count elements per dimension from dstStart.
func fillRegion(dst []float64, dstShape, dstStart, count []int, v float64) {
	n := len(count)
	if n == 0 {
		dst[0] = v
		return
	}
	dstStride := strides(dstShape)
	dstOff := 0
	for d := 0; d < n; d++ {
		dstOff += dstStart[d] * dstStride[d]
	}
	run := count[n-1]
	pos := make([]int, n-1)
	for {
		row := dst[dstOff : dstOff+run]
		for i := range row {
			row[i] = v
		}
		d := n - 2
		for ; d >= 0; d-- {
			pos[d]++
			dstOff += dstStride[d]
			if pos[d] < count[d] {
				break
			}
			dstOff -= count[d] * dstStride[d]
			pos[d] = 0
		}
		if d < 0 {
			return
		}
	}
}

// copyRegion copies a rectangular region between two row-major
// buffers. The region spans count elements per dimension, starting at
// srcStart in src (shaped srcShape) and dstStart in dst (shaped
// dstShape). Runs along the last dimension copy contiguously.
func copyRegion(dst, src []float64, dstShape, srcShape, dstStart, srcStart, count []int) {
	n := len(count)
	if n == 0 {
		dst[0] = src[0]
		return
	}
	dstStride := strides(dstShape)
	srcStride := strides(srcShape)

	dstOff := 0
	srcOff := 0
	for d := 0; d < n; d++ {
		dstOff += dstStart[d] * dstStride[d]
		srcOff += srcStart[d] * srcStride[d]
	}

	run := count[n-1]
	// Odometer over all dimensions but the last.
	pos := make([]int, n-1)
	for {
		copy(dst[dstOff:dstOff+run], src[srcOff:srcOff+run])
		d := n - 2
		for ; d >= 0; d-- {
			pos[d]++
			dstOff += dstStride[d]
			srcOff += srcStride[d]
			if pos[d] < count[d] {
				break
			}
			dstOff -= count[d] * dstStride[d]
			srcOff -= count[d] * srcStride[d]
			pos[d] = 0
		}
		if d < 0 {
			return
		}
	}
}
