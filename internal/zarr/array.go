package zarr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Store provides read access to the objects of a Zarr hierarchy. Keys
// are slash-separated paths relative to the hierarchy root. Get
// returns an error wrapping ErrNotFound for keys with no object.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// ErrNotFound marks a key with no stored object. For chunk keys this
// is not an error condition: Zarr leaves all-fill chunks unwritten.
var ErrNotFound = errors.New("zarr: object not found")

// DefaultFetchLimit bounds how many chunk fetches a single read runs
// concurrently when the caller does not choose a limit.
const DefaultFetchLimit = 8

// Array is a handle on a Zarr v2 array. Opening one fetches metadata
// only; chunk objects move on Read and ReadSection.
type Array struct {
	// FetchLimit caps concurrent chunk fetches during a read. Zero
	// means DefaultFetchLimit. Set it before the first read.
	FetchLimit int

	store Store
	path  string
	meta  *ArrayMeta
	dtype DType
	fill  float64
	attrs map[string]any
}

// OpenArray reads the metadata of the array stored under path and
// returns a lazy handle on it.
func OpenArray(ctx context.Context, store Store, path string) (*Array, error) {
	metaRaw, err := store.Get(ctx, joinKey(path, arrayMetaKey))
	if err != nil {
		return nil, fmt.Errorf("opening array %q: %w", path, err)
	}
	attrsRaw, err := store.Get(ctx, joinKey(path, attrsKey))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("reading attributes of array %q: %w", path, err)
	}
	return NewArray(store, path, metaRaw, attrsRaw)
}

// NewArray builds an Array from metadata documents that have already
// been fetched, as consolidated group metadata provides them. attrsRaw
// may be nil.
func NewArray(store Store, path string, metaRaw, attrsRaw []byte) (*Array, error) {
	meta, err := ParseArrayMeta(metaRaw)
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", path, err)
	}
	attrs, err := parseAttrs(attrsRaw)
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", path, err)
	}
	dtype, err := ParseDType(meta.DType)
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", path, err)
	}
	fill, err := meta.FillFloat()
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", path, err)
	}
	return &Array{store: store, path: path, meta: meta, dtype: dtype, fill: fill, attrs: attrs}, nil
}

// Path returns the array's location within its store.
func (a *Array) Path() string { return a.path }

// Shape returns a copy of the array dimensions.
func (a *Array) Shape() []int { return append([]int(nil), a.meta.Shape...) }

// Chunks returns a copy of the chunk dimensions.
func (a *Array) Chunks() []int { return append([]int(nil), a.meta.Chunks...) }

// NDim returns the number of dimensions.
func (a *Array) NDim() int { return len(a.meta.Shape) }

// Size returns the total element count.
func (a *Array) Size() int { return product(a.meta.Shape) }

// NumChunks returns how many chunk objects a fully written array has.
func (a *Array) NumChunks() int { return product(gridShape(a.meta.Shape, a.meta.Chunks)) }

// DType returns the parsed element type.
func (a *Array) DType() DType { return a.dtype }

// FillValue returns the value missing chunks decode to.
func (a *Array) FillValue() float64 { return a.fill }

// Attrs returns the array's user attributes. The map is shared, not a
// copy.
func (a *Array) Attrs() map[string]any { return a.attrs }

// Read fetches the whole array as a row-major []float64.
func (a *Array) Read(ctx context.Context) ([]float64, error) {
	start := make([]int, a.NDim())
	return a.ReadSection(ctx, start, a.meta.Shape)
}

// ReadSection fetches the hyperrectangle of count elements starting at
// start, as a row-major []float64 shaped count. Only the chunks
// overlapping the section are fetched, concurrently up to FetchLimit;
// chunks missing from the store contribute the fill value.
func (a *Array) ReadSection(ctx context.Context, start, count []int) ([]float64, error) {
	if err := a.checkSection(start, count); err != nil {
		return nil, fmt.Errorf("array %q: %w", a.path, err)
	}
	out := make([]float64, product(count))

	first := make([]int, a.NDim())
	gridCount := make([]int, a.NDim())
	for d := range first {
		first[d] = start[d] / a.meta.Chunks[d]
		last := (start[d] + count[d] - 1) / a.meta.Chunks[d]
		gridCount[d] = last - first[d] + 1
	}

	limit := a.FetchLimit
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	offset := make([]int, a.NDim())
	for {
		idx := make([]int, a.NDim())
		for d := range idx {
			idx[d] = first[d] + offset[d]
		}
		g.Go(func() error {
			return a.readChunkInto(gctx, idx, out, start, count)
		})
		if !nextIndex(offset, gridCount) {
			break
		}
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("array %q: %w", a.path, err)
	}
	return out, nil
}

func (a *Array) checkSection(start, count []int) error {
	if len(start) != a.NDim() || len(count) != a.NDim() {
		return fmt.Errorf("section rank %d/%d does not match array rank %d", len(start), len(count), a.NDim())
	}
	for d := range start {
		if start[d] < 0 || count[d] < 1 || start[d]+count[d] > a.meta.Shape[d] {
			return fmt.Errorf("section [%d, %d) exceeds dimension %d of extent %d",
				start[d], start[d]+count[d], d, a.meta.Shape[d])
		}
	}
	return nil
}

// readChunkInto fetches one chunk and copies its overlap with the
// section into out. Each chunk writes a disjoint region, so concurrent
// calls for distinct chunks are safe.
func (a *Array) readChunkInto(ctx context.Context, idx []int, out []float64, start, count []int) error {
	key := joinKey(a.path, chunkKey(idx, a.meta.Separator()))
	raw, err := a.store.Get(ctx, key)

	var chunk []float64
	switch {
	case errors.Is(err, ErrNotFound):
		// Unwritten chunk: the region reads as fill.
	case err != nil:
		return fmt.Errorf("chunk %s: %w", key, err)
	default:
		chunkElems := product(a.meta.Chunks)
		decomp, derr := Decompress(a.meta.Compressor, raw, chunkElems*a.dtype.Size)
		if derr != nil {
			return fmt.Errorf("chunk %s: %w", key, derr)
		}
		chunk = make([]float64, chunkElems)
		if derr := a.dtype.DecodeFloat64(decomp, chunk); derr != nil {
			return fmt.Errorf("chunk %s: %w", key, derr)
		}
	}

	n := a.NDim()
	regionCount := make([]int, n)
	srcStart := make([]int, n)
	dstStart := make([]int, n)
	for d := 0; d < n; d++ {
		origin := idx[d] * a.meta.Chunks[d]
		lo := max(start[d], origin)
		hi := min(start[d]+count[d], origin+a.meta.Chunks[d])
		regionCount[d] = hi - lo
		srcStart[d] = lo - origin
		dstStart[d] = lo - start[d]
	}
	if chunk == nil {
		fillRegion(out, count, dstStart, regionCount, a.fill)
		return nil
	}
	copyRegion(out, chunk, count, a.meta.Chunks, dstStart, srcStart, regionCount)
	return nil
}

// joinKey joins non-empty path segments with slashes.
func joinKey(parts ...string) string {
	segs := parts[:0:0]
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			segs = append(segs, p)
		}
	}
	return strings.Join(segs, "/")
}
