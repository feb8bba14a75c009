package zarr

import (
	"context"
	"encoding/json"
	"fmt"
)

// WriteStore is the write half of a chunk store.
type WriteStore interface {
	Put(ctx context.Context, key string, data []byte) error
}

// NewArrayMeta describes a v2 array with the fixed fields (format
// version, C order, null fill) already set.
func NewArrayMeta(shape, chunks []int, dtype string, comp *CompressorConfig) *ArrayMeta {
	return &ArrayMeta{
		ZarrFormat: FormatVersion,
		Shape:      shape,
		Chunks:     chunks,
		DType:      dtype,
		Compressor: comp,
		FillValue:  json.RawMessage("null"),
		Order:      "C",
	}
}

// TreeWriter writes a Zarr v2 hierarchy under a root prefix and keeps
// the metadata of every node it wrote so the root can be consolidated
// afterwards. It backs test fixtures and the mock archive generator.
type TreeWriter struct {
	store WriteStore
	root  string
	nodes map[string]json.RawMessage
}

// NewTreeWriter writes nodes under root, which may be empty when the
// store itself is the hierarchy root.
func NewTreeWriter(store WriteStore, root string) *TreeWriter {
	return &TreeWriter{store: store, root: root, nodes: map[string]json.RawMessage{}}
}

// Group writes a group node at path (relative to the root; empty for
// the root itself). Nil attrs write no ".zattrs" object.
func (w *TreeWriter) Group(ctx context.Context, path string, attrs map[string]any) error {
	meta, err := json.Marshal(GroupMeta{ZarrFormat: FormatVersion})
	if err != nil {
		return err
	}
	if err := w.putNode(ctx, joinKey(path, groupMetaKey), meta); err != nil {
		return fmt.Errorf("writing group %q: %w", path, err)
	}
	return w.writeAttrs(ctx, path, attrs)
}

// Array writes an array node at path: its metadata, optional
// attributes, and every chunk of data, which must hold exactly
// product(meta.Shape) row-major elements. Edge chunks pad with the
// fill value.
func (w *TreeWriter) Array(ctx context.Context, path string, meta *ArrayMeta, attrs map[string]any, data []float64) error {
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("writing array %q: %w", path, err)
	}
	if len(data) != product(meta.Shape) {
		return fmt.Errorf("writing array %q: %d elements for shape %v", path, len(data), meta.Shape)
	}
	dtype, err := ParseDType(meta.DType)
	if err != nil {
		return fmt.Errorf("writing array %q: %w", path, err)
	}
	fill, err := meta.FillFloat()
	if err != nil {
		return fmt.Errorf("writing array %q: %w", path, err)
	}
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("writing array %q: %w", path, err)
	}
	if err := w.putNode(ctx, joinKey(path, arrayMetaKey), metaRaw); err != nil {
		return fmt.Errorf("writing array %q: %w", path, err)
	}
	if err := w.writeAttrs(ctx, path, attrs); err != nil {
		return err
	}

	chunkElems := product(meta.Chunks)
	buf := make([]float64, chunkElems)
	zero := make([]int, len(meta.Shape))
	regionCount := make([]int, len(meta.Shape))
	srcStart := make([]int, len(meta.Shape))

	grid := gridShape(meta.Shape, meta.Chunks)
	idx := make([]int, len(grid))
	for {
		edge := false
		for d := range idx {
			srcStart[d] = idx[d] * meta.Chunks[d]
			regionCount[d] = min(meta.Chunks[d], meta.Shape[d]-srcStart[d])
			if regionCount[d] < meta.Chunks[d] {
				edge = true
			}
		}
		if edge {
			for i := range buf {
				buf[i] = fill
			}
		}
		copyRegion(buf, data, meta.Chunks, meta.Shape, zero, srcStart, regionCount)

		raw, eerr := dtype.EncodeFloat64(buf)
		if eerr != nil {
			return fmt.Errorf("writing array %q: %w", path, eerr)
		}
		comp, cerr := Compress(meta.Compressor, raw, dtype.Size)
		if cerr != nil {
			return fmt.Errorf("writing array %q: %w", path, cerr)
		}
		key := joinKey(path, chunkKey(idx, meta.Separator()))
		if perr := w.store.Put(ctx, joinKey(w.root, key), comp); perr != nil {
			return fmt.Errorf("writing chunk %s: %w", key, perr)
		}
		if !nextIndex(idx, grid) {
			return nil
		}
	}
}

// Consolidate writes the root ".zmetadata" describing every node
// written through this TreeWriter.
func (w *TreeWriter) Consolidate(ctx context.Context) error {
	raw, err := json.Marshal(ConsolidatedMeta{Format: 1, Metadata: w.nodes})
	if err != nil {
		return err
	}
	if err := w.store.Put(ctx, joinKey(w.root, consolidatedKey), raw); err != nil {
		return fmt.Errorf("writing .zmetadata: %w", err)
	}
	return nil
}

func (w *TreeWriter) writeAttrs(ctx context.Context, path string, attrs map[string]any) error {
	if len(attrs) == 0 {
		return nil
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("writing attributes of %q: %w", path, err)
	}
	return w.putNode(ctx, joinKey(path, attrsKey), raw)
}

func (w *TreeWriter) putNode(ctx context.Context, key string, data []byte) error {
	w.nodes[key] = json.RawMessage(data)
	return w.store.Put(ctx, joinKey(w.root, key), data)
}
