// Package zarr reads Zarr v2 hierarchies from an object store.
//
// # Format
//
// A Zarr v2 node is a directory-like prefix in a store. Groups carry a
// ".zgroup" object and optional ".zattrs"; arrays carry ".zarray"
// metadata (shape, chunk shape, dtype, compressor, fill value) plus one
// object per chunk, keyed by the chunk's grid indices joined with the
// dimension separator ("0.0", "1.4", ...). A root may also carry
// ".zmetadata", a consolidated copy of every node's metadata, which
// lets a reader learn the whole hierarchy in one request.
//
// Spec: https://zarr.readthedocs.io/en/stable/spec/v2.html
//
// # Reading model
//
// Opening a group or array fetches metadata objects only. Chunk data
// moves when Read or ReadSection is called: the covering chunks are
// fetched (concurrently, bounded by the array's fetch limit),
// decompressed, unshuffled if the compressor asked for it, decoded
// from the on-disk dtype, and assembled into a row-major []float64.
// Chunks absent from the store decode to the array's fill value, per
// the spec.
//
// Supported dtypes are the numeric ones that appear in meteorological
// archives: bool, signed/unsigned integers of 1-8 bytes, and IEEE
// floats of 2, 4, or 8 bytes, little- or big-endian. Values widen to
// float64. C (row-major) order only.
//
// # Compressors
//
// The numcodecs IDs "zlib", "gzip", "zstd", and "blosc" are supported,
// plus uncompressed arrays (null compressor). Blosc frames may use the
// lz4, lz4hc, zstd, zlib, or snappy inner codecs with optional
// byte-shuffle. Bit-shuffle and blosclz are not supported.
package zarr
