package zarr

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// numcodecs codec IDs accepted in array metadata.
const (
	codecBlosc = "blosc"
	codecZlib  = "zlib"
	codecGzip  = "gzip"
	codecZstd  = "zstd"
)

// Blosc frame constants. See the c-blosc header description
// (README_HEADER.rst) for the layout.
const (
	bloscHeaderLen = 16
	bloscMaxStream = 16 // split blocks carry at most this many streams

	bloscFlagShuffle    = 0x01
	bloscFlagMemcpy     = 0x02
	bloscFlagBitShuffle = 0x04
	bloscFlagNoSplit    = 0x10

	bloscCodecBloscLZ = 0
	bloscCodecLZ4     = 1
	bloscCodecSnappy  = 2
	bloscCodecZlib    = 3
	bloscCodecZstd    = 4
)

var (
	zstdDecoder = mustZstdDecoder()
	zstdEncoder = mustZstdEncoder()
)

func mustZstdDecoder() *zstd.Decoder {
	d, err := zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}
	return d
}

func mustZstdEncoder() *zstd.Encoder {
	e, err := zstd.NewWriter(nil)
	if err != nil {
		panic(err)
	}
	return e
}

// Decompress reverses cfg on a stored chunk and returns exactly want
// bytes. A nil cfg means the chunk was stored raw.
func Decompress(cfg *CompressorConfig, src []byte, want int) ([]byte, error) {
	if cfg == nil {
		if len(src) != want {
			return nil, fmt.Errorf("raw chunk is %d bytes, want %d", len(src), want)
		}
		return src, nil
	}
	var (
		out []byte
		err error
	)
	switch cfg.ID {
	case codecZlib:
		out, err = readAllCompressed(zlib.NewReader, src, want)
	case codecGzip:
		out, err = readAllCompressed(func(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) }, src, want)
	case codecZstd:
		out, err = zstdDecoder.DecodeAll(src, make([]byte, 0, want))
	case codecBlosc:
		out, err = bloscDecompress(src)
	default:
		return nil, fmt.Errorf("compressor %q is not supported", cfg.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.ID, err)
	}
	if len(out) != want {
		return nil, fmt.Errorf("%s chunk decompressed to %d bytes, want %d", cfg.ID, len(out), want)
	}
	return out, nil
}

func readAllCompressed(open func(io.Reader) (io.ReadCloser, error), src []byte, want int) ([]byte, error) {
	r, err := open(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]byte, 0, want)
	buf := bytes.NewBuffer(out)
	// Cap the read so corrupt streams cannot balloon memory.
	if _, err := io.Copy(buf, io.LimitReader(r, int64(want)+1)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// bloscDecompress decodes a Blosc v1 frame: a 16-byte header, a block
// start index, and per-block compressed streams. Shuffled frames are
// unshuffled block by block, mirroring how c-blosc applied the filter.
func bloscDecompress(src []byte) ([]byte, error) {
	if len(src) < bloscHeaderLen {
		return nil, fmt.Errorf("frame of %d bytes is shorter than the header", len(src))
	}
	flags := src[2]
	typesize := int(src[3])
	nbytes := int(binary.LittleEndian.Uint32(src[4:]))
	blocksize := int(binary.LittleEndian.Uint32(src[8:]))
	cbytes := int(binary.LittleEndian.Uint32(src[12:]))
	if cbytes > len(src) {
		return nil, fmt.Errorf("header claims %d compressed bytes, frame has %d", cbytes, len(src))
	}
	if flags&bloscFlagBitShuffle != 0 {
		return nil, fmt.Errorf("bit-shuffled frames are not supported")
	}

	out := make([]byte, nbytes)
	if nbytes == 0 {
		return out, nil
	}
	if flags&bloscFlagMemcpy != 0 {
		if len(src) < bloscHeaderLen+nbytes {
			return nil, fmt.Errorf("memcpy frame truncated: %d bytes, want %d", len(src), bloscHeaderLen+nbytes)
		}
		copy(out, src[bloscHeaderLen:])
		return out, nil
	}
	if blocksize <= 0 {
		return nil, fmt.Errorf("invalid block size %d", blocksize)
	}
	if typesize < 1 {
		typesize = 1
	}

	codec := int(flags >> 5)
	shuffled := flags&bloscFlagShuffle != 0
	split := flags&bloscFlagNoSplit == 0 && typesize > 1 && typesize <= bloscMaxStream
	nblocks := (nbytes + blocksize - 1) / blocksize
	if len(src) < bloscHeaderLen+4*nblocks {
		return nil, fmt.Errorf("frame truncated before block index")
	}

	for b := 0; b < nblocks; b++ {
		bstart := int(binary.LittleEndian.Uint32(src[bloscHeaderLen+4*b:]))
		blockLen := blocksize
		if leftover := nbytes - b*blocksize; leftover < blockLen {
			blockLen = leftover
		}
		block := out[b*blocksize : b*blocksize+blockLen]

		// Leftover blocks are stored as a single stream even when the
		// frame otherwise splits blocks into per-byte streams.
		nstreams := 1
		if split && blockLen == blocksize && blocksize%typesize == 0 {
			nstreams = typesize
		}
		streamLen := blockLen / nstreams

		off := bstart
		for s := 0; s < nstreams; s++ {
			if off+4 > len(src) {
				return nil, fmt.Errorf("block %d stream %d starts past the frame end", b, s)
			}
			csize := int(int32(binary.LittleEndian.Uint32(src[off:])))
			off += 4
			if csize < 0 || off+csize > len(src) {
				return nil, fmt.Errorf("block %d stream %d claims %d bytes past the frame end", b, s, csize)
			}
			dst := block[s*streamLen : (s+1)*streamLen : (s+1)*streamLen]
			if csize == streamLen {
				// Incompressible streams are stored verbatim.
				copy(dst, src[off:off+csize])
			} else if err := bloscDecodeStream(codec, src[off:off+csize], dst); err != nil {
				return nil, fmt.Errorf("block %d stream %d: %w", b, s, err)
			}
			off += csize
		}
		if shuffled {
			unshuffleBytes(typesize, block)
		}
	}
	return out, nil
}

func bloscDecodeStream(codec int, src, dst []byte) error {
	switch codec {
	case bloscCodecLZ4:
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			return fmt.Errorf("lz4: %w", err)
		}
		if n != len(dst) {
			return fmt.Errorf("lz4: decoded %d bytes, want %d", n, len(dst))
		}
		return nil
	case bloscCodecSnappy:
		out, err := snappy.Decode(dst[:0], src)
		if err != nil {
			return fmt.Errorf("snappy: %w", err)
		}
		if len(out) != len(dst) {
			return fmt.Errorf("snappy: decoded %d bytes, want %d", len(out), len(dst))
		}
		if &out[0] != &dst[0] {
			copy(dst, out)
		}
		return nil
	case bloscCodecZlib:
		out, err := readAllCompressed(zlib.NewReader, src, len(dst))
		if err != nil {
			return fmt.Errorf("zlib: %w", err)
		}
		if len(out) != len(dst) {
			return fmt.Errorf("zlib: decoded %d bytes, want %d", len(out), len(dst))
		}
		copy(dst, out)
		return nil
	case bloscCodecZstd:
		out, err := zstdDecoder.DecodeAll(src, dst[:0])
		if err != nil {
			return fmt.Errorf("zstd: %w", err)
		}
		if len(out) != len(dst) {
			return fmt.Errorf("zstd: decoded %d bytes, want %d", len(out), len(dst))
		}
		if &out[0] != &dst[0] {
			copy(dst, out)
		}
		return nil
	case bloscCodecBloscLZ:
		return fmt.Errorf("blosclz streams are not supported")
	default:
		return fmt.Errorf("unknown inner codec %d", codec)
	}
}

// Compress applies cfg to raw chunk bytes. typesize is the array item
// size; Blosc records it in the frame header and uses it for the
// shuffle filter.
func Compress(cfg *CompressorConfig, raw []byte, typesize int) ([]byte, error) {
	if cfg == nil {
		return raw, nil
	}
	switch cfg.ID {
	case codecZlib:
		var buf bytes.Buffer
		w, err := zlib.NewWriterLevel(&buf, compressionLevel(cfg.Level))
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case codecGzip:
		var buf bytes.Buffer
		w, err := gzip.NewWriterLevel(&buf, compressionLevel(cfg.Level))
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case codecZstd:
		return zstdEncoder.EncodeAll(raw, nil), nil
	case codecBlosc:
		return bloscCompress(cfg, raw, typesize)
	default:
		return nil, fmt.Errorf("compressor %q is not supported", cfg.ID)
	}
}

func compressionLevel(level int) int {
	if level == 0 {
		return zlib.DefaultCompression
	}
	return level
}

// bloscCompress writes a single-block frame with the no-split layout.
// c-blosc accepts such frames regardless of the settings it would have
// chosen itself.
func bloscCompress(cfg *CompressorConfig, raw []byte, typesize int) ([]byte, error) {
	if typesize < 1 || typesize > 255 {
		typesize = 1
	}
	var codec byte
	cname := cfg.CName
	if cname == "" {
		cname = "lz4"
	}
	flags := byte(bloscFlagNoSplit)
	switch cfg.Shuffle {
	case 0:
	case 1:
		if typesize > 1 {
			flags |= bloscFlagShuffle
		}
	default:
		return nil, fmt.Errorf("blosc shuffle mode %d is not supported", cfg.Shuffle)
	}

	payload := raw
	if flags&bloscFlagShuffle != 0 {
		payload = shuffleBytes(typesize, raw)
	}

	var stream []byte
	switch cname {
	case "lz4", "lz4hc":
		codec = bloscCodecLZ4
		dst := make([]byte, lz4.CompressBlockBound(len(payload)))
		n, err := lz4.CompressBlock(payload, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		stream = dst[:n] // n == 0 means incompressible
	case "snappy":
		codec = bloscCodecSnappy
		stream = snappy.Encode(nil, payload)
	case "zlib":
		codec = bloscCodecZlib
		var buf bytes.Buffer
		w, err := zlib.NewWriterLevel(&buf, compressionLevel(cfg.CLevel))
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(payload); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		stream = buf.Bytes()
	case "zstd":
		codec = bloscCodecZstd
		stream = zstdEncoder.EncodeAll(payload, nil)
	default:
		return nil, fmt.Errorf("blosc cname %q is not supported", cname)
	}
	flags |= codec << 5

	nbytes := len(raw)
	if len(stream) == 0 || len(stream) >= nbytes {
		// Store verbatim when compression does not pay off.
		frame := make([]byte, bloscHeaderLen+nbytes)
		writeBloscHeader(frame, bloscFlagMemcpy|codec<<5, typesize, nbytes, nbytes, bloscHeaderLen+nbytes)
		copy(frame[bloscHeaderLen:], raw)
		return frame, nil
	}

	// Header, one block start, the stream length, the stream.
	frame := make([]byte, bloscHeaderLen+4+4+len(stream))
	writeBloscHeader(frame, flags, typesize, nbytes, nbytes, len(frame))
	binary.LittleEndian.PutUint32(frame[bloscHeaderLen:], uint32(bloscHeaderLen+4))
	binary.LittleEndian.PutUint32(frame[bloscHeaderLen+4:], uint32(len(stream)))
	copy(frame[bloscHeaderLen+8:], stream)
	return frame, nil
}

func writeBloscHeader(frame []byte, flags byte, typesize, nbytes, blocksize, cbytes int) {
	frame[0] = 2 // format version
	frame[1] = 1 // inner codec format version
	frame[2] = flags
	frame[3] = byte(typesize)
	binary.LittleEndian.PutUint32(frame[4:], uint32(nbytes))
	binary.LittleEndian.PutUint32(frame[8:], uint32(blocksize))
	binary.LittleEndian.PutUint32(frame[12:], uint32(cbytes))
}

// shuffleBytes rearranges buf so byte j of every item is grouped into
// plane j, returning a new buffer. Trailing bytes short of one item
// are copied through.
func shuffleBytes(typesize int, buf []byte) []byte {
	out := make([]byte, len(buf))
	n := len(buf) / typesize * typesize
	elems := n / typesize
	for j := 0; j < typesize; j++ {
		for i := 0; i < elems; i++ {
			out[j*elems+i] = buf[i*typesize+j]
		}
	}
	copy(out[n:], buf[n:])
	return out
}

// unshuffleBytes restores item order in place, the inverse of
// shuffleBytes.
func unshuffleBytes(typesize int, buf []byte) {
	if typesize <= 1 {
		return
	}
	n := len(buf) / typesize * typesize
	elems := n / typesize
	tmp := make([]byte, n)
	for j := 0; j < typesize; j++ {
		for i := 0; i < elems; i++ {
			tmp[i*typesize+j] = buf[j*elems+i]
		}
	}
	copy(buf, tmp)
}
