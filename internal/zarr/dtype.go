package zarr

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DType is a parsed NumPy typestring such as "<f2" or ">i4". Kind is
// the NumPy kind character: 'b' bool, 'i' signed int, 'u' unsigned
// int, 'f' IEEE float.
type DType struct {
	Kind      byte
	Size      int
	BigEndian bool
}

// ParseDType parses the dtype strings permitted by Zarr v2 for numeric
// arrays: an endianness marker ('<', '>', or '|' for single-byte
// types) followed by a kind character and a byte size.
func ParseDType(s string) (DType, error) {
	if len(s) < 3 {
		return DType{}, fmt.Errorf("dtype %q: too short", s)
	}
	var d DType
	switch s[0] {
	case '<', '|':
	case '>':
		d.BigEndian = true
	default:
		return DType{}, fmt.Errorf("dtype %q: unknown byte order %q", s, s[0])
	}
	d.Kind = s[1]
	switch s[2:] {
	case "1":
		d.Size = 1
	case "2":
		d.Size = 2
	case "4":
		d.Size = 4
	case "8":
		d.Size = 8
	default:
		return DType{}, fmt.Errorf("dtype %q: unsupported item size %q", s, s[2:])
	}
	switch d.Kind {
	case 'b':
		if d.Size != 1 {
			return DType{}, fmt.Errorf("dtype %q: bool must be one byte", s)
		}
	case 'i', 'u':
	case 'f':
		if d.Size == 1 {
			return DType{}, fmt.Errorf("dtype %q: no one-byte float", s)
		}
	default:
		return DType{}, fmt.Errorf("dtype %q: unsupported kind %q", s, d.Kind)
	}
	return d, nil
}

// String renders the typestring back in canonical form.
func (d DType) String() string {
	order := byte('<')
	if d.BigEndian {
		order = '>'
	}
	if d.Size == 1 {
		order = '|'
	}
	return fmt.Sprintf("%c%c%d", order, d.Kind, d.Size)
}

func (d DType) byteOrder() binary.ByteOrder {
	if d.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// DecodeFloat64 decodes raw item bytes into dst, widening every
// element to float64. len(raw) must equal len(dst)*d.Size.
func (d DType) DecodeFloat64(raw []byte, dst []float64) error {
	if len(raw) != len(dst)*d.Size {
		return fmt.Errorf("decoding %s: have %d bytes, want %d", d, len(raw), len(dst)*d.Size)
	}
	bo := d.byteOrder()
	switch {
	case d.Kind == 'b':
		for i := range dst {
			if raw[i] != 0 {
				dst[i] = 1
			} else {
				dst[i] = 0
			}
		}
	case d.Kind == 'i' && d.Size == 1:
		for i := range dst {
			dst[i] = float64(int8(raw[i]))
		}
	case d.Kind == 'i' && d.Size == 2:
		for i := range dst {
			dst[i] = float64(int16(bo.Uint16(raw[2*i:])))
		}
	case d.Kind == 'i' && d.Size == 4:
		for i := range dst {
			dst[i] = float64(int32(bo.Uint32(raw[4*i:])))
		}
	case d.Kind == 'i' && d.Size == 8:
		for i := range dst {
			dst[i] = float64(int64(bo.Uint64(raw[8*i:])))
		}
	case d.Kind == 'u' && d.Size == 1:
		for i := range dst {
			dst[i] = float64(raw[i])
		}
	case d.Kind == 'u' && d.Size == 2:
		for i := range dst {
			dst[i] = float64(bo.Uint16(raw[2*i:]))
		}
	case d.Kind == 'u' && d.Size == 4:
		for i := range dst {
			dst[i] = float64(bo.Uint32(raw[4*i:]))
		}
	case d.Kind == 'u' && d.Size == 8:
		for i := range dst {
			dst[i] = float64(bo.Uint64(raw[8*i:]))
		}
	case d.Kind == 'f' && d.Size == 2:
		for i := range dst {
			dst[i] = float64(halfToFloat32(bo.Uint16(raw[2*i:])))
		}
	case d.Kind == 'f' && d.Size == 4:
		for i := range dst {
			dst[i] = float64(math.Float32frombits(bo.Uint32(raw[4*i:])))
		}
	case d.Kind == 'f' && d.Size == 8:
		for i := range dst {
			dst[i] = math.Float64frombits(bo.Uint64(raw[8*i:]))
		}
	default:
		return fmt.Errorf("decoding %s: unsupported dtype", d)
	}
	return nil
}

// EncodeFloat64 is the inverse of DecodeFloat64; it narrows src into
// the on-disk representation. Integer kinds truncate toward zero.
func (d DType) EncodeFloat64(src []float64) ([]byte, error) {
	raw := make([]byte, len(src)*d.Size)
	bo := d.byteOrder()
	switch {
	case d.Kind == 'b':
		for i, v := range src {
			if v != 0 {
				raw[i] = 1
			}
		}
	case d.Kind == 'i' && d.Size == 1:
		for i, v := range src {
			raw[i] = byte(int8(v))
		}
	case d.Kind == 'i' && d.Size == 2:
		for i, v := range src {
			bo.PutUint16(raw[2*i:], uint16(int16(v)))
		}
	case d.Kind == 'i' && d.Size == 4:
		for i, v := range src {
			bo.PutUint32(raw[4*i:], uint32(int32(v)))
		}
	case d.Kind == 'i' && d.Size == 8:
		for i, v := range src {
			bo.PutUint64(raw[8*i:], uint64(int64(v)))
		}
	case d.Kind == 'u' && d.Size == 1:
		for i, v := range src {
			raw[i] = byte(uint8(v))
		}
	case d.Kind == 'u' && d.Size == 2:
		for i, v := range src {
			bo.PutUint16(raw[2*i:], uint16(v))
		}
	case d.Kind == 'u' && d.Size == 4:
		for i, v := range src {
			bo.PutUint32(raw[4*i:], uint32(v))
		}
	case d.Kind == 'u' && d.Size == 8:
		for i, v := range src {
			bo.PutUint64(raw[8*i:], uint64(v))
		}
	case d.Kind == 'f' && d.Size == 2:
		for i, v := range src {
			bo.PutUint16(raw[2*i:], float32ToHalf(float32(v)))
		}
	case d.Kind == 'f' && d.Size == 4:
		for i, v := range src {
			bo.PutUint32(raw[4*i:], math.Float32bits(float32(v)))
		}
	case d.Kind == 'f' && d.Size == 8:
		for i, v := range src {
			bo.PutUint64(raw[8*i:], math.Float64bits(v))
		}
	default:
		return nil, fmt.Errorf("encoding %s: unsupported dtype", d)
	}
	return raw, nil
}

// halfToFloat32 widens an IEEE 754 binary16 value. Subnormals, both
// infinities and NaN are preserved.
func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h) & 0x3ff
	switch exp {
	case 0:
		if frac == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal: renormalize into the float32 exponent range.
		e := uint32(127 - 15 + 1)
		for frac&0x400 == 0 {
			frac <<= 1
			e--
		}
		frac &= 0x3ff
		return math.Float32frombits(sign | e<<23 | frac<<13)
	case 0x1f:
		return math.Float32frombits(sign | 0xff<<23 | frac<<13)
	default:
		return math.Float32frombits(sign | (exp+127-15)<<23 | frac<<13)
	}
}

// float32ToHalf narrows to IEEE 754 binary16 with round-to-nearest-even.
// Values beyond the binary16 range become infinities.
func float32ToHalf(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>31) << 15
	exp := int32(bits>>23) & 0xff
	frac := bits & 0x7fffff
	switch {
	case exp == 0xff: // Inf or NaN
		if frac != 0 {
			return sign | 0x7e00
		}
		return sign | 0x7c00
	case exp-127 > 15: // overflow
		return sign | 0x7c00
	case exp-127 < -24: // underflows to signed zero
		return sign
	case exp-127 < -14: // subnormal
		shift := uint32(-(exp - 127) - 14 + 13)
		mant := (frac | 0x800000) >> shift
		if (frac|0x800000)&(1<<(shift-1)) != 0 {
			mant++
		}
		return sign | uint16(mant)
	default:
		h := sign | uint16(exp-127+15)<<10 | uint16(frac>>13)
		// Round to nearest, ties to even.
		if frac&0x1000 != 0 && (frac&0xfff != 0 || h&1 != 0) {
			h++
		}
		return h
	}
}
