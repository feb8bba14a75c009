package zarr

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// FormatVersion is the only zarr_format this package reads or writes.
const FormatVersion = 2

// Well-known object names inside a node prefix.
const (
	arrayMetaKey    = ".zarray"
	groupMetaKey    = ".zgroup"
	attrsKey        = ".zattrs"
	consolidatedKey = ".zmetadata"
)

// ArrayMeta mirrors the fields of a ".zarray" document.
type ArrayMeta struct {
	ZarrFormat         int               `json:"zarr_format"`
	Shape              []int             `json:"shape"`
	Chunks             []int             `json:"chunks"`
	DType              string            `json:"dtype"`
	Compressor         *CompressorConfig `json:"compressor"`
	FillValue          json.RawMessage   `json:"fill_value"`
	Order              string            `json:"order"`
	Filters            []json.RawMessage `json:"filters"`
	DimensionSeparator string            `json:"dimension_separator,omitempty"`
}

// CompressorConfig is the numcodecs-style codec configuration embedded
// in array metadata. ID selects the codec; the remaining fields apply
// to a subset of codecs and are zero otherwise.
type CompressorConfig struct {
	ID string `json:"id"`

	// Blosc settings.
	CName     string `json:"cname,omitempty"`
	CLevel    int    `json:"clevel,omitempty"`
	Shuffle   int    `json:"shuffle,omitempty"`
	BlockSize int    `json:"blocksize,omitempty"`

	// Zlib, gzip and zstd level.
	Level int `json:"level,omitempty"`
}

// ParseArrayMeta decodes and validates a ".zarray" document.
func ParseArrayMeta(data []byte) (*ArrayMeta, error) {
	var m ArrayMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding .zarray: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate reports the first way in which the metadata is malformed or
// outside the subset of Zarr v2 this package handles.
func (m *ArrayMeta) Validate() error {
	if m.ZarrFormat != FormatVersion {
		return fmt.Errorf("zarr_format %d: only version %d is supported", m.ZarrFormat, FormatVersion)
	}
	if len(m.Shape) == 0 {
		return fmt.Errorf("array shape is empty")
	}
	if len(m.Chunks) != len(m.Shape) {
		return fmt.Errorf("chunk rank %d does not match shape rank %d", len(m.Chunks), len(m.Shape))
	}
	for i, n := range m.Shape {
		if n < 1 {
			return fmt.Errorf("shape[%d] = %d: dimensions must be positive", i, n)
		}
	}
	for i, n := range m.Chunks {
		if n < 1 {
			return fmt.Errorf("chunks[%d] = %d: chunk dimensions must be positive", i, n)
		}
	}
	if m.Order != "C" {
		return fmt.Errorf("order %q: only C (row-major) arrays are supported", m.Order)
	}
	if len(m.Filters) > 0 {
		return fmt.Errorf("filters are not supported")
	}
	switch m.DimensionSeparator {
	case "", ".", "/":
	default:
		return fmt.Errorf("dimension_separator %q: must be %q or %q", m.DimensionSeparator, ".", "/")
	}
	if _, err := ParseDType(m.DType); err != nil {
		return err
	}
	if m.Compressor != nil {
		if err := m.Compressor.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Separator returns the chunk key separator, applying the spec default.
func (m *ArrayMeta) Separator() string {
	if m.DimensionSeparator == "" {
		return "."
	}
	return m.DimensionSeparator
}

// FillFloat resolves the metadata fill value as a float64. A null or
// absent fill value becomes NaN for float dtypes and zero for the rest;
// the JSON strings "NaN", "Infinity" and "-Infinity" map to their IEEE
// values.
func (m *ArrayMeta) FillFloat() (float64, error) {
	d, err := ParseDType(m.DType)
	if err != nil {
		return 0, err
	}
	raw := strings.TrimSpace(string(m.FillValue))
	if raw == "" || raw == "null" {
		if d.Kind == 'f' {
			return math.NaN(), nil
		}
		return 0, nil
	}
	var f float64
	if err := json.Unmarshal(m.FillValue, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(m.FillValue, &s); err == nil {
		switch s {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
		return 0, fmt.Errorf("fill_value %q: unsupported non-numeric fill", s)
	}
	return 0, fmt.Errorf("fill_value %s: expected a number, null, or IEEE string", raw)
}

func (c *CompressorConfig) validate() error {
	switch c.ID {
	case codecBlosc, codecZlib, codecGzip, codecZstd:
		return nil
	default:
		return fmt.Errorf("compressor %q is not supported", c.ID)
	}
}

// GroupMeta mirrors a ".zgroup" document.
type GroupMeta struct {
	ZarrFormat int `json:"zarr_format"`
}

func parseGroupMeta(data []byte, gm *GroupMeta) error {
	if err := json.Unmarshal(data, gm); err != nil {
		return fmt.Errorf("decoding .zgroup: %w", err)
	}
	if gm.ZarrFormat != FormatVersion {
		return fmt.Errorf("zarr_format %d: only version %d is supported", gm.ZarrFormat, FormatVersion)
	}
	return nil
}

// ConsolidatedMeta mirrors a ".zmetadata" document: every node's
// metadata gathered under the root so one fetch describes the tree.
type ConsolidatedMeta struct {
	Format   int                        `json:"zarr_consolidated_format"`
	Metadata map[string]json.RawMessage `json:"metadata"`
}

// ParseConsolidatedMeta decodes a ".zmetadata" document.
func ParseConsolidatedMeta(data []byte) (*ConsolidatedMeta, error) {
	var c ConsolidatedMeta
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding .zmetadata: %w", err)
	}
	if c.Format != 1 {
		return nil, fmt.Errorf("zarr_consolidated_format %d: only version 1 is supported", c.Format)
	}
	if c.Metadata == nil {
		return nil, fmt.Errorf(".zmetadata has no metadata map")
	}
	return &c, nil
}

// parseAttrs decodes a ".zattrs" document. A nil input yields an empty
// attribute map.
func parseAttrs(data []byte) (map[string]any, error) {
	attrs := map[string]any{}
	if len(data) == 0 {
		return attrs, nil
	}
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("decoding .zattrs: %w", err)
	}
	return attrs, nil
}
