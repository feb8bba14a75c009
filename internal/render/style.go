package render

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Style controls how a field is classified into bands and drawn.
type Style struct {
	Colormap string    `toml:"colormap"`
	Levels   []float64 `toml:"levels"` // explicit band boundaries; overrides Bands/Min/Max
	Bands    int       `toml:"bands"`  // number of bands when Levels is empty
	Min      *float64  `toml:"min"`    // lower bound; nil autoscales to the 2nd percentile
	Max      *float64  `toml:"max"`    // upper bound; nil autoscales to the 98th percentile
	CellSize int       `toml:"cell_size"`
	Colorbar bool      `toml:"colorbar"`
}

// DefaultStyle is the style used when no style file is given: ten
// autoscaled viridis bands at two pixels per grid cell.
func DefaultStyle() Style {
	return Style{
		Colormap: "viridis",
		Bands:    10,
		CellSize: 2,
		Colorbar: true,
	}
}

// LoadStyle reads a TOML style file. Fields the file omits keep their
// defaults.
func LoadStyle(path string) (Style, error) {
	s := DefaultStyle()
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return Style{}, fmt.Errorf("loading style %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Style{}, fmt.Errorf("style %s: %w", path, err)
	}
	return s, nil
}

// Validate checks that the style can produce a plot.
func (s Style) Validate() error {
	if _, ok := colormaps[s.Colormap]; !ok {
		return fmt.Errorf("unknown colormap %q (have %v)", s.Colormap, Colormaps())
	}
	if len(s.Levels) > 0 {
		if len(s.Levels) < 2 {
			return fmt.Errorf("need at least 2 levels, got %d", len(s.Levels))
		}
		for i := 1; i < len(s.Levels); i++ {
			if s.Levels[i] <= s.Levels[i-1] {
				return fmt.Errorf("levels must be strictly increasing: %v", s.Levels)
			}
		}
	} else if s.Bands < 1 {
		return fmt.Errorf("bands must be positive, got %d", s.Bands)
	}
	if s.Min != nil && s.Max != nil && *s.Max <= *s.Min {
		return fmt.Errorf("max %v must exceed min %v", *s.Max, *s.Min)
	}
	if s.CellSize < 1 {
		return fmt.Errorf("cell_size must be positive, got %d", s.CellSize)
	}
	return nil
}
