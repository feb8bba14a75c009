// Package crs defines the HRRR native map projection and conversions
// between grid coordinates and geographic latitude/longitude.
//
// HRRR runs on a Lambert conformal conic projection over a spherical
// earth of radius 6371229 m, with both standard parallels and the
// projection origin at 38.5N and the central meridian at 97.5W. The
// archive stores projection coordinates in meters; consumers that plot
// or export need matching latitude/longitude fields, which the archive
// itself omits.
package crs

import (
	"fmt"

	"github.com/ctessum/geom/proj"
)

// Projection constants of the HRRR CONUS grid, in degrees and meters.
const (
	StandardParallel = 38.5
	CentralLatitude  = 38.5
	CentralLongitude = -97.5
	EarthRadius      = 6371229.0
)

// Proj4 is the proj-string form of the HRRR projection.
const Proj4 = "+proj=lcc +lat_1=38.5 +lat_2=38.5 +lat_0=38.5 +lon_0=-97.5 +R=6371229 +units=m +no_defs"

// HRRR returns the spatial reference of the HRRR native grid.
func HRRR() *proj.SR {
	sr := proj.NewSR()
	sr.Name = "lcc"
	sr.Lat1 = StandardParallel
	sr.Lat2 = StandardParallel
	sr.Lat0 = CentralLatitude
	sr.Long0 = CentralLongitude
	sr.A = EarthRadius
	sr.B = EarthRadius
	sr.ToMeter = 1.
	sr.DeriveConstants()
	return sr
}

// ToLonLat returns a transformer from HRRR projection coordinates in
// meters to geographic longitude/latitude in degrees.
func ToLonLat() (proj.Transformer, error) {
	lonlat, err := proj.Parse("+proj=longlat")
	if err != nil {
		return nil, fmt.Errorf("parsing longlat projection: %w", err)
	}
	t, err := HRRR().NewTransform(lonlat)
	if err != nil {
		return nil, fmt.Errorf("building projection transform: %w", err)
	}
	return t, nil
}

// FromLonLat returns a transformer from geographic longitude/latitude
// in degrees to HRRR projection coordinates in meters.
func FromLonLat() (proj.Transformer, error) {
	lonlat, err := proj.Parse("+proj=longlat")
	if err != nil {
		return nil, fmt.Errorf("parsing longlat projection: %w", err)
	}
	t, err := lonlat.NewTransform(HRRR())
	if err != nil {
		return nil, fmt.Errorf("building projection transform: %w", err)
	}
	return t, nil
}

// LatLonGrid derives 2-D latitude and longitude fields for the grid
// spanned by the projection coordinates x and y. Both results are
// row-major with len(y) rows of len(x) values.
func LatLonGrid(x, y []float64) (lat, lon []float64, err error) {
	t, err := ToLonLat()
	if err != nil {
		return nil, nil, err
	}
	lat = make([]float64, len(y)*len(x))
	lon = make([]float64, len(y)*len(x))
	for j, yv := range y {
		for i, xv := range x {
			lo, la, terr := t(xv, yv)
			if terr != nil {
				return nil, nil, fmt.Errorf("transforming grid point (%g, %g): %w", xv, yv, terr)
			}
			lat[j*len(x)+i] = la
			lon[j*len(x)+i] = lo
		}
	}
	return lat, lon, nil
}

// GridMappingAttrs returns the CF grid-mapping attributes describing
// the HRRR projection, suitable for dataset metadata and NetCDF export.
func GridMappingAttrs() map[string]any {
	return map[string]any{
		"grid_mapping_name":             "lambert_conformal_conic",
		"standard_parallel":             []float64{StandardParallel, StandardParallel},
		"latitude_of_projection_origin": CentralLatitude,
		"longitude_of_central_meridian": CentralLongitude,
		"earth_radius":                  EarthRadius,
		"proj4":                         Proj4,
	}
}
