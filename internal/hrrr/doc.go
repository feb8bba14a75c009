// Package hrrr models the HRRR Zarr archive layout and opens its data
// as datasets.
//
// # Data Source
//
// The High-Resolution Rapid Refresh (HRRR) is NOAA's hourly-updating
// 3 km numerical weather model. The Zarr archive mirrors the surface
// ("sfc") GRIB2 output into cloud object storage, rechunked so that a
// single variable can be read without downloading whole model files.
// The canonical copy lives at s3://hrrrzarr in us-west-1.
//
// # Archive Conventions
//
// Run location:
//
//	sfc/{yyyymmdd}/{yyyymmdd}_{hh}z_{anl|fcst}.zarr
//	e.g. sfc/20200801/20200801_06z_anl.zarr
//	"anl" holds the zero-hour analysis, "fcst" the hourly forecast leads.
//	Cycle times are UTC; runs appear roughly an hour after cycle time.
//
// Variable groups:
//
//	{level}/{variable}  →  e.g. 2m_above_ground/TMP
//	Each group holds 1-D projection_x_coordinate and
//	projection_y_coordinate arrays (meters on the model's Lambert
//	conformal grid, see package crs) and nests the data array under a
//	second level/variable pair:
//
//	  2m_above_ground/TMP/2m_above_ground/TMP
//
//	Analysis data is 2-D [y, x]; forecast data is 3-D [lead, y, x] with
//	lead index 0 verifying one hour past the cycle.
//
// Array metadata:
//
//	Dimension names follow the xarray convention: each array's
//	"_ARRAY_DIMENSIONS" attribute lists its dimensions in order. Data
//	values are stored as little-endian float16 ("<f2") compressed with
//	Blosc, so round-tripped values carry roughly three significant
//	digits.
//
// The archive ships no CRS metadata and no latitude/longitude arrays.
// [OpenHour] repairs that: it renames the projection dimensions to
// "y"/"x", attaches the grid mapping from package crs, and derives 2-D
// latitude/longitude coordinates lazily.
package hrrr
