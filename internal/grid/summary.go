package grid

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary describes the distribution of a field's finite values.
type Summary struct {
	Count  int     `json:"count"`
	NaN    int     `json:"nan"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
}

// Summarize computes distribution statistics over the finite values,
// ignoring NaN cells. All statistics of an all-NaN input are NaN.
func Summarize(values []float64) Summary {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	s := Summary{Count: len(finite), NaN: len(values) - len(finite)}
	if len(finite) == 0 {
		nan := math.NaN()
		s.Min, s.Max, s.Mean, s.Std = nan, nan, nan, nan
		s.P25, s.Median, s.P75 = nan, nan, nan
		return s
	}

	sort.Float64s(finite)
	s.Min = finite[0]
	s.Max = finite[len(finite)-1]
	s.Mean = stat.Mean(finite, nil)
	s.Std = math.Sqrt(stat.PopVariance(finite, nil))
	s.P25 = stat.Quantile(0.25, stat.Empirical, finite, nil)
	s.Median = stat.Quantile(0.5, stat.Empirical, finite, nil)
	s.P75 = stat.Quantile(0.75, stat.Empirical, finite, nil)
	return s
}
