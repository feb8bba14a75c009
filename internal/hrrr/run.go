package hrrr

import (
	"fmt"
	"path"
	"time"
)

// Kind distinguishes the two products each model cycle publishes.
type Kind string

const (
	// Analysis is the zero-hour analysis product.
	Analysis Kind = "anl"
	// Forecast is the multi-hour forecast product.
	Forecast Kind = "fcst"
)

// ParseKind validates a product kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Analysis, Forecast:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown run kind %q", s)
	}
}

// Run identifies one model cycle of one product kind. The model runs
// every hour; cycle times are UTC at hour resolution.
type Run struct {
	Time time.Time
	Kind Kind
}

// NewRun builds a Run, truncating the cycle time to the hour in UTC.
func NewRun(t time.Time, kind Kind) Run {
	return Run{Time: t.UTC().Truncate(time.Hour), Kind: kind}
}

// ID returns the run identifier, e.g. "20200801_06z_anl".
func (r Run) ID() string {
	return fmt.Sprintf("%s_%sz_%s", r.Time.Format("20060102"), r.Time.Format("15"), r.Kind)
}

// Root returns the run's location in the archive, e.g.
// "sfc/20200801/20200801_06z_anl.zarr".
func (r Run) Root() string {
	return fmt.Sprintf("sfc/%s/%s.zarr", r.Time.Format("20060102"), r.ID())
}

// GroupPath returns the archive location of one variable group within
// the run.
func (r Run) GroupPath(level, variable string) string {
	return path.Join(r.Root(), VariableGroup(level, variable))
}

// ValidTime returns the time a lead index verifies at. Analysis data
// verifies at the cycle time; forecast lead index 0 is the first
// stored lead, one hour past the cycle.
func (r Run) ValidTime(lead int) time.Time {
	if r.Kind == Forecast {
		return r.Time.Add(time.Duration(lead+1) * time.Hour)
	}
	return r.Time
}

func (r Run) String() string { return r.ID() }

// VariableGroup returns a variable group's path relative to the run
// root, e.g. "2m_above_ground/TMP".
func VariableGroup(level, variable string) string {
	return path.Join(level, variable)
}

// DataNode returns the data array's path relative to the run root. The
// archive nests the array under a second level/variable pair:
// "2m_above_ground/TMP/2m_above_ground/TMP".
func DataNode(level, variable string) string {
	return path.Join(level, variable, level, variable)
}

// Runs returns count hourly runs of one kind starting at start.
func Runs(start time.Time, count int, kind Kind) []Run {
	runs := make([]Run, 0, count)
	for i := 0; i < count; i++ {
		runs = append(runs, NewRun(start.Add(time.Duration(i)*time.Hour), kind))
	}
	return runs
}

// publicationDelay is how long after its cycle time a run typically
// takes to appear in the archive.
const publicationDelay = time.Hour

// LatestRun returns the newest run that has plausibly been published.
// Whether it actually exists is for the caller to probe.
func LatestRun(kind Kind) Run {
	return LatestRunAt(clock.Now(), kind)
}

// LatestRunAt returns the newest run plausibly published as of t.
func LatestRunAt(t time.Time, kind Kind) Run {
	return NewRun(t.UTC().Add(-publicationDelay), kind)
}

// ParseCycleTime parses a cycle time given either as the compact
// yyyymmddhh form used in archive names or as RFC 3339.
func ParseCycleTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006010215", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("cycle time %q: want yyyymmddhh or RFC 3339", s)
}
