// Package analysis orchestrates the fetch-combine-reduce flow: open
// one dataset per hourly run, stack the hours along time, collapse the
// stack to a per-cell statistic, and summarize the result.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/hrrr-zarr-analysis/internal/grid"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/hrrr"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/observability"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/zarr"
)

// MaxHours caps the length of one request's run range. A week of
// hourly runs is far past what interactive analysis asks for.
const MaxHours = 168

// ErrInvalidRequest marks requests rejected before touching the store.
var ErrInvalidRequest = errors.New("invalid analysis request")

// Request selects the runs and the reduction of one analysis.
type Request struct {
	Variable string    // archive variable, e.g. "TMP"
	Level    string    // vertical level; empty picks the variable's catalog default
	Kind     hrrr.Kind // product kind; empty means analysis runs
	Start    time.Time // first cycle, truncated to the hour
	Hours    int       // number of consecutive hourly cycles
	Lead     int       // forecast lead index; must be 0 for analysis runs
	Stat     grid.Stat // reduction; empty means standard deviation
}

func (r Request) withDefaults() Request {
	if r.Kind == "" {
		r.Kind = hrrr.Analysis
	}
	if r.Stat == "" {
		r.Stat = grid.Std
	}
	if r.Level == "" {
		if level, ok := hrrr.DefaultLevel(r.Variable); ok {
			r.Level = level
		}
	}
	return r
}

func (r Request) validate() error {
	if r.Variable == "" {
		return fmt.Errorf("%w: variable is required", ErrInvalidRequest)
	}
	if r.Level == "" {
		return fmt.Errorf("%w: no default level for variable %q", ErrInvalidRequest, r.Variable)
	}
	if r.Start.IsZero() {
		return fmt.Errorf("%w: start time is required", ErrInvalidRequest)
	}
	if r.Hours < 1 || r.Hours > MaxHours {
		return fmt.Errorf("%w: hours must be between 1 and %d, got %d", ErrInvalidRequest, MaxHours, r.Hours)
	}
	if r.Lead < 0 {
		return fmt.Errorf("%w: lead must not be negative, got %d", ErrInvalidRequest, r.Lead)
	}
	if r.Kind == hrrr.Analysis && r.Lead != 0 {
		return fmt.Errorf("%w: analysis runs have no forecast leads", ErrInvalidRequest)
	}
	return nil
}

// Result is one finished analysis. Reduced is a dataset holding the
// per-cell statistic plus the grid's axes and geographic coordinates;
// Field points at the statistic inside it.
type Result struct {
	Request Request      `json:"request"`
	Times   []time.Time  `json:"times"`
	Summary grid.Summary `json:"summary"`

	Field   *grid.Field   `json:"-"`
	Reduced *grid.Dataset `json:"-"`
}

// Service runs analysis requests against one archive store.
type Service struct {
	store   zarr.Store
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Service over the given archive store.
func New(store zarr.Store, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{store: store, logger: logger, metrics: metrics}
}

// Reduce opens the requested range of runs, stacks them along time,
// and reduces the stack to the requested per-cell statistic.
func (s *Service) Reduce(ctx context.Context, req Request) (*Result, error) {
	req = req.withDefaults()
	start := time.Now()

	result, err := s.reduce(ctx, req)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.AnalysisRequests.WithLabelValues(string(req.Stat), outcome).Inc()
	s.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		s.logger.Error("analysis failed",
			"variable", req.Variable, "level", req.Level, "stat", req.Stat, "error", err)
		return nil, err
	}
	s.logger.Info("analysis complete",
		"variable", req.Variable, "level", req.Level, "stat", req.Stat,
		"hours", req.Hours, "duration", time.Since(start))
	return result, nil
}

func (s *Service) reduce(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	runs := hrrr.Runs(req.Start, req.Hours, req.Kind)
	datasets := make([]*grid.Dataset, len(runs))
	times := make([]time.Time, len(runs))
	for i, run := range runs {
		ds, err := hrrr.OpenHourLead(ctx, s.store, run, req.Level, req.Variable, req.Lead)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", run, err)
		}
		datasets[i] = ds
		times[i] = run.ValidTime(req.Lead)
	}

	combined, err := grid.ConcatTime(datasets, times)
	if err != nil {
		return nil, err
	}
	field, err := combined.ReduceTime(ctx, req.Variable, req.Stat)
	if err != nil {
		return nil, err
	}
	values, err := field.Values(ctx)
	if err != nil {
		return nil, err
	}

	reduced, err := reducedDataset(combined, field)
	if err != nil {
		return nil, err
	}
	return &Result{
		Request: req,
		Times:   times,
		Summary: grid.Summarize(values),
		Field:   field,
		Reduced: reduced,
	}, nil
}

// reducedDataset wraps the reduced field in a dataset carrying the
// source cube's axes, geographic coordinates, and attributes, so it
// can be rendered or exported on its own.
func reducedDataset(src *grid.Dataset, field *grid.Field) (*grid.Dataset, error) {
	out := grid.NewDataset()
	if err := out.AddField(field); err != nil {
		return nil, err
	}
	for _, dim := range field.Dims() {
		if axis, ok := src.Axis(dim); ok {
			out.SetAxis(dim, axis)
		}
	}
	for _, name := range src.CoordNames() {
		if coord, ok := src.Coord(name); ok {
			out.AssignCoord(coord)
		}
	}
	for k, v := range src.Attrs() {
		out.SetAttr(k, v)
	}
	return out, nil
}
