package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/hrrr-zarr-analysis/internal/analysis"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/grid"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/hrrr"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/render"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/zarr"
)

// statsResponse is the JSON body of GET /v1/stats.
type statsResponse struct {
	Variable string       `json:"variable"`
	Level    string       `json:"level"`
	Kind     hrrr.Kind    `json:"kind"`
	Stat     grid.Stat    `json:"stat"`
	Lead     int          `json:"lead"`
	Times    []time.Time  `json:"times"`
	Shape    []int        `json:"shape"`
	Summary  grid.Summary `json:"summary"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	req, _, err := parseAnalysisQuery(r.URL.Query(), s.style)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.runAnalysis(r, req)
	if err != nil {
		s.writeAnalysisError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Variable: result.Request.Variable,
		Level:    result.Request.Level,
		Kind:     result.Request.Kind,
		Stat:     result.Request.Stat,
		Lead:     result.Request.Lead,
		Times:    result.Times,
		Shape:    result.Field.Shape(),
		Summary:  result.Summary,
	})
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	req, style, err := parseAnalysisQuery(r.URL.Query(), s.style)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.runAnalysis(r, req)
	if err != nil {
		s.writeAnalysisError(w, err)
		return
	}
	png, err := render.FieldPNG(r.Context(), result.Field, style)
	if err != nil {
		s.logger.Error("render failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png) //nolint:errcheck // response already committed
}

func (s *Server) runAnalysis(r *http.Request, req analysis.Request) (*analysis.Result, error) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	return s.analyzer.Reduce(ctx, req)
}

func (s *Server) writeAnalysisError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analysis.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, zarr.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err)
	default:
		s.logger.Error("analysis request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

// parseAnalysisQuery reads the query parameters shared by the /v1
// endpoints:
//
//	var    archive variable (required)
//	start  first cycle, yyyymmddhh or RFC 3339 (required)
//	hours  cycles to cover, default 4
//	level  vertical level, default from the variable catalog
//	kind   anl or fcst, default anl
//	lead   forecast lead index, default 0
//	stat   mean or std, default std
//	cmap   colormap override for plots
func parseAnalysisQuery(q url.Values, base render.Style) (analysis.Request, render.Style, error) {
	req := analysis.Request{
		Variable: q.Get("var"),
		Level:    q.Get("level"),
		Hours:    4,
	}

	start := q.Get("start")
	if start == "" {
		return req, base, fmt.Errorf("start is required")
	}
	t, err := hrrr.ParseCycleTime(start)
	if err != nil {
		return req, base, err
	}
	req.Start = t

	if v := q.Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, base, fmt.Errorf("hours: invalid count %q", v)
		}
		req.Hours = n
	}
	if v := q.Get("kind"); v != "" {
		kind, err := hrrr.ParseKind(v)
		if err != nil {
			return req, base, err
		}
		req.Kind = kind
	}
	if v := q.Get("lead"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, base, fmt.Errorf("lead: invalid index %q", v)
		}
		req.Lead = n
	}
	if v := q.Get("stat"); v != "" {
		stat, err := grid.ParseStat(v)
		if err != nil {
			return req, base, err
		}
		req.Stat = stat
	}

	style := base
	if v := q.Get("cmap"); v != "" {
		style.Colormap = v
		if err := style.Validate(); err != nil {
			return req, style, err
		}
	}
	return req, style, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
