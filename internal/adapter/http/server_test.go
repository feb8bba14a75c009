package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/hrrr-zarr-analysis/internal/adapter/http"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/analysis"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/grid"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/hrrr"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/render"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/zarr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockAnalyzer struct {
	result *analysis.Result
	err    error
	got    analysis.Request
}

func (m *mockAnalyzer) Reduce(_ context.Context, req analysis.Request) (*analysis.Result, error) {
	m.got = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func newTestServer(readyErr error) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, slog.Default())
}

func canned(t *testing.T) *analysis.Result {
	t.Helper()
	values := []float64{0.4, 0.5, 0.6, 0.5, 0.4, 0.5}
	f, err := grid.NewFieldValues("TMP", []string{"y", "x"}, []int{2, 3}, nil, values)
	require.NoError(t, err)
	start := time.Date(2020, 8, 1, 6, 0, 0, 0, time.UTC)
	return &analysis.Result{
		Request: analysis.Request{
			Variable: "TMP", Level: "2m_above_ground", Kind: hrrr.Analysis,
			Start: start, Hours: 2, Stat: grid.Std,
		},
		Times:   []time.Time{start, start.Add(time.Hour)},
		Summary: grid.Summarize(values),
		Field:   f,
	}
}

func newAnalysisServer(t *testing.T, m *mockAnalyzer) *httpadapter.Server {
	t.Helper()
	return httpadapter.NewAnalysisServer(":0", &mockReadiness{}, m, render.DefaultStyle(),
		time.Minute, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("not ready yet"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestPlainServerHasNoAnalysisRoutes(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/stats?var=TMP&start=2020080106", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	m := &mockAnalyzer{result: canned(t)}
	srv := newAnalysisServer(t, m)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/v1/stats?var=TMP&start=2020080106&hours=2&stat=std", nil)

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	// The query made it into the analyzer request.
	assert.Equal(t, "TMP", m.got.Variable)
	assert.Equal(t, 2, m.got.Hours)
	assert.Equal(t, grid.Std, m.got.Stat)
	assert.Equal(t, time.Date(2020, 8, 1, 6, 0, 0, 0, time.UTC), m.got.Start)

	var body struct {
		Variable string `json:"variable"`
		Shape    []int  `json:"shape"`
		Summary  struct {
			Count int `json:"count"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "TMP", body.Variable)
	assert.Equal(t, []int{2, 3}, body.Shape)
	assert.Equal(t, 6, body.Summary.Count)
}

func TestPlotEndpointReturnsPNG(t *testing.T) {
	srv := newAnalysisServer(t, &mockAnalyzer{result: canned(t)})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/v1/plot?var=TMP&start=2020080106&hours=2&cmap=magma", nil)

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())
}

func TestAnalysisQueryValidation(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"missing start", "/v1/stats?var=TMP"},
		{"bad start", "/v1/stats?var=TMP&start=soon"},
		{"bad hours", "/v1/stats?var=TMP&start=2020080106&hours=many"},
		{"bad kind", "/v1/stats?var=TMP&start=2020080106&kind=daily"},
		{"bad lead", "/v1/plot?var=TMP&start=2020080106&lead=first"},
		{"bad stat", "/v1/stats?var=TMP&start=2020080106&stat=median"},
		{"bad cmap", "/v1/plot?var=TMP&start=2020080106&cmap=jet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newAnalysisServer(t, &mockAnalyzer{result: canned(t)})
			rec := httptest.NewRecorder()

			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAnalysisErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid request", fmt.Errorf("%w: hours", analysis.ErrInvalidRequest), http.StatusBadRequest},
		{"run not in archive", fmt.Errorf("opening run: %w", zarr.ErrNotFound), http.StatusNotFound},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"backend failure", fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newAnalysisServer(t, &mockAnalyzer{err: tt.err})
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/v1/stats?var=TMP&start=2020080106", nil)

			srv.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}
