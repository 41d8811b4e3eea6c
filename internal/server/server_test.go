package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/ocpanel"
	"github.com/paveg/ocpanel/internal/config"
	"github.com/paveg/ocpanel/internal/export"
	"github.com/paveg/ocpanel/internal/server"
	"github.com/paveg/ocpanel/internal/testutil"
	"github.com/paveg/ocpanel/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newServer(t *testing.T, loaded bool) *server.Server {
	t.Helper()

	cfg := config.NewConfig()
	cfg.MetricColumns = []string{"wroa", "wqtobin"}
	e, err := ocpanel.New(cfg, ocpanel.WithLogger(quietLogger()))
	require.NoError(t, err)

	if loaded {
		ds := testutil.CreatePanelDataset(memory.NewGoAllocator())
		defer ds.Release()
		require.NoError(t, e.Use(ds))
	}
	return server.New(e, server.WithLogger(quietLogger()))
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	srv := newServer(t, false)

	rec := do(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(server.RequestIDHeader))

	assert.Equal(t, version.UserAgent(), rec.Header().Get("Server"))

	var health server.HealthResponse
	decode(t, rec, &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, version.IsRelease(), health.Release)
	assert.False(t, health.Loaded)
}

func TestRequestIDPropagates(t *testing.T) {
	srv := newServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(server.RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(server.RequestIDHeader))
}

func TestSchema(t *testing.T) {
	srv := newServer(t, true)

	rec := do(t, srv, http.MethodGet, "/api/v1/schema", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var schema server.SchemaResponse
	decode(t, rec, &schema)
	assert.Equal(t, "memory", schema.Source)
	assert.Equal(t, 8, schema.Rows)
	assert.Len(t, schema.Fields, len(testutil.PanelColumns)+1)
	assert.Equal(t, "divev_dif", schema.Fields[len(schema.Fields)-1].Name)
}

func TestNoSnapshotIsWarning(t *testing.T) {
	srv := newServer(t, false)

	rec := do(t, srv, http.MethodPost, "/api/v1/filter", `{}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var warning server.WarningResponse
	decode(t, rec, &warning)
	assert.Equal(t, "SourceNotFound", warning.Kind)
	assert.NotEmpty(t, warning.RequestID)
}

func TestFilter(t *testing.T) {
	srv := newServer(t, true)

	body := `{"indicator":"OC3","values":[1],"years":[2020],"sectors":"all","columns":["ticker","wroa"],"limit":3}`
	rec := do(t, srv, http.MethodPost, "/api/v1/filter", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp server.RowsResponse
	decode(t, rec, &resp)
	assert.Equal(t, 4, resp.Count)
	assert.Equal(t, []string{"ticker", "wroa"}, resp.Rows.Columns)
	require.Len(t, resp.Rows.Rows, 3)
	assert.Equal(t, "PETR4", resp.Rows.Rows[0][0])
	// ENBR3 has no wroa for 2020
	assert.Nil(t, resp.Rows.Rows[1][1])
}

func TestFilter_EmptySelectionMatchesNothing(t *testing.T) {
	srv := newServer(t, true)

	rec := do(t, srv, http.MethodPost, "/api/v1/filter", `{"sectors":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp server.RowsResponse
	decode(t, rec, &resp)
	assert.Equal(t, 0, resp.Count)
}

func TestFilter_DefaultsToDisplayColumns(t *testing.T) {
	srv := newServer(t, true)

	rec := do(t, srv, http.MethodPost, "/api/v1/filter", `{"years":[2019]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp server.RowsResponse
	decode(t, rec, &resp)
	assert.Equal(t, config.NewConfig().DisplayColumns, resp.Rows.Columns)
}

func TestFilter_Errors(t *testing.T) {
	srv := newServer(t, true)

	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"malformed body", `{"years":`, http.StatusBadRequest, "InvalidParameter"},
		{"bad selection", `{"years":"some"}`, http.StatusBadRequest, "InvalidParameter"},
		{"negative limit", `{"limit":-1}`, http.StatusBadRequest, "InvalidParameter"},
		{"unknown indicator", `{"indicator":"oc9","values":[1]}`, http.StatusUnprocessableEntity, "MissingColumn"},
		{"unknown column", `{"columns":["nope"]}`, http.StatusUnprocessableEntity, "MissingColumn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/v1/filter", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			var warning server.WarningResponse
			decode(t, rec, &warning)
			assert.Equal(t, tt.kind, warning.Kind)
			assert.NotEmpty(t, warning.Warning)
		})
	}
}

func TestAggregate(t *testing.T) {
	srv := newServer(t, true)

	body := `{"indicator":"oc3","values":[1],"years":[2020],"sectors":"all","metric":"wroa","keys":["setor"]}`
	rec := do(t, srv, http.MethodPost, "/api/v1/aggregate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rows []struct {
		Keys  []any   `json:"keys"`
		Mean  float64 `json:"mean"`
		Count int     `json:"count"`
	}
	decode(t, rec, &rows)
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"Energy"}, rows[0].Keys)
	assert.InDelta(t, 0.05, rows[0].Mean, 1e-9)
	assert.Equal(t, []any{"Tech"}, rows[1].Keys)
	assert.InDelta(t, 0.06, rows[1].Mean, 1e-9)
	assert.Equal(t, 2, rows[1].Count)

	rec = do(t, srv, http.MethodPost, "/api/v1/aggregate", `{"keys":["setor"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRank(t *testing.T) {
	srv := newServer(t, true)

	rec := do(t, srv, http.MethodPost, "/api/v1/rank", `{"years":[2020],"top_n":2,"columns":["ticker","divev_dif"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp server.RankResponse
	decode(t, rec, &resp)
	require.NotNil(t, resp.Top)
	require.NotNil(t, resp.Bottom)
	assert.Equal(t, []string{"#", "ticker", "divev_dif"}, resp.Top.Columns)
	require.Len(t, resp.Top.Rows, 2)
	assert.Equal(t, "PETR4", resp.Top.Rows[0][1])
	assert.Equal(t, "POSI3", resp.Bottom.Rows[0][1])

	rec = do(t, srv, http.MethodPost, "/api/v1/rank", `{"direction":"asc","top_n":1,"columns":["ticker"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = server.RankResponse{}
	decode(t, rec, &resp)
	assert.Nil(t, resp.Top)
	require.NotNil(t, resp.Bottom)
	assert.Equal(t, "POSI3", resp.Bottom.Rows[0][1])

	rec = do(t, srv, http.MethodPost, "/api/v1/rank", `{"direction":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/v1/rank", `{"top_n":-3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRank_TopN(t *testing.T) {
	srv := newServer(t, true)

	rec := do(t, srv, http.MethodPost, "/api/v1/rank", `{"top_n":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "an explicit zero is rejected")

	rec = do(t, srv, http.MethodPost, "/api/v1/rank", `{"direction":"desc","top_n":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// omitted top_n takes the configured default of 10, more than the 8 rows
	rec = do(t, srv, http.MethodPost, "/api/v1/rank", `{"columns":["ticker"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp server.RankResponse
	decode(t, rec, &resp)
	require.NotNil(t, resp.Top)
	require.NotNil(t, resp.Bottom)
	assert.Len(t, resp.Top.Rows, 8)
	assert.Len(t, resp.Bottom.Rows, 8)
}

func TestExport(t *testing.T) {
	srv := newServer(t, true)

	body := `{"sectors":["Tech"],"columns":["ticker","ano"],"entity":"Tech Firms","descriptor":"2020"}`
	rec := do(t, srv, http.MethodPost, "/api/v1/export", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="tech_firms_2020.xlsx"`, rec.Header().Get("Content-Disposition"))
	// xlsx files are zip archives
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestExport_Formats(t *testing.T) {
	srv := newServer(t, true)

	body := `{"sectors":["Tech"],"columns":["ticker","ano"],"entity":"dados","descriptor":"tech","format":"CSV"}`
	rec := do(t, srv, http.MethodPost, "/api/v1/export", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, export.CSVContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="dados_tech.csv"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "ticker,ano\n"))

	rec = do(t, srv, http.MethodPost, "/api/v1/views/indicator-year/export?format=parquet", `{"indicators":["oc1"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, export.ParquetContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="empresas_filtradas.parquet"`, rec.Header().Get("Content-Disposition"))
	// parquet files start with the PAR1 magic
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PAR1")))

	rec = do(t, srv, http.MethodPost, "/api/v1/export", `{"format":"ods"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestViews(t *testing.T) {
	srv := newServer(t, true)

	rec := do(t, srv, http.MethodPost, "/api/v1/views/sector-indicator", `{"sectors":"all","year":2020}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sector struct {
		Empty   bool `json:"empty"`
		Summary struct {
			Sectors int `json:"sectors"`
			Tickers int `json:"tickers"`
		} `json:"summary"`
	}
	decode(t, rec, &sector)
	assert.False(t, sector.Empty)
	assert.Equal(t, 2, sector.Summary.Sectors)
	assert.Equal(t, 4, sector.Summary.Tickers)

	rec = do(t, srv, http.MethodPost, "/api/v1/views/governance", `{"levels":["n1"],"years":[2019]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var gov struct {
		Empty bool `json:"empty"`
	}
	decode(t, rec, &gov)
	assert.True(t, gov.Empty)

	rec = do(t, srv, http.MethodPost, "/api/v1/views/sector-indicator", `{"sectors":"all"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/v1/views/unknown", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestViews_OmittedCriteriaPlaceNoConstraint(t *testing.T) {
	srv := newServer(t, true)

	rec := do(t, srv, http.MethodPost, "/api/v1/views/performance", `{"indicator":"oc3","metric":"wroa"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var perf struct {
		Empty bool `json:"empty"`
		Rows  struct {
			Rows [][]any `json:"rows"`
		} `json:"rows"`
	}
	decode(t, rec, &perf)
	assert.False(t, perf.Empty)
	assert.Len(t, perf.Rows.Rows, 8)

	rec = do(t, srv, http.MethodPost, "/api/v1/views/sector-indicator", `{"year":2020}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sector struct {
		Empty   bool `json:"empty"`
		Summary struct {
			Sectors int `json:"sectors"`
		} `json:"summary"`
	}
	decode(t, rec, &sector)
	assert.False(t, sector.Empty)
	assert.Equal(t, 2, sector.Summary.Sectors)

	rec = do(t, srv, http.MethodPost, "/api/v1/views/indicator-year", `{"indicators":["oc1"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var byYear struct {
		Empty bool `json:"empty"`
	}
	decode(t, rec, &byYear)
	assert.False(t, byYear.Empty)

	rec = do(t, srv, http.MethodPost, "/api/v1/views/sector-indicator", `{"year":2020,"top_n":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestViewExport(t *testing.T) {
	srv := newServer(t, true)

	rec := do(t, srv, http.MethodPost, "/api/v1/views/indicator-year/export", `{"sectors":"all","indicators":["oc1"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `attachment; filename="empresas_filtradas.xlsx"`, rec.Header().Get("Content-Disposition"))

	rec = do(t, srv, http.MethodPost, "/api/v1/views/asset-residual/export", `{"sector":"Tech","year":2020}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestReload_MissingSourceKeepsServing(t *testing.T) {
	srv := newServer(t, true)

	rec := do(t, srv, http.MethodPost, "/api/v1/reload", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/v1/schema", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatsAndMetrics(t *testing.T) {
	srv := newServer(t, true)

	do(t, srv, http.MethodPost, "/api/v1/filter", `{}`)

	rec := do(t, srv, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		TotalOperations int            `json:"total_operations"`
		OperationCounts map[string]int `json:"operation_counts"`
	}
	decode(t, rec, &stats)
	assert.Positive(t, stats.TotalOperations)
	assert.Positive(t, stats.OperationCounts["compose"])

	rec = do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ocpanel_operations_total")
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	srv := newServer(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.ListenAndServe(ctx, "127.0.0.1:0")
	}()

	cancel()
	require.NoError(t, <-done)
}
