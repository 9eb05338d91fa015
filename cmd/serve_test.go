package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/stopsearch-cli/internal/metrics"
	"github.com/sells-group/stopsearch-cli/internal/pipeline"
	"github.com/sells-group/stopsearch-cli/internal/police"
	"github.com/sells-group/stopsearch-cli/internal/report"
)

const twoPoints = `{"type":"FeatureCollection","features":[
{"type":"Feature","geometry":{"type":"Point","coordinates":[-2.98,53.40]},"properties":{}},
{"type":"Feature","geometry":{"type":"Point","coordinates":[-2.97,53.41]},"properties":{}}]}`

func layerDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "black.geojson"), []byte(twoPoints), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "all.geojson"), []byte(twoPoints), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Bad-Name.geojson"), []byte(twoPoints), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	return dir
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServe_Health(t *testing.T) {
	w := get(t, buildMux(t.TempDir(), metrics.New()), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestServe_ListLayers(t *testing.T) {
	w := get(t, buildMux(layerDir(t), metrics.New()), "/layers")
	require.Equal(t, http.StatusOK, w.Code)

	var layers []layerInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &layers))
	require.Len(t, layers, 2)
	assert.Equal(t, "all", layers[0].Name)
	assert.Equal(t, "black", layers[1].Name)
	assert.Equal(t, 2, layers[1].Features)
	assert.Equal(t, int64(len(twoPoints)), layers[1].Bytes)
}

func TestServe_ListLayers_Empty(t *testing.T) {
	w := get(t, buildMux(t.TempDir(), metrics.New()), "/layers")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestServe_GetLayer(t *testing.T) {
	h := buildMux(layerDir(t), metrics.New())

	w := get(t, h, "/layers/black")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.JSONEq(t, twoPoints, string(body))

	assert.Equal(t, http.StatusNotFound, get(t, h, "/layers/white").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/layers/Bad-Name").Code)
}

func TestServe_Report(t *testing.T) {
	dir := t.TempDir()
	h := buildMux(dir, metrics.New())
	assert.Equal(t, http.StatusNotFound, get(t, h, "/report").Code)

	rep := report.New("fetch", 2023)
	rep.SpatialRows = 7
	_, err := rep.Write(dir)
	require.NoError(t, err)

	w := get(t, h, "/report")
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, rep.RunID, got["run_id"])
	assert.EqualValues(t, 7, got["spatial_rows"])
}

func TestServe_Metrics(t *testing.T) {
	h := buildMux(layerDir(t), metrics.New())
	require.Equal(t, http.StatusOK, get(t, h, "/layers").Code)

	w := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `stopsearch_layer_features{layer="black"} 2`)
}

func TestServe_CORS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	buildMux(t.TempDir(), metrics.New()).ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServe_MetricsFromFetchReport(t *testing.T) {
	srv := policeServer(t)
	dir := t.TempDir()
	c := testConfig(dir)
	c.Police.BaseURL = srv.URL
	opts := fetchOptions{Year: 2023, Months: []int{1, 2, 3}, Dir: dir, Concurrency: 1}

	rep, err := runFetch(context.Background(), c, opts, testFetcher(), nil, metrics.New())
	require.NoError(t, err)
	_, err = rep.Write(dir)
	require.NoError(t, err)

	h := buildMux(dir, metrics.New())
	body := get(t, h, "/metrics").Body.String()
	assert.Contains(t, body, `stopsearch_fetch_total{status="ok"} 2`)
	assert.Contains(t, body, `stopsearch_fetch_total{status="error"} 1`)
	assert.Contains(t, body, `stopsearch_fetch_duration_seconds_count 3`)
	assert.Contains(t, body, `stopsearch_month_records{month="2"} 1`)
	assert.NotContains(t, body, `stopsearch_month_records{month="3"}`)
	assert.Contains(t, body, `stopsearch_records_total{result="normalized"}`)

	// A second scrape of the same run does not count it twice.
	body = get(t, h, "/metrics").Body.String()
	assert.Contains(t, body, `stopsearch_fetch_total{status="ok"} 2`)

	// A new run is added on top and replaces the per-month gauge.
	next := report.New("fetch", 2023)
	next.Months = []pipeline.MonthResult{{Month: 5, Records: 9, Seconds: 0.2, Stats: police.NormalizeStats{Total: 9, Normalized: 9}}}
	_, err = next.Write(dir)
	require.NoError(t, err)

	body = get(t, h, "/metrics").Body.String()
	assert.Contains(t, body, `stopsearch_fetch_total{status="ok"} 3`)
	assert.Contains(t, body, `stopsearch_month_records{month="5"} 9`)
	assert.NotContains(t, body, `stopsearch_month_records{month="2"}`)
}

func TestServe_MetricsWithoutReport(t *testing.T) {
	w := get(t, buildMux(t.TempDir(), metrics.New()), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "stopsearch_fetch_total")
}
