package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/stopsearch-cli/internal/model"
	"github.com/sells-group/stopsearch-cli/internal/police"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://data.police.uk/api", cfg.Police.BaseURL)
	assert.False(t, cfg.Police.ValidatePolygon)
	assert.Equal(t, "https://api.mapbox.com", cfg.Isochrone.BaseURL)
	assert.Equal(t, "walking", cfg.Isochrone.Profile)
	assert.Equal(t, []int{5, 10}, cfg.Isochrone.Minutes)
	assert.Equal(t, 4, cfg.Fetch.Concurrency)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.InDelta(t, 15.0, cfg.Fetch.RatePerSec, 0.001)
	assert.Equal(t, "out", cfg.Export.Dir)
	assert.Equal(t, []string{"geojson"}, cfg.Export.Formats)
	assert.Equal(t, "stopsearch", cfg.Export.PostGISSchema)
	assert.Equal(t, "white", cfg.Census.ReferenceGroup)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Zero(t, cfg.Monitoring.MaxFailedMonths)
	assert.InDelta(t, 0.05, cfg.Monitoring.SkipRateThreshold, 1e-9)
	assert.Empty(t, cfg.Monitoring.WebhookURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Equal(t, DefaultPolygon(), cfg.Polygon())
	require.NotEmpty(t, cfg.Subsets)
	assert.Equal(t, "black", cfg.Subsets[0].Name)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
police:
  validate_polygon: true
boundary:
  polygon:
    - {lat: 53.40, lng: -2.99}
    - {lat: 53.41, lng: -2.98}
    - {lat: 53.40, lng: -2.97}
fetch:
  concurrency: 12
export:
  formats: [geojson, shp, gpkg]
subsets:
  - name: youth_arrests
    clauses:
      - {field: age_range, contains: "18-24"}
      - {field: outcome, contains: arrest, fold_case: true}
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Police.ValidatePolygon)
	assert.Equal(t, police.Polygon{
		{Lat: 53.40, Lng: -2.99},
		{Lat: 53.41, Lng: -2.98},
		{Lat: 53.40, Lng: -2.97},
	}, cfg.Polygon())
	assert.Equal(t, 12, cfg.Fetch.Concurrency)
	assert.Equal(t, []string{"geojson", "shp", "gpkg"}, cfg.Export.Formats)
	require.Len(t, cfg.Subsets, 1)
	assert.Equal(t, "youth_arrests", cfg.Subsets[0].Name)
	require.Len(t, cfg.Subsets[0].Clauses, 2)
	assert.Equal(t, model.FieldOutcome, cfg.Subsets[0].Clauses[1].Field)
	assert.True(t, cfg.Subsets[0].Clauses[1].FoldCase)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
export:
  dir: from-file
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("STOPSEARCH_EXPORT_DIR", "from-env")
	t.Setenv("STOPSEARCH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "from-env", cfg.Export.Dir)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("STOPSEARCH_SERVER_PORT", "3000")
	t.Setenv("STOPSEARCH_ISOCHRONE_TOKEN", "pk.test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "pk.test", cfg.Isochrone.Token)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("fetch: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Police.BaseURL = police.DefaultBaseURL
	cfg.Boundary.Polygon = DefaultPolygon()
	cfg.Fetch.Concurrency = 4
	cfg.Fetch.TimeoutSecs = 30
	cfg.Export.Dir = "out"
	cfg.Isochrone.Minutes = []int{5, 10}
	cfg.Census.ReferenceGroup = "white"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateFetch(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("fetch"))

	cfg.Police.BaseURL = ""
	cfg.Fetch.Concurrency = 13
	err := cfg.Validate("fetch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "police.base_url is required")
	assert.Contains(t, err.Error(), "fetch.concurrency must be between 1 and 12")
}

func TestValidateFetch_PolygonCheckIsOptIn(t *testing.T) {
	cfg := validDefaults()
	cfg.Boundary.Polygon = []police.LatLng{{Lat: 53.4, Lng: -2.9}, {Lat: 53.5, Lng: -2.9}}
	assert.NoError(t, cfg.Validate("fetch"))

	cfg.Police.ValidatePolygon = true
	err := cfg.Validate("fetch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boundary.polygon")
}

func TestValidateIsochrone_MissingToken(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("isochrone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "isochrone.token is required")

	cfg.Isochrone.Token = "pk.test"
	assert.NoError(t, cfg.Validate("isochrone"))
}

func TestValidateStats(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "census.path is required")

	cfg.Census.Path = "census.csv"
	assert.NoError(t, cfg.Validate("stats"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidatePostGIS(t *testing.T) {
	cfg := validDefaults()
	assert.Error(t, cfg.Validate("postgis"))

	cfg.Export.PostGISURL = "postgres://localhost/gis"
	assert.NoError(t, cfg.Validate("postgis"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
