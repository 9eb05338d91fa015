package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/stopsearch-cli/internal/config"
	"github.com/sells-group/stopsearch-cli/internal/fetcher"
	"github.com/sells-group/stopsearch-cli/internal/resilience"
	"github.com/sells-group/stopsearch-cli/internal/spatial"
)

func testConfig(dir string) *config.Config {
	c := &config.Config{}
	c.Police.BaseURL = "http://unused"
	c.Boundary.Polygon = config.DefaultPolygon()
	c.Fetch.Concurrency = 3
	c.Fetch.TimeoutSecs = 5
	c.Export.Dir = dir
	c.Export.Formats = []string{"geojson"}
	c.Isochrone.Token = "pk.test"
	c.Isochrone.Profile = "walking"
	c.Isochrone.Minutes = []int{5, 10}
	c.Census.ReferenceGroup = "white"
	c.Server.Port = 8080
	c.Subsets = spatial.DefaultSubsets()
	return c
}

func testFetcher() fetcher.Fetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout: 5 * time.Second,
		Retry:   resilience.RetryConfig{MaxAttempts: 1},
	})
}

func rawRecord(month int, eth, age string, lat any) map[string]any {
	return map[string]any{
		"age_range":                 age,
		"outcome":                   "Arrest",
		"involved_person":           true,
		"self_defined_ethnicity":    eth,
		"officer_defined_ethnicity": "White",
		"gender":                    "Male",
		"datetime":                  fmt.Sprintf("2023-%02d-03T09:15:00+00:00", month),
		"location": map[string]any{
			"latitude":  lat,
			"longitude": "-2.979548",
			"street":    map[string]any{"id": 1200 + month, "name": "On or near Church Street"},
		},
	}
}

// policeServer serves two months of records and fails March with a 503.
func policeServer(t *testing.T) *httptest.Server {
	t.Helper()
	months := map[string][]map[string]any{
		"2023-01": {
			rawRecord(1, "Black/African/Caribbean/Black British - African", "18-24", "53.404"),
			rawRecord(1, "Black/African/Caribbean/Black British - Caribbean", "25-34", "53.405"),
			rawRecord(1, "White - English/Welsh/Scottish/Northern Irish/British", "over 34", "53.406"),
			rawRecord(1, "White - Irish", "18-24", nil),
		},
		"2023-02": {
			rawRecord(2, "Asian/Asian British - Pakistani", "18-24", "53.407"),
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/stops-street") {
			http.NotFound(w, r)
			return
		}
		date := r.URL.Query().Get("date")
		if date == "2023-03" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		recs, ok := months[date]
		if !ok {
			recs = []map[string]any{}
		}
		data, err := json.Marshal(recs)
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}
