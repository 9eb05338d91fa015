package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/stopsearch-cli/internal/fetcher"
	"github.com/sells-group/stopsearch-cli/internal/model"
	"github.com/sells-group/stopsearch-cli/internal/police"
	"github.com/sells-group/stopsearch-cli/internal/resilience"
	"github.com/sells-group/stopsearch-cli/internal/spatial"
)

// monthPayload returns 100 raw records: 10 with "Black" in
// self_defined_ethnicity, 5 of those aged 18-24.
func monthPayload(t *testing.T, month int) []byte {
	t.Helper()
	var recs []map[string]any
	for i := range 100 {
		eth := "White - English/Welsh/Scottish/Northern Irish/British"
		ageRange := "over 34"
		if i < 10 {
			eth = "Black/African/Caribbean/Black British - Caribbean"
			if i < 5 {
				ageRange = "18-24"
			}
		}
		recs = append(recs, map[string]any{
			"age_range":                 ageRange,
			"outcome":                   "A no further action disposal",
			"involved_person":           true,
			"self_defined_ethnicity":    eth,
			"officer_defined_ethnicity": "White",
			"gender":                    "Male",
			"datetime":                  fmt.Sprintf("2023-%02d-01T12:00:00+00:00", month),
			"location": map[string]any{
				"latitude":  fmt.Sprintf("%.6f", 53.40+float64(i)*0.0001),
				"longitude": "-2.979548",
				"street":    map[string]any{"id": 1000 + i, "name": "On or near Bold Street"},
			},
		})
	}
	data, err := json.Marshal(recs)
	require.NoError(t, err)
	return data
}

func TestEndToEnd_FetchTagFilter(t *testing.T) {
	payload := monthPayload(t, 6)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.RawQuery, "date=2023-06") {
			w.Write(payload)
			return
		}
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout: 5 * time.Second,
		Retry:   resilience.RetryConfig{MaxAttempts: 1},
	})
	client := police.NewClient(f, police.Options{
		BaseURL: srv.URL,
		Polygon: police.Polygon{{Lat: 53.42, Lng: -3.0}, {Lat: 53.42, Lng: -2.95}, {Lat: 53.39, Lng: -2.95}},
	})

	res, err := FetchYear(context.Background(), client, 2023, Options{Concurrency: 4})
	require.NoError(t, err)
	require.Len(t, res.Table, 100)
	assert.Equal(t, 100, res.Months[5].Records)

	st := spatial.FromTable(res.Table)
	assert.Equal(t, 100, st.Len())

	black := spatial.Filter(st.All(), model.FieldSelfDefinedEthnicity, "Black")
	assert.Equal(t, 10, black.Len())
	youth := spatial.Filter(black, model.FieldAgeRange, "18-24")
	assert.Equal(t, 5, youth.Len())
}

func TestEndToEnd_MissingLatitudeSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.RawQuery, "date=2023-01") {
			w.Write([]byte("[]"))
			return
		}
		w.Write([]byte(`[
			{"involved_person":true,"datetime":"2023-01-02T10:00:00+00:00","location":{"longitude":"-2.98","street":{"id":1}}},
			{"involved_person":true,"datetime":"2023-01-02T11:00:00+00:00","location":{"latitude":"53.4","longitude":"-2.98","street":{"id":2}}}
		]`))
	}))
	defer srv.Close()

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Retry: resilience.RetryConfig{MaxAttempts: 1}})
	client := police.NewClient(f, police.Options{BaseURL: srv.URL})

	res, err := FetchYear(context.Background(), client, 2023, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, spatial.FromTable(res.Table).Len())
	assert.Equal(t, 1, res.Stats.Skipped)
	assert.Equal(t, 1, res.Stats.MissingLocation)
}
