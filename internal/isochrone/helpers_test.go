package isochrone

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom/encoding/geojson"
)

func decodeFC(t *testing.T, body string) *geojson.FeatureCollection {
	t.Helper()
	var fc geojson.FeatureCollection
	require.NoError(t, json.Unmarshal([]byte(body), &fc))
	return &fc
}
