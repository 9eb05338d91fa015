package police

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var liverpool = Polygon{
	{Lat: 53.4264, Lng: -2.9966},
	{Lat: 53.4160, Lng: -2.9563},
	{Lat: 53.3967, Lng: -2.9696},
	{Lat: 53.3990, Lng: -3.0014},
}

func TestPolygon_String(t *testing.T) {
	assert.Equal(t, "53.4264,-2.9966:53.416,-2.9563:53.3967,-2.9696:53.399,-3.0014", liverpool.String())
	assert.Equal(t, "", Polygon{}.String())
}

func TestBuildQuery(t *testing.T) {
	u, err := BuildQuery("https://data.police.uk/api/", liverpool, 2023, 3)
	require.NoError(t, err)
	assert.Equal(t,
		"https://data.police.uk/api/stops-street?poly=53.4264,-2.9966:53.416,-2.9563:53.3967,-2.9696:53.399,-3.0014&date=2023-03",
		u)
}

func TestBuildQuery_NoPolygonValidation(t *testing.T) {
	u, err := BuildQuery(DefaultBaseURL, Polygon{{Lat: 95, Lng: 0}}, 2023, 12)
	require.NoError(t, err)
	assert.Contains(t, u, "poly=95,0&date=2023-12")
}

func TestMonthParam(t *testing.T) {
	tests := []struct {
		year, month int
		want        string
		wantErr     bool
	}{
		{2023, 1, "2023-01", false},
		{2023, 12, "2023-12", false},
		{2023, 0, "", true},
		{2023, 13, "", true},
		{23, 5, "", true},
	}
	for _, tt := range tests {
		got, err := MonthParam(tt.year, tt.month)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestPolygon_Validate(t *testing.T) {
	require.NoError(t, liverpool.Validate())
	assert.Error(t, Polygon{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}.Validate())
	assert.Error(t, Polygon{{Lat: 91, Lng: 0}, {Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}.Validate())
	assert.Error(t, Polygon{{Lat: 0, Lng: 181}, {Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}.Validate())
}
