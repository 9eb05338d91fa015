// Package police talks to the data.police.uk stop-and-search API: it builds
// polygon queries, fetches monthly pages and normalizes the nested records.
package police

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// LatLng is one polygon vertex.
type LatLng struct {
	Lat float64 `yaml:"lat" mapstructure:"lat" json:"lat"`
	Lng float64 `yaml:"lng" mapstructure:"lng" json:"lng"`
}

// Polygon is an ordered ring of vertices. The ring need not repeat its
// first vertex.
type Polygon []LatLng

// String renders the polygon in the API's poly parameter format:
// lat,lng pairs joined by ':'.
func (p Polygon) String() string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = formatCoord(v.Lat) + "," + formatCoord(v.Lng)
	}
	return strings.Join(parts, ":")
}

// Validate checks vertex count and coordinate ranges. BuildQuery does not
// call it; the API is the authority on polygon shape.
func (p Polygon) Validate() error {
	if len(p) < 3 {
		return eris.Errorf("police: polygon needs at least 3 vertices, got %d", len(p))
	}
	for i, v := range p {
		if v.Lat < -90 || v.Lat > 90 {
			return eris.Errorf("police: vertex %d latitude %v out of range", i, v.Lat)
		}
		if v.Lng < -180 || v.Lng > 180 {
			return eris.Errorf("police: vertex %d longitude %v out of range", i, v.Lng)
		}
	}
	return nil
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// MonthParam formats the API date parameter.
func MonthParam(year, month int) (string, error) {
	if month < 1 || month > 12 {
		return "", eris.Errorf("police: month %d out of range 1-12", month)
	}
	if year < 1000 || year > 9999 {
		return "", eris.Errorf("police: year %d is not four digits", year)
	}
	return strconv.Itoa(year) + "-" + twoDigit(month), nil
}

func twoDigit(m int) string {
	if m < 10 {
		return "0" + strconv.Itoa(m)
	}
	return strconv.Itoa(m)
}

// BuildQuery returns the stops-street URL for one month within poly.
// The colon and comma separators are left unescaped as the API documents.
func BuildQuery(baseURL string, poly Polygon, year, month int) (string, error) {
	date, err := MonthParam(year, month)
	if err != nil {
		return "", err
	}
	base := strings.TrimRight(baseURL, "/")
	return base + "/stops-street?poly=" + poly.String() + "&date=" + url.QueryEscape(date), nil
}
