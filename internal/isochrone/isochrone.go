// Package isochrone fetches travel-time polygons around an origin and splits
// the response into one geometry per contour.
package isochrone

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/stopsearch-cli/internal/fetcher"
)

// DefaultBaseURL is the Mapbox API root.
const DefaultBaseURL = "https://api.mapbox.com"

// CRS of every returned contour.
const CRS = "EPSG:4326"

const (
	maxContours = 4
	maxMinutes  = 60
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	Profile string // walking, cycling, driving
	Timeout time.Duration
}

// Client requests isochrones.
type Client struct {
	fetcher fetcher.Fetcher
	opts    Options
}

// NewClient creates a Client. The token is held by the client and never
// read from package state.
func NewClient(f fetcher.Fetcher, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Profile == "" {
		opts.Profile = "walking"
	}
	return &Client{fetcher: f, opts: opts}
}

// BuildURL returns the isochrone request URL for an origin and thresholds.
func (c *Client) BuildURL(lng, lat float64, minutes []int) (string, error) {
	if err := validateMinutes(minutes); err != nil {
		return "", err
	}
	if c.opts.Token == "" {
		return "", eris.New("isochrone: access token is empty")
	}

	mins := make([]string, len(minutes))
	for i, m := range minutes {
		mins[i] = strconv.Itoa(m)
	}

	q := url.Values{}
	q.Set("contours_minutes", strings.Join(mins, ","))
	q.Set("polygons", "true")
	q.Set("access_token", c.opts.Token)

	origin := strconv.FormatFloat(lng, 'f', -1, 64) + "," + strconv.FormatFloat(lat, 'f', -1, 64)
	return strings.TrimRight(c.opts.BaseURL, "/") +
		"/isochrone/v1/mapbox/" + url.PathEscape(c.opts.Profile) + "/" + origin +
		"?" + q.Encode(), nil
}

func validateMinutes(minutes []int) error {
	if len(minutes) == 0 || len(minutes) > maxContours {
		return eris.Errorf("isochrone: need 1-%d contours, got %d", maxContours, len(minutes))
	}
	prev := 0
	for _, m := range minutes {
		if m < 1 || m > maxMinutes {
			return eris.Errorf("isochrone: contour %d minutes out of range 1-%d", m, maxMinutes)
		}
		if m <= prev {
			return eris.Errorf("isochrone: contours must increase, got %v", minutes)
		}
		prev = m
	}
	return nil
}

// Fetch requests the isochrones and returns the decoded FeatureCollection.
func (c *Client) Fetch(ctx context.Context, lng, lat float64, minutes []int) (*geojson.FeatureCollection, error) {
	u, err := c.BuildURL(lng, lat, minutes)
	if err != nil {
		return nil, err
	}
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	body, err := c.fetcher.Download(ctx, u)
	if err != nil {
		return nil, eris.Wrap(err, "isochrone: fetch")
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrap(err, "isochrone: read body")
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "isochrone: decode feature collection")
	}

	zap.L().Debug("isochrone: fetched",
		zap.Float64("lng", lng),
		zap.Float64("lat", lat),
		zap.Int("features", len(fc.Features)),
	)
	return &fc, nil
}

// Contour is one isochrone polygon.
type Contour struct {
	Minutes    int
	Polygon    *geom.Polygon
	CRS        string
	Properties map[string]any
}

// Split turns each feature into its own contour, in response order. Ring
// vertex order and count are preserved.
func Split(fc *geojson.FeatureCollection) ([]Contour, error) {
	if fc == nil {
		return nil, eris.New("isochrone: nil feature collection")
	}
	out := make([]Contour, 0, len(fc.Features))
	for i, f := range fc.Features {
		minutes, err := contourMinutes(f.Properties)
		if err != nil {
			return nil, eris.Wrapf(err, "isochrone: feature %d", i)
		}
		poly, err := asPolygon(f.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "isochrone: feature %d", i)
		}
		out = append(out, Contour{
			Minutes:    minutes,
			Polygon:    poly,
			CRS:        CRS,
			Properties: f.Properties,
		})
	}
	return out, nil
}

func contourMinutes(props map[string]any) (int, error) {
	v, ok := props["contour"]
	if !ok {
		return 0, eris.New("missing contour property")
	}
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, eris.Errorf("contour %v is not a whole number", n)
		}
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, eris.Errorf("contour has type %T", v)
	}
}

func asPolygon(g geom.T) (*geom.Polygon, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		p := geom.NewPolygonFlat(t.Layout(), t.FlatCoords(), t.Ends())
		return p.SetSRID(4326), nil
	case *geom.LineString:
		// polygons=false responses carry the closed ring as a line.
		p := geom.NewPolygonFlat(t.Layout(), t.FlatCoords(), []int{len(t.FlatCoords())})
		return p.SetSRID(4326), nil
	case nil:
		return nil, eris.New("missing geometry")
	default:
		return nil, eris.Errorf("unsupported geometry %T", g)
	}
}
