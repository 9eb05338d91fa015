package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/stopsearch-cli/internal/isochrone"
	"github.com/sells-group/stopsearch-cli/internal/spatial"
)

// GeoJSONExt is the file extension written by GeoJSONSink.
const GeoJSONExt = ".geojson"

// GeoJSONSink writes one FeatureCollection file per layer.
type GeoJSONSink struct {
	dir string
}

// NewGeoJSONSink returns a sink writing into dir.
func NewGeoJSONSink(dir string) *GeoJSONSink {
	return &GeoJSONSink{dir: dir}
}

// Name implements Sink.
func (s *GeoJSONSink) Name() string { return FormatGeoJSON }

// WriteRecords implements Sink.
func (s *GeoJSONSink) WriteRecords(_ context.Context, name string, v spatial.View) error {
	return s.write(name, RecordCollection(v))
}

// WriteContours implements Sink.
func (s *GeoJSONSink) WriteContours(_ context.Context, name string, contours []isochrone.Contour) error {
	return s.write(name, ContourCollection(contours))
}

func (s *GeoJSONSink) write(name string, fc *geojson.FeatureCollection) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrapf(err, "geojson: encode %s", name)
	}
	return stage(s.dir, name, func(tmp string) error {
		if err := os.WriteFile(filepath.Join(tmp, name+GeoJSONExt), data, 0o644); err != nil {
			return eris.Wrapf(err, "geojson: write %s", name)
		}
		return nil
	})
}

// RecordCollection converts a view to a point FeatureCollection.
func RecordCollection(v spatial.View) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{
		BBox:     v.Bounds(),
		Features: make([]*geojson.Feature, 0, v.Len()),
	}
	for i := 0; i < v.Len(); i++ {
		row := v.Row(i)
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         strconv.Itoa(i),
			Geometry:   row.Geometry,
			Properties: properties(row.Record),
		})
	}
	return fc
}

// ContourCollection converts contours to a polygon FeatureCollection. The
// contour property is always the travel time in minutes.
func ContourCollection(contours []isochrone.Contour) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(contours))}
	var bounds *geom.Bounds
	for i, c := range contours {
		props := make(map[string]any, len(c.Properties)+1)
		for k, v := range c.Properties {
			props[k] = v
		}
		props[contourColumn.Name] = c.Minutes
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         strconv.Itoa(i),
			Geometry:   c.Polygon,
			Properties: props,
		})
		if c.Polygon != nil {
			if bounds == nil {
				bounds = geom.NewBounds(geom.XY)
			}
			bounds.Extend(c.Polygon)
		}
	}
	fc.BBox = bounds
	return fc
}
