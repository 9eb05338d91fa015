package export

import (
	"context"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/stopsearch-cli/internal/isochrone"
	"github.com/sells-group/stopsearch-cli/internal/spatial"
)

// wgs84PRJ is the ESRI WKT for EPSG:4326.
const wgs84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// ShapefileSink writes one shapefile set (.shp .shx .dbf .prj .cpg) per layer.
type ShapefileSink struct {
	dir string
}

// NewShapefileSink returns a sink writing into dir.
func NewShapefileSink(dir string) *ShapefileSink {
	return &ShapefileSink{dir: dir}
}

// Name implements Sink.
func (s *ShapefileSink) Name() string { return FormatShapefile }

func dbfField(c column) shp.Field {
	switch c.Kind {
	case kindInt:
		return shp.NumberField(c.Short, c.Width)
	case kindFloat:
		return shp.FloatField(c.Short, c.Width, 8)
	default:
		return shp.StringField(c.Short, c.Width)
	}
}

// dbfValue converts v to a type go-shp can write, or nil to leave it blank.
func dbfValue(c column, v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return truncate(t, int(c.Width))
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int64:
		return int(t)
	default:
		return v
	}
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// WriteRecords implements Sink.
func (s *ShapefileSink) WriteRecords(ctx context.Context, name string, v spatial.View) error {
	fields := make([]shp.Field, len(recordColumns))
	for i, c := range recordColumns {
		fields[i] = dbfField(c)
	}
	return s.write(name, shp.POINT, fields, func(w *shp.Writer) error {
		for i := 0; i < v.Len(); i++ {
			if i%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			row := v.Row(i)
			idx := int(w.Write(&shp.Point{X: row.Geometry.X(), Y: row.Geometry.Y()}))
			for j, val := range values(row.Record) {
				val = dbfValue(recordColumns[j], val)
				if val == nil {
					continue
				}
				if err := w.WriteAttribute(idx, j, val); err != nil {
					return eris.Wrapf(err, "shapefile: %s row %d field %s", name, idx, recordColumns[j].Short)
				}
			}
		}
		return nil
	})
}

// WriteContours implements Sink.
func (s *ShapefileSink) WriteContours(_ context.Context, name string, contours []isochrone.Contour) error {
	fields := []shp.Field{dbfField(contourColumn)}
	return s.write(name, shp.POLYGON, fields, func(w *shp.Writer) error {
		for _, c := range contours {
			poly, err := shpPolygon(c.Polygon)
			if err != nil {
				return eris.Wrapf(err, "shapefile: %s contour %d", name, c.Minutes)
			}
			idx := int(w.Write(poly))
			if err := w.WriteAttribute(idx, 0, c.Minutes); err != nil {
				return eris.Wrapf(err, "shapefile: %s contour %d", name, c.Minutes)
			}
		}
		return nil
	})
}

func (s *ShapefileSink) write(name string, t shp.ShapeType, fields []shp.Field, fill func(*shp.Writer) error) error {
	return stage(s.dir, name, func(tmp string) error {
		base := filepath.Join(tmp, name)
		w, err := shp.Create(base+".shp", t)
		if err != nil {
			return eris.Wrapf(err, "shapefile: create %s", name)
		}
		if err := w.SetFields(fields); err != nil {
			w.Close()
			return eris.Wrapf(err, "shapefile: set fields %s", name)
		}
		fillErr := fill(w)
		w.Close()
		if fillErr != nil {
			return fillErr
		}

		// go-shp v0.1.1 names the attribute table "<base>dbf".
		if _, err := os.Stat(base + "dbf"); err == nil {
			if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
				return eris.Wrapf(err, "shapefile: rename dbf %s", name)
			}
		}
		if err := os.WriteFile(base+".prj", []byte(wgs84PRJ), 0o644); err != nil {
			return eris.Wrapf(err, "shapefile: write prj %s", name)
		}
		if err := os.WriteFile(base+".cpg", []byte("UTF-8"), 0o644); err != nil {
			return eris.Wrapf(err, "shapefile: write cpg %s", name)
		}
		return nil
	})
}

// shpPolygon converts p ring by ring, keeping vertex order.
func shpPolygon(p *geom.Polygon) (*shp.Polygon, error) {
	if p == nil || p.NumLinearRings() == 0 {
		return nil, eris.New("empty polygon")
	}
	parts := make([][]shp.Point, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		ring := p.LinearRing(i)
		pts := make([]shp.Point, 0, ring.NumCoords())
		for j := 0; j < ring.NumCoords(); j++ {
			c := ring.Coord(j)
			pts = append(pts, shp.Point{X: c.X(), Y: c.Y()})
		}
		parts = append(parts, pts)
	}
	poly := shp.Polygon(*shp.NewPolyLine(parts))
	return &poly, nil
}
