// Package export writes spatial layers to vector files and PostGIS.
package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/stopsearch-cli/internal/isochrone"
	"github.com/sells-group/stopsearch-cli/internal/spatial"
)

// Format names accepted in export.formats.
const (
	FormatGeoJSON    = "geojson"
	FormatShapefile  = "shp"
	FormatGeoPackage = "gpkg"
	FormatPostGIS    = "postgis"
)

// Sink is one export destination.
type Sink interface {
	Name() string
	WriteRecords(ctx context.Context, name string, v spatial.View) error
	WriteContours(ctx context.Context, name string, contours []isochrone.Contour) error
}

// Layer is one named output: either a record view or a set of contours.
type Layer struct {
	Name     string
	View     spatial.View
	Contours []isochrone.Contour
	contours bool
}

// RecordLayer returns a point layer over v.
func RecordLayer(name string, v spatial.View) Layer {
	return Layer{Name: name, View: v}
}

// ContourLayer returns a polygon layer over cs.
func ContourLayer(name string, cs []isochrone.Contour) Layer {
	return Layer{Name: name, Contours: cs, contours: true}
}

// IsContours reports whether the layer holds isochrone polygons.
func (l Layer) IsContours() bool { return l.contours }

// Len returns the number of features in the layer.
func (l Layer) Len() int {
	if l.contours {
		return len(l.Contours)
	}
	return l.View.Len()
}

var layerName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// ValidateLayerName checks that name is usable as a file stem and table name.
func ValidateLayerName(name string) error {
	if !layerName.MatchString(name) {
		return eris.Errorf("export: invalid layer name %q (want lower-case letters, digits, underscores)", name)
	}
	return nil
}

// Failure records one layer that a sink could not write.
type Failure struct {
	Sink  string `yaml:"sink" json:"sink"`
	Layer string `yaml:"layer" json:"layer"`
	Error string `yaml:"error" json:"error"`
}

// Result summarizes an export run.
type Result struct {
	Written  int
	Failures []Failure
}

// Run writes every layer to every sink. A failing layer does not stop the
// others and nothing already written is rolled back; the failures are
// returned both in the result and as a joined error.
func Run(ctx context.Context, sinks []Sink, layers []Layer) (Result, error) {
	var res Result
	var errs []error
	log := zap.L().With(zap.String("component", "export"))

	for _, s := range sinks {
		for _, l := range layers {
			if err := ctx.Err(); err != nil {
				return res, err
			}

			err := ValidateLayerName(l.Name)
			if err == nil {
				if l.contours {
					err = s.WriteContours(ctx, l.Name, l.Contours)
				} else {
					err = s.WriteRecords(ctx, l.Name, l.View)
				}
			}
			if err != nil {
				log.Error("layer export failed",
					zap.String("sink", s.Name()),
					zap.String("layer", l.Name),
					zap.Error(err),
				)
				res.Failures = append(res.Failures, Failure{Sink: s.Name(), Layer: l.Name, Error: err.Error()})
				errs = append(errs, eris.Wrapf(err, "export: %s/%s", s.Name(), l.Name))
				continue
			}
			res.Written++
			log.Info("layer exported",
				zap.String("sink", s.Name()),
				zap.String("layer", l.Name),
				zap.Int("features", l.Len()),
			)
		}
	}
	return res, errors.Join(errs...)
}

// FileSinks builds the file sinks for formats, writing into dir. PostGIS is
// skipped here because it needs a pool; see NewPostGISSink.
func FileSinks(dir string, formats []string) ([]Sink, error) {
	var sinks []Sink
	for _, f := range formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case FormatGeoJSON:
			sinks = append(sinks, NewGeoJSONSink(dir))
		case FormatShapefile, "shapefile":
			sinks = append(sinks, NewShapefileSink(dir))
		case FormatGeoPackage, "geopackage":
			sinks = append(sinks, NewGeoPackageSink(dir))
		case FormatPostGIS, "":
		default:
			return nil, eris.Errorf("export: unknown format %q", f)
		}
	}
	return sinks, nil
}

// stage runs write against an empty scratch directory next to dir, then
// moves every file it produced into dir. Nothing reaches dir if write fails.
func stage(dir, name string, write func(tmp string) error) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "export: create %s", dir)
	}
	tmp, err := os.MkdirTemp(dir, "."+name+"-*")
	if err != nil {
		return eris.Wrap(err, "export: create staging dir")
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	if err := write(tmp); err != nil {
		return err
	}

	entries, err := os.ReadDir(tmp)
	if err != nil {
		return eris.Wrap(err, "export: read staging dir")
	}
	for _, e := range entries {
		if err := os.Rename(filepath.Join(tmp, e.Name()), filepath.Join(dir, e.Name())); err != nil {
			return eris.Wrapf(err, "export: move %s into place", e.Name())
		}
	}
	return nil
}
