package export

import (
	"context"
	"testing"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/stopsearch-cli/internal/isochrone"
	"github.com/sells-group/stopsearch-cli/internal/model"
	"github.com/sells-group/stopsearch-cli/internal/spatial"
)

func testTable(t *testing.T) *spatial.Table {
	t.Helper()
	return spatial.FromTable(model.Table{
		{
			AgeRange:             model.Some("18-24"),
			Outcome:              model.Some("Arrest"),
			InvolvedPerson:       true,
			Gender:               model.Some("Male"),
			SelfDefinedEthnicity: model.Some("Black/African/Caribbean/Black British - Any other"),
			StreetID:             1234,
			Longitude:            -2.9801,
			Latitude:             53.4012,
			Date:                 "2023-01-05T10:00:00+00:00",
			OfficerEthnicity:     model.Some("White"),
			StreetName:           model.Some("On or near Bold Street"),
			Month:                1,
		},
		{
			AgeRange:             model.Some("25-34"),
			Outcome:              model.None(),
			InvolvedPerson:       true,
			Gender:               model.Some("Female"),
			SelfDefinedEthnicity: model.Some("White - English/Welsh/Scottish/Northern Irish/British"),
			StreetID:             99,
			Longitude:            -2.9655,
			Latitude:             53.4101,
			Date:                 "2023-02-11T21:30:00+00:00",
			OfficerEthnicity:     model.None(),
			Month:                2,
		},
	})
}

func testContours() []isochrone.Contour {
	ring := func(d float64) []float64 {
		return []float64{-2.98, 53.40, -2.98 + d, 53.40, -2.98 + d, 53.40 + d, -2.98, 53.40 + d, -2.98, 53.40}
	}
	mk := func(m int, d float64) isochrone.Contour {
		flat := ring(d)
		return isochrone.Contour{
			Minutes:    m,
			Polygon:    geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(spatial.SRID),
			CRS:        spatial.CRS,
			Properties: map[string]any{"contour": float64(m), "color": "#bf4040"},
		}
	}
	return []isochrone.Contour{mk(10, 0.02), mk(5, 0.01)}
}

type fakeSink struct {
	name    string
	failOn  string
	written []string
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) WriteRecords(_ context.Context, name string, _ spatial.View) error {
	return f.record(name)
}

func (f *fakeSink) WriteContours(_ context.Context, name string, _ []isochrone.Contour) error {
	return f.record(name)
}

func (f *fakeSink) record(name string) error {
	if name == f.failOn {
		return errFake
	}
	f.written = append(f.written, name)
	return nil
}

func clauseNoMatch() spatial.Clause {
	return spatial.Clause{Field: model.FieldGender, Contains: "no such value"}
}
