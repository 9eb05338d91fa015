package export

import (
	"github.com/sells-group/stopsearch-cli/internal/model"
)

type kind int

const (
	kindText kind = iota
	kindInt
	kindFloat
	kindBool
)

// column is one attribute written by every sink. Name is used by GeoJSON,
// GeoPackage and PostGIS; Short is the 10-character DBF name.
type column struct {
	Name  string
	Short string
	Kind  kind
	Width uint8
	value func(model.Record) any
}

func text(o model.Optional) any {
	if !o.Valid {
		return nil
	}
	return o.Value
}

var recordColumns = []column{
	{"age_range", "AGE_RANGE", kindText, 16, func(r model.Record) any { return text(r.AgeRange) }},
	{"outcome", "OUTCOME", kindText, 120, func(r model.Record) any { return text(r.Outcome) }},
	{"involved_person", "INVOLVED", kindBool, 5, func(r model.Record) any { return r.InvolvedPerson }},
	{"gender", "GENDER", kindText, 16, func(r model.Record) any { return text(r.Gender) }},
	{"self_defined_ethnicity", "SELF_ETH", kindText, 120, func(r model.Record) any { return text(r.SelfDefinedEthnicity) }},
	{"street_id", "STREET_ID", kindInt, 18, func(r model.Record) any { return r.StreetID }},
	{"longitude", "LONGITUDE", kindFloat, 19, func(r model.Record) any { return r.Longitude }},
	{"latitude", "LATITUDE", kindFloat, 19, func(r model.Record) any { return r.Latitude }},
	{"date", "DATE", kindText, 32, func(r model.Record) any { return r.Date }},
	{"officer_ethnicity", "OFF_ETH", kindText, 32, func(r model.Record) any { return text(r.OfficerEthnicity) }},
	{"street_name", "STREET", kindText, 120, func(r model.Record) any { return text(r.StreetName) }},
	{"legislation", "LEGISLATN", kindText, 160, func(r model.Record) any { return text(r.Legislation) }},
	{"object_of_search", "OBJECT", kindText, 120, func(r model.Record) any { return text(r.ObjectOfSearch) }},
	{"type", "TYPE", kindText, 40, func(r model.Record) any { return text(r.Type) }},
	{"month", "MONTH", kindInt, 2, func(r model.Record) any { return r.Month }},
}

// contourColumn holds the isochrone travel time in minutes.
var contourColumn = column{Name: "contour", Short: "CONTOUR", Kind: kindInt, Width: 4}

// properties returns the GeoJSON properties of r, with null for absent values.
func properties(r model.Record) map[string]any {
	props := make(map[string]any, len(recordColumns))
	for _, c := range recordColumns {
		props[c.Name] = c.value(r)
	}
	return props
}

// values returns r's attribute values in column order.
func values(r model.Record) []any {
	out := make([]any, len(recordColumns))
	for i, c := range recordColumns {
		out[i] = c.value(r)
	}
	return out
}
