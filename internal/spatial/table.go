// Package spatial attaches point geometry to the annual table and derives
// named read-only subsets from it.
package spatial

import (
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/stopsearch-cli/internal/model"
)

// CRS identifies the coordinate reference system of every geometry.
const (
	CRS  = "EPSG:4326"
	SRID = 4326
)

// Row is a record with its point geometry.
type Row struct {
	model.Record
	Geometry *geom.Point
}

// Table is the immutable spatial table. Rows without finite coordinates are
// excluded at construction and counted.
type Table struct {
	rows    []Row
	skipped int
}

// FromTable geo-tags every record of t.
func FromTable(t model.Table) *Table {
	st := &Table{rows: make([]Row, 0, len(t))}
	for _, rec := range t {
		if !rec.HasLocation() {
			st.skipped++
			continue
		}
		pt := geom.NewPointFlat(geom.XY, []float64{rec.Longitude, rec.Latitude}).SetSRID(SRID)
		st.rows = append(st.rows, Row{Record: rec, Geometry: pt})
	}
	if st.skipped > 0 {
		zap.L().Warn("spatial: rows without location excluded", zap.Int("skipped", st.skipped))
	}
	return st
}

// Len returns the number of geo-tagged rows.
func (t *Table) Len() int { return len(t.rows) }

// Skipped returns how many input records had no usable location.
func (t *Table) Skipped() int { return t.skipped }

// CRS returns the table's coordinate reference system.
func (t *Table) CRS() string { return CRS }

// Row returns the i-th row.
func (t *Table) Row(i int) Row { return t.rows[i] }

// All returns a view over every row.
func (t *Table) All() View {
	idx := make([]int, len(t.rows))
	for i := range idx {
		idx[i] = i
	}
	return View{table: t, idx: idx}
}

// Bounds returns the extent of the whole table, or nil when empty.
func (t *Table) Bounds() *geom.Bounds {
	return t.All().Bounds()
}
