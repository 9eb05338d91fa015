package spatial

import (
	"strings"

	"github.com/twpayne/go-geom"
	"golang.org/x/text/cases"

	"github.com/sells-group/stopsearch-cli/internal/model"
)

// View is a read-only selection of rows of a Table, in table order.
type View struct {
	table *Table
	idx   []int
}

// Len returns the number of rows in the view.
func (v View) Len() int { return len(v.idx) }

// Table returns the parent table.
func (v View) Table() *Table { return v.table }

// Row returns the i-th row of the view.
func (v View) Row(i int) Row { return v.table.rows[v.idx[i]] }

// Rows returns a copy of the selected rows.
func (v View) Rows() []Row {
	out := make([]Row, len(v.idx))
	for i, j := range v.idx {
		out[i] = v.table.rows[j]
	}
	return out
}

// Bounds returns the extent of the view's points, or nil when empty.
func (v View) Bounds() *geom.Bounds {
	if len(v.idx) == 0 {
		return nil
	}
	b := geom.NewBounds(geom.XY)
	for _, j := range v.idx {
		b.Extend(v.table.rows[j].Geometry)
	}
	return b
}

// Clause is one substring predicate on a record field.
type Clause struct {
	Field    model.Field `yaml:"field" mapstructure:"field"`
	Contains string      `yaml:"contains" mapstructure:"contains"`
	// FoldCase switches to Unicode case-insensitive containment.
	FoldCase bool `yaml:"fold_case" mapstructure:"fold_case"`
}

func (c Clause) matcher() func(model.Optional) bool {
	if !c.FoldCase {
		return func(o model.Optional) bool {
			return o.Valid && strings.Contains(o.Value, c.Contains)
		}
	}
	needle := cases.Fold().String(c.Contains)
	return func(o model.Optional) bool {
		return o.Valid && strings.Contains(cases.Fold().String(o.Value), needle)
	}
}

// Where keeps the rows whose field contains the clause's substring.
// Absent values never match.
func (v View) Where(c Clause) View {
	match := c.matcher()
	out := View{table: v.table, idx: make([]int, 0, len(v.idx))}
	for _, j := range v.idx {
		if match(v.table.rows[j].Get(c.Field)) {
			out.idx = append(out.idx, j)
		}
	}
	return out
}

// Filter is Where with an exact-case clause.
func Filter(v View, field model.Field, substr string) View {
	return v.Where(Clause{Field: field, Contains: substr})
}
