package export

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/stopsearch-cli/internal/db"
	"github.com/sells-group/stopsearch-cli/internal/isochrone"
	"github.com/sells-group/stopsearch-cli/internal/spatial"
)

// DefaultSchema is the PostGIS schema used when none is configured.
const DefaultSchema = "stopsearch"

// PostGISSink replaces <schema>.<layer> tables in a single transaction per
// layer.
type PostGISSink struct {
	pool      db.Pool
	schema    string
	batchSize int
}

// NewPostGISSink returns a sink writing through pool into schema.
func NewPostGISSink(pool db.Pool, schema string) *PostGISSink {
	if schema == "" {
		schema = DefaultSchema
	}
	return &PostGISSink{pool: pool, schema: schema}
}

// Name implements Sink.
func (s *PostGISSink) Name() string { return FormatPostGIS }

func pgType(k kind) string {
	switch k {
	case kindInt:
		return "bigint"
	case kindFloat:
		return "double precision"
	case kindBool:
		return "boolean"
	default:
		return "text"
	}
}

// RecordColumnDefs returns the table definition of a record layer.
func RecordColumnDefs() []db.ColumnDef {
	defs := make([]db.ColumnDef, 0, len(recordColumns)+1)
	for _, c := range recordColumns {
		defs = append(defs, db.ColumnDef{Name: c.Name, Type: pgType(c.Kind)})
	}
	return append(defs, db.ColumnDef{Name: geomColumn, Type: "geometry(Point, 4326)"})
}

// ContourColumnDefs returns the table definition of a contour layer.
func ContourColumnDefs() []db.ColumnDef {
	return []db.ColumnDef{
		{Name: contourColumn.Name, Type: pgType(contourColumn.Kind)},
		{Name: geomColumn, Type: "geometry(Polygon, 4326)"},
	}
}

func columnNames(defs []db.ColumnDef) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.Name
	}
	return out
}

func encodeEWKB(g geom.T) ([]byte, error) {
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "postgis: encode EWKB")
	}
	return data, nil
}

// WriteRecords implements Sink.
func (s *PostGISSink) WriteRecords(ctx context.Context, name string, v spatial.View) error {
	rows := make([][]any, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		row := v.Row(i)
		g, err := encodeEWKB(row.Geometry)
		if err != nil {
			return eris.Wrapf(err, "postgis: %s row %d", name, i)
		}
		rows = append(rows, append(values(row.Record), g))
	}
	return s.replace(ctx, name, RecordColumnDefs(), rows)
}

// WriteContours implements Sink.
func (s *PostGISSink) WriteContours(ctx context.Context, name string, contours []isochrone.Contour) error {
	rows := make([][]any, 0, len(contours))
	for _, c := range contours {
		if c.Polygon == nil {
			return eris.Errorf("postgis: %s contour %d has no polygon", name, c.Minutes)
		}
		g, err := encodeEWKB(c.Polygon)
		if err != nil {
			return eris.Wrapf(err, "postgis: %s contour %d", name, c.Minutes)
		}
		rows = append(rows, []any{int64(c.Minutes), g})
	}
	return s.replace(ctx, name, ContourColumnDefs(), rows)
}

func (s *PostGISSink) replace(ctx context.Context, name string, defs []db.ColumnDef, rows [][]any) error {
	table := pgx.Identifier{s.schema, name}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgis: begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := db.EnsureSchema(ctx, tx, s.schema); err != nil {
		return err
	}
	if err := db.EnsureTable(ctx, tx, table, defs); err != nil {
		return err
	}
	if err := db.Truncate(ctx, tx, table); err != nil {
		return err
	}
	if _, err := db.CopyRows(ctx, tx, table, columnNames(defs), rows, s.batchSize); err != nil {
		return err
	}
	return eris.Wrapf(tx.Commit(ctx), "postgis: commit %s", table.Sanitize())
}
