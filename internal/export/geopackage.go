package export

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	_ "modernc.org/sqlite"

	"github.com/sells-group/stopsearch-cli/internal/isochrone"
	"github.com/sells-group/stopsearch-cli/internal/spatial"
)

// GeoPackageExt is the file extension written by GeoPackageSink.
const GeoPackageExt = ".gpkg"

const (
	gpkgApplicationID = 0x47504B47 // "GPKG"
	gpkgUserVersion   = 10200
	geomColumn        = "geom"
)

const wgs84WKT = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`

var gpkgCoreTables = []string{
	`CREATE TABLE gpkg_spatial_ref_sys (
		srs_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL PRIMARY KEY,
		organization TEXT NOT NULL,
		organization_coordsys_id INTEGER NOT NULL,
		definition TEXT NOT NULL,
		description TEXT
	)`,
	`CREATE TABLE gpkg_contents (
		table_name TEXT NOT NULL PRIMARY KEY,
		data_type TEXT NOT NULL,
		identifier TEXT UNIQUE,
		description TEXT DEFAULT '',
		last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
		srs_id INTEGER,
		CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
	)`,
	`CREATE TABLE gpkg_geometry_columns (
		table_name TEXT NOT NULL,
		column_name TEXT NOT NULL,
		geometry_type_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL,
		z TINYINT NOT NULL,
		m TINYINT NOT NULL,
		CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
		CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
		CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
	)`,
	`INSERT INTO gpkg_spatial_ref_sys VALUES
		('Undefined cartesian SRS', -1, 'NONE', -1, 'undefined', 'undefined cartesian coordinate reference system'),
		('Undefined geographic SRS', 0, 'NONE', 0, 'undefined', 'undefined geographic coordinate reference system')`,
}

// GeoPackageSink writes one GeoPackage file per layer, holding a single
// feature table of the same name.
type GeoPackageSink struct {
	dir string
}

// NewGeoPackageSink returns a sink writing into dir.
func NewGeoPackageSink(dir string) *GeoPackageSink {
	return &GeoPackageSink{dir: dir}
}

// Name implements Sink.
func (s *GeoPackageSink) Name() string { return FormatGeoPackage }

// WriteRecords implements Sink.
func (s *GeoPackageSink) WriteRecords(ctx context.Context, name string, v spatial.View) error {
	cols := make([]string, 0, len(recordColumns))
	for _, c := range recordColumns {
		cols = append(cols, c.Name+" "+sqliteType(c.Kind))
	}
	return s.write(ctx, name, "POINT", cols, v.Bounds(), func(ins *sql.Stmt) error {
		for i := 0; i < v.Len(); i++ {
			row := v.Row(i)
			blob, err := EncodeGeoPackageGeometry(row.Geometry, spatial.SRID)
			if err != nil {
				return eris.Wrapf(err, "gpkg: %s row %d", name, i)
			}
			args := append([]any{blob}, sqliteValues(values(row.Record))...)
			if _, err := ins.ExecContext(ctx, args...); err != nil {
				return eris.Wrapf(err, "gpkg: insert %s row %d", name, i)
			}
		}
		return nil
	})
}

// WriteContours implements Sink.
func (s *GeoPackageSink) WriteContours(ctx context.Context, name string, contours []isochrone.Contour) error {
	var bounds *geom.Bounds
	for _, c := range contours {
		if c.Polygon == nil {
			continue
		}
		if bounds == nil {
			bounds = geom.NewBounds(geom.XY)
		}
		bounds.Extend(c.Polygon)
	}
	cols := []string{contourColumn.Name + " " + sqliteType(contourColumn.Kind)}
	return s.write(ctx, name, "POLYGON", cols, bounds, func(ins *sql.Stmt) error {
		for _, c := range contours {
			blob, err := EncodeGeoPackageGeometry(c.Polygon, spatial.SRID)
			if err != nil {
				return eris.Wrapf(err, "gpkg: %s contour %d", name, c.Minutes)
			}
			if _, err := ins.ExecContext(ctx, blob, c.Minutes); err != nil {
				return eris.Wrapf(err, "gpkg: insert %s contour %d", name, c.Minutes)
			}
		}
		return nil
	})
}

func (s *GeoPackageSink) write(ctx context.Context, name, geomType string, cols []string, bounds *geom.Bounds, fill func(*sql.Stmt) error) error {
	return stage(s.dir, name, func(tmp string) error {
		db, err := sql.Open("sqlite", filepath.Join(tmp, name+GeoPackageExt))
		if err != nil {
			return eris.Wrapf(err, "gpkg: open %s", name)
		}
		defer db.Close()

		if err := initGeoPackage(ctx, db); err != nil {
			return eris.Wrapf(err, "gpkg: init %s", name)
		}

		ddl := fmt.Sprintf("CREATE TABLE %q (fid INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL, %s %s, %s)",
			name, geomColumn, geomType, strings.Join(cols, ", "))
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return eris.Wrapf(err, "gpkg: create table %s", name)
		}
		if err := registerLayer(ctx, db, name, geomType, bounds); err != nil {
			return err
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return eris.Wrap(err, "gpkg: begin")
		}
		defer func() { _ = tx.Rollback() }()

		names := make([]string, 0, len(cols)+1)
		names = append(names, geomColumn)
		for _, c := range cols {
			names = append(names, strings.Fields(c)[0])
		}
		insert := fmt.Sprintf("INSERT INTO %q (%s) VALUES (?%s)",
			name, strings.Join(names, ", "), strings.Repeat(", ?", len(names)-1))
		ins, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return eris.Wrapf(err, "gpkg: prepare insert %s", name)
		}
		defer ins.Close()

		if err := fill(ins); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return eris.Wrapf(err, "gpkg: commit %s", name)
		}
		return nil
	})
}

func initGeoPackage(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA application_id = %d", gpkgApplicationID),
		fmt.Sprintf("PRAGMA user_version = %d", gpkgUserVersion),
	}
	for _, stmt := range append(pragmas, gpkgCoreTables...) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO gpkg_spatial_ref_sys VALUES ('WGS 84 geodetic', ?, 'EPSG', ?, ?, 'longitude/latitude coordinates in decimal degrees on the WGS 84 spheroid')`,
		spatial.SRID, spatial.SRID, wgs84WKT)
	return err
}

func registerLayer(ctx context.Context, db *sql.DB, name, geomType string, b *geom.Bounds) error {
	var minX, minY, maxX, maxY any
	if b != nil {
		minX, minY, maxX, maxY = b.Min(0), b.Min(1), b.Max(0), b.Max(1)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO gpkg_contents (table_name, data_type, identifier, min_x, min_y, max_x, max_y, srs_id) VALUES (?, 'features', ?, ?, ?, ?, ?, ?)`,
		name, name, minX, minY, maxX, maxY, spatial.SRID); err != nil {
		return eris.Wrapf(err, "gpkg: register contents %s", name)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO gpkg_geometry_columns VALUES (?, ?, ?, ?, 0, 0)`,
		name, geomColumn, geomType, spatial.SRID); err != nil {
		return eris.Wrapf(err, "gpkg: register geometry column %s", name)
	}
	return nil
}

func sqliteType(k kind) string {
	switch k {
	case kindInt:
		return "INTEGER"
	case kindFloat:
		return "DOUBLE"
	case kindBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func sqliteValues(vals []any) []any {
	for i, v := range vals {
		if b, ok := v.(bool); ok {
			if b {
				vals[i] = 1
			} else {
				vals[i] = 0
			}
		}
	}
	return vals
}

// EncodeGeoPackageGeometry returns g as a GeoPackage geometry blob: the "GP"
// header with an XY envelope followed by little-endian WKB.
func EncodeGeoPackageGeometry(g geom.T, srid int) ([]byte, error) {
	if g == nil {
		return nil, eris.New("gpkg: nil geometry")
	}
	body, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "gpkg: encode wkb")
	}
	b := geom.NewBounds(geom.XY).Extend(g)

	var buf bytes.Buffer
	buf.Grow(8 + 32 + len(body))
	// version 0; flags: little-endian, envelope type 1 (minx, maxx, miny, maxy).
	buf.Write([]byte{'G', 'P', 0, 0x03})
	_ = binary.Write(&buf, binary.LittleEndian, int32(srid))
	_ = binary.Write(&buf, binary.LittleEndian, [4]float64{b.Min(0), b.Max(0), b.Min(1), b.Max(1)})
	buf.Write(body)
	return buf.Bytes(), nil
}
