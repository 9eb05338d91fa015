package export

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostGISSink_WriteRecords(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ident := pgx.Identifier{"stopsearch", "black"}
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE SCHEMA IF NOT EXISTS "stopsearch"`)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "stopsearch"."black"`)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta(`TRUNCATE "stopsearch"."black"`)).
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(ident, columnNames(RecordColumnDefs())).WillReturnResult(2)
	mock.ExpectCommit()

	s := NewPostGISSink(mock, "")
	require.NoError(t, s.WriteRecords(context.Background(), "black", testTable(t).All()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostGISSink_CopyFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ident := pgx.Identifier{"public", "isochrone"}
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE SCHEMA`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`TRUNCATE`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(ident, []string{"contour", "geom"}).WillReturnError(fmt.Errorf("type \"geometry\" does not exist"))
	mock.ExpectRollback()

	s := NewPostGISSink(mock, "public")
	err = s.WriteContours(context.Background(), "isochrone", testContours())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geometry")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostGISSink_BeginError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(fmt.Errorf("connection refused"))

	err = NewPostGISSink(mock, "").WriteRecords(context.Background(), "all", testTable(t).All())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgis: begin")
}

func TestRecordColumnDefs(t *testing.T) {
	defs := RecordColumnDefs()
	require.Len(t, defs, len(recordColumns)+1)
	assert.Equal(t, "involved_person", defs[2].Name)
	assert.Equal(t, "boolean", defs[2].Type)
	assert.Equal(t, "geometry(Point, 4326)", defs[len(defs)-1].Type)
}
