package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

// Execer runs a statement without returning rows.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ColumnDef is one column of a CREATE TABLE statement.
type ColumnDef struct {
	Name string
	Type string
}

// CreateTableSQL renders CREATE TABLE IF NOT EXISTS for table.
func CreateTableSQL(table pgx.Identifier, cols []ColumnDef) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(table.Sanitize())
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgx.Identifier{c.Name}.Sanitize())
		b.WriteByte(' ')
		b.WriteString(c.Type)
	}
	b.WriteString(")")
	return b.String()
}

// EnsureSchema creates schema if it does not exist.
func EnsureSchema(ctx context.Context, e Execer, schema string) error {
	if _, err := e.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
		return eris.Wrapf(err, "db: create schema %s", schema)
	}
	return nil
}

// EnsureTable creates table with cols if it does not exist.
func EnsureTable(ctx context.Context, e Execer, table pgx.Identifier, cols []ColumnDef) error {
	if len(cols) == 0 {
		return eris.Errorf("db: create table %s: no columns", table.Sanitize())
	}
	if _, err := e.Exec(ctx, CreateTableSQL(table, cols)); err != nil {
		return eris.Wrapf(err, "db: create table %s", table.Sanitize())
	}
	return nil
}

// Truncate empties table before a reload.
func Truncate(ctx context.Context, e Execer, table pgx.Identifier) error {
	if _, err := e.Exec(ctx, "TRUNCATE "+table.Sanitize()); err != nil {
		return eris.Wrapf(err, "db: truncate %s", table.Sanitize())
	}
	return nil
}
