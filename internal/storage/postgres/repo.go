// Package postgres is the PostgreSQL storage backend (pgx connection pool,
// rows loaded with COPY).
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"sheetintake/internal/probe"
	"sheetintake/internal/storage"
)

// Types maps declared types to Postgres column types.
var Types = storage.TypeMap{
	probe.TypeText:    "text",
	probe.TypeNumeric: "double precision",
	probe.TypeDate:    "date",
	probe.TypeBool:    "boolean",
}

// pool is the subset of *pgxpool.Pool the repo needs; tests fake it.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
	Close()
}

// Repo implements storage.Repository for Postgres.
type Repo struct {
	pool pool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a pgx pool for cfg.DSN and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	p, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return &Repo{pool: p}, nil
}

func (r *Repo) Kind() string { return "postgres" }

// Close closes the connection pool.
func (r *Repo) Close() { r.pool.Close() }

// EnsureTable creates the table (and its schema, for qualified names) if
// missing.
func (r *Repo) EnsureTable(ctx context.Context, t storage.TableSpec) error {
	schemaSQL, tableSQL, err := buildCreateSQL(t)
	if err != nil {
		return err
	}
	if schemaSQL != "" {
		if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema for %s: %w", t.Name, err)
		}
	}
	if _, err := r.pool.Exec(ctx, tableSQL); err != nil {
		return fmt.Errorf("create table %s: %w", t.Name, err)
	}
	return nil
}

// InsertRows streams rows with the COPY protocol; no parameter limit applies.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	return r.pool.CopyFrom(ctx, tableIdent(table), columns, pgx.CopyFromRows(rows))
}

// tableIdent splits "schema.table" into a pgx identifier.
func tableIdent(name string) pgx.Identifier {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgx.Identifier{table}
	}
	return pgx.Identifier{schema, table}
}

func splitQualifiedName(name string) (schema, table string) {
	name = strings.TrimSpace(name)
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// buildCreateSQL returns the DDL for t. schemaSQL is empty unless the table
// name is schema-qualified.
func buildCreateSQL(t storage.TableSpec) (schemaSQL, tableSQL string, err error) {
	if err := t.Validate(); err != nil {
		return "", "", err
	}
	if schema, _ := splitQualifiedName(t.Name); schema != "" {
		schemaSQL = "CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{schema}.Sanitize() + ";"
	}

	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		def := pgx.Identifier{c.Name}.Sanitize() + " " + Types.SQLType(c.Type)
		if !c.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	tableSQL = fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		tableIdent(t.Name).Sanitize(), strings.Join(defs, ",\n  "))
	return schemaSQL, tableSQL, nil
}
