// Package store wraps pgx connections and pools and shapes query results
// into model.PGResult, the row format every collector parses.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/nbari/pg-exporter/internal/log"
	"github.com/nbari/pg-exporter/internal/model"
)

// DB wraps a pooled connection to a single database and exposes the
// query-to-PGResult shaping every collector relies on.
type DB struct {
	pool *pgxpool.Pool
}

// New opens a pooled connection using the given DSN, appropriate for the
// exporter's default (DSN-named) database. Connections default to a small
// pool since the exporter only ever needs a handful of concurrent queries
// per scrape.
func New(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	cfg.ConnConfig.PreferSimpleProtocol = true

	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	return &DB{pool: pool}, nil
}

// newFromConfig builds a DB from an already-parsed pool config, used by the
// Pool Manager to create per-database pools that share the base connection
// options but target a different database name.
func newFromConfig(ctx context.Context, cfg *pgxpool.Config) (*DB, error) {
	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Pool exposes the underlying pgxpool.Pool for callers that need direct
// access.
func (db *DB) Pool() *pgxpool.Pool { return db.pool }

// Ping issues a trivial round trip to confirm reachability.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (db *DB) Close() {
	db.pool.Close()
}

// Query executes query and shapes the result into a PGResult.
func (db *DB) Query(ctx context.Context, query string, args ...interface{}) (*model.PGResult, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows)
}

// QueryRow executes query expected to return a single row and scans it
// directly into dest, bypassing PGResult - used for scalar probes.
func (db *DB) QueryRow(ctx context.Context, query string, args []interface{}, dest ...interface{}) error {
	return db.pool.QueryRow(ctx, query, args...).Scan(dest...)
}

// IsExtensionAvailable reports whether the named extension is installed and
// its views are queryable.
func (db *DB) IsExtensionAvailable(ctx context.Context, name string) bool {
	var exists bool
	q := "SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = $1)"
	if err := db.pool.QueryRow(ctx, q, name).Scan(&exists); err != nil {
		log.Warnf("check extension %s failed: %s", name, err)
		return false
	}
	if !exists {
		return false
	}

	if err := db.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM (SELECT 1 FROM %s LIMIT 1) AS s", name)).Scan(new(int)); err != nil {
		log.Debugf("extension %s present but not queryable: %s", name, err)
		return false
	}
	return true
}

func scanRows(rows pgx.Rows) (*model.PGResult, error) {
	var (
		colnames = rows.FieldDescriptions()
		ncols    = len(colnames)
		nrows    int
		rowsOut  = make([][]sql.NullString, 0, 10)
	)

	for rows.Next() {
		pointers := make([]interface{}, ncols)
		values := make([]sql.NullString, ncols)
		for i := range pointers {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			log.Warnf("skip row, scan failed: %s", err)
			continue
		}
		rowsOut = append(rowsOut, values)
		nrows++
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &model.PGResult{
		Nrows:    nrows,
		Ncols:    ncols,
		Colnames: colnames,
		Rows:     rowsOut,
	}, nil
}
