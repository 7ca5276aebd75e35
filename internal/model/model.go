// Package model defines the data shapes shared between internal/store and
// internal/collector.
package model

import (
	"database/sql"

	"github.com/jackc/pgproto3/v2"
)

// PGResult is the row-oriented result of a single query: the column
// descriptions and the rows, each cell kept as a nullable string so that
// collectors can decide column-by-column how to parse it.
type PGResult struct {
	Nrows    int
	Ncols    int
	Colnames []pgproto3.FieldDescription
	Rows     [][]sql.NullString
}
