package collector

import (
	"database/sql"
	"testing"

	"github.com/jackc/pgproto3/v2"
	"github.com/stretchr/testify/assert"

	"github.com/nbari/pg-exporter/internal/model"
)

func Test_colIndex(t *testing.T) {
	res := &model.PGResult{
		Ncols: 2,
		Colnames: []pgproto3.FieldDescription{
			{Name: []byte("datname")}, {Name: []byte("count")},
		},
	}

	idx := colIndex(res)
	assert.Equal(t, 0, idx["datname"])
	assert.Equal(t, 1, idx["count"])
}

func Test_parseFloatOrZero(t *testing.T) {
	assert.Equal(t, 42.5, parseFloatOrZero("42.5"))
	assert.Equal(t, 0.0, parseFloatOrZero(""))
	assert.Equal(t, 0.0, parseFloatOrZero("not-a-number"))
}

func Test_parseConnectionsByState(t *testing.T) {
	res := &model.PGResult{
		Nrows: 2,
		Ncols: 3,
		Colnames: []pgproto3.FieldDescription{
			{Name: []byte("datname")}, {Name: []byte("state")}, {Name: []byte("count")},
		},
		Rows: [][]sql.NullString{
			{{String: "postgres", Valid: true}, {String: "active", Valid: true}, {String: "2", Valid: true}},
			{{String: "postgres", Valid: true}, {String: "idle", Valid: true}, {String: "5", Valid: true}},
		},
	}

	byState := parseConnectionsByState(res)
	assert.Equal(t, 2.0, byState["postgres"]["active"])
	assert.Equal(t, 5.0, byState["postgres"]["idle"])
}
