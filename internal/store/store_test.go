package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	testcases := []struct {
		dsn   string
		valid bool
	}{
		{dsn: TestPostgresConnStr, valid: true},
		{dsn: "invalid_dsn", valid: false},
	}

	for _, tc := range testcases {
		db, err := New(context.Background(), tc.dsn)
		if tc.valid {
			assert.NoError(t, err)
			assert.NotNil(t, db)
			db.Close()
		} else {
			assert.Error(t, err)
			assert.Nil(t, db)
		}
	}
}

func TestDB_Query(t *testing.T) {
	db := NewTest(t)
	defer db.Close()

	res, err := db.Query(context.Background(), "SELECT i, i+1 AS next FROM generate_series(1,3) AS gs(i)")
	assert.NoError(t, err)
	assert.Equal(t, 3, res.Nrows)
	assert.Equal(t, 2, res.Ncols)
	assert.Equal(t, "1", res.Rows[0][0].String)
	assert.Equal(t, "2", res.Rows[0][1].String)
}

func TestDB_IsExtensionAvailable(t *testing.T) {
	db := NewTest(t)
	defer db.Close()

	assert.False(t, db.IsExtensionAvailable(context.Background(), "no_such_extension"))
}

func TestDB_Ping(t *testing.T) {
	db := NewTest(t)
	defer db.Close()

	assert.NoError(t, db.Ping(context.Background()))
}
