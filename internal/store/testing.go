package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPostgresConnStr is the DSN used by this package's own tests, the same
// convention as the rest of the collector test suite.
const TestPostgresConnStr = "host=127.0.0.1 dbname=postgres user=postgres sslmode=disable"

// NewTest opens a DB against TestPostgresConnStr or fails the test.
func NewTest(t *testing.T) *DB {
	t.Helper()
	db, err := New(context.Background(), TestPostgresConnStr)
	assert.NoError(t, err)
	assert.NotNil(t, db)
	return db
}
