package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolManager(t *testing.T) {
	m, err := NewPoolManager(TestPostgresConnStr)
	require.NoError(t, err)
	assert.Equal(t, "postgres", m.DefaultDatabase())

	_, err = NewPoolManager("invalid_dsn")
	assert.Error(t, err)
}

func TestPoolManager_GetOrCreate(t *testing.T) {
	m, err := NewPoolManager(TestPostgresConnStr)
	require.NoError(t, err)
	defer m.Close()

	db, err := m.GetOrCreate(context.Background(), "postgres")
	require.NoError(t, err)
	require.NoError(t, db.Ping(context.Background()))

	// Second call for the same database returns the cached pool.
	again, err := m.GetOrCreate(context.Background(), "postgres")
	require.NoError(t, err)
	assert.Same(t, db, again)
}

func TestPoolManager_CreateFailureDoesNotPoison(t *testing.T) {
	m, err := NewPoolManager(TestPostgresConnStr)
	require.NoError(t, err)
	defer m.Close()

	_, err = m.GetOrCreate(context.Background(), "no_such_database")
	assert.Error(t, err)

	// The failed name is not cached; a later call retries from scratch and
	// other databases remain reachable.
	db, err := m.GetOrCreate(context.Background(), "postgres")
	require.NoError(t, err)
	assert.NoError(t, db.Ping(context.Background()))
}
