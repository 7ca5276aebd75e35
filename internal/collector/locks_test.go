package collector

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbari/pg-exporter/internal/store"
)

func TestLocksCollector_Describe(t *testing.T) {
	c := newLocksCollector()
	assert.Equal(t, "locks", c.Name())
	assert.True(t, c.EnabledByDefault())

	ch := make(chan *prometheus.Desc, 10)
	c.Describe(ch)
	close(ch)
	assert.Len(t, ch, 2)
}

func TestLocksCollector_Update(t *testing.T) {
	db := store.NewTest(t)
	defer db.Close()

	c := newLocksCollector()
	ch := make(chan prometheus.Metric)

	cfg := CollectConfig{DB: db, Excluded: excludedDatabasesForTest()}

	go func() {
		err := c.Update(context.Background(), cfg, ch)
		require.NoError(t, err)
		close(ch)
	}()

	for range ch {
	}
}

func TestLocksDatabaseCollector_Describe(t *testing.T) {
	c := newLocksDatabaseCollector()
	assert.Equal(t, "locks_database", c.Name())
	assert.False(t, c.EnabledByDefault())

	ch := make(chan *prometheus.Desc, 10)
	c.Describe(ch)
	close(ch)
	assert.Len(t, ch, 1)
}

func TestLocksDatabaseCollector_Update(t *testing.T) {
	db := store.NewTest(t)
	defer db.Close()

	c := newLocksDatabaseCollector()
	ch := make(chan prometheus.Metric)

	cfg := CollectConfig{DB: db, Excluded: excludedDatabasesForTest()}

	go func() {
		err := c.Update(context.Background(), cfg, ch)
		require.NoError(t, err)
		close(ch)
	}()

	for range ch {
	}
}
