package collector

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbari/pg-exporter/internal/store"
)

func TestIndexesCollector_Describe(t *testing.T) {
	c := newIndexesCollector()
	assert.Equal(t, "indexes", c.Name())
	assert.False(t, c.EnabledByDefault())

	ch := make(chan *prometheus.Desc, 10)
	c.Describe(ch)
	close(ch)
	assert.Len(t, ch, 7)
}

func TestIndexesCollector_Update(t *testing.T) {
	db := store.NewTest(t)
	defer db.Close()

	pools, err := store.NewPoolManager(store.TestPostgresConnStr)
	require.NoError(t, err)
	defer pools.Close()

	c := newIndexesCollector()
	ch := make(chan prometheus.Metric)

	cfg := CollectConfig{DB: db, Pools: pools, Excluded: excludedDatabasesForTest()}

	go func() {
		err := c.Update(context.Background(), cfg, ch)
		require.NoError(t, err)
		close(ch)
	}()

	for range ch {
	}
}
