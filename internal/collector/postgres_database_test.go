package collector

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbari/pg-exporter/internal/store"
)

func TestDatabaseCollector_Describe(t *testing.T) {
	c := newDatabaseCollector()
	assert.Equal(t, "database", c.Name())
	assert.True(t, c.EnabledByDefault())

	ch := make(chan *prometheus.Desc, 20)
	c.Describe(ch)
	close(ch)
	assert.Len(t, ch, 13)
}

func TestDatabaseCollector_Update(t *testing.T) {
	db := store.NewTest(t)
	defer db.Close()

	c := newDatabaseCollector()
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
