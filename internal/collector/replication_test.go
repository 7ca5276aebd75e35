package collector

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbari/pg-exporter/internal/store"
)

func TestReplicationCollector_Describe(t *testing.T) {
	c := newReplicationCollector()
	assert.Equal(t, "replication", c.Name())
	assert.True(t, c.EnabledByDefault())

	ch := make(chan *prometheus.Desc, 10)
	c.Describe(ch)
	close(ch)
	assert.Len(t, ch, 9)
}

func TestReplicationCollector_Update(t *testing.T) {
	db := store.NewTest(t)
	defer db.Close()

	c := newReplicationCollector()
	ch := make(chan prometheus.Metric)

	cfg := CollectConfig{DB: db, Excluded: excludedDatabasesForTest()}

	go func() {
		// Update never returns an error of its own: sub-query failures are
		// logged and skipped so one missing view doesn't blank the others.
		err := c.Update(context.Background(), cfg, ch)
		require.NoError(t, err)
		close(ch)
	}()

	// A standalone test server reports isReplica/lagSeconds/replayAge at
	// minimum, even with no replicas or slots configured.
	count := 0
	for range ch {
		count++
	}
	assert.GreaterOrEqual(t, count, 3)
}
