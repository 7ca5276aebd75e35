package collector

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbari/pg-exporter/internal/store"
)

func TestLongRunningCollector_Describe(t *testing.T) {
	c := newLongRunningCollector()
	assert.Equal(t, "long_running", c.Name())
	assert.False(t, c.EnabledByDefault())

	ch := make(chan *prometheus.Desc, 10)
	c.Describe(ch)
	close(ch)
	assert.Len(t, ch, 9)
}

func TestLongRunningCollector_Update(t *testing.T) {
	db := store.NewTest(t)
	defer db.Close()

	c := newLongRunningCollector()
	ch := make(chan prometheus.Metric)

	cfg := CollectConfig{DB: db, Excluded: excludedDatabasesForTest()}

	go func() {
		err := c.Update(context.Background(), cfg, ch)
		require.NoError(t, err)
		close(ch)
	}()

	// No query run by the test suite itself is expected to exceed the
	// 5-minute threshold, so only the two no-label totals (both 0) are
	// guaranteed.
	count := 0
	for range ch {
		count++
	}
	assert.GreaterOrEqual(t, count, 2)
}
