package collector

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbari/pg-exporter/internal/store"
)

func TestVacuumProgressCollector_Describe(t *testing.T) {
	c := newVacuumProgressCollector()
	assert.Equal(t, "vacuum_progress", c.Name())
	assert.True(t, c.EnabledByDefault())

	ch := make(chan *prometheus.Desc, 10)
	c.Describe(ch)
	close(ch)
	assert.Len(t, ch, 7)
}

func TestVacuumProgressCollector_Update(t *testing.T) {
	db := store.NewTest(t)
	defer db.Close()

	c := newVacuumProgressCollector()
	ch := make(chan prometheus.Metric)

	cfg := CollectConfig{DB: db, Excluded: excludedDatabasesForTest()}

	go func() {
		err := c.Update(context.Background(), cfg, ch)
		require.NoError(t, err)
		close(ch)
	}()

	// No vacuum is expected to be running against the test server, so zero
	// rows (and zero metrics) is the common case here.
	for range ch {
	}
}
