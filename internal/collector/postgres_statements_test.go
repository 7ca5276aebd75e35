package collector

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbari/pg-exporter/internal/store"
)

func TestStatementsCollector_Describe(t *testing.T) {
	c := newStatementsCollector()
	assert.Equal(t, "statements", c.Name())
	assert.False(t, c.EnabledByDefault())

	ch := make(chan *prometheus.Desc, 30)
	c.Describe(ch)
	close(ch)
	assert.Len(t, ch, 20)
}

func TestStatementsCollector_Update(t *testing.T) {
	db := store.NewTest(t)
	defer db.Close()

	c := newStatementsCollector()
	ch := make(chan prometheus.Metric)

	cfg := CollectConfig{DB: db, StatementsTopN: 50}

	go func() {
		err := c.Update(context.Background(), cfg, ch)
		require.NoError(t, err)
		close(ch)
	}()

	// pg_stat_statements may not be installed on the test server; if so
	// IsExtensionAvailable gates the query and no metrics are emitted.
	for range ch {
	}
}
