package collector

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbari/pg-exporter/internal/store"
)

func TestVersionCollector_Describe(t *testing.T) {
	c := newVersionCollector()
	assert.Equal(t, "version", c.Name())
	assert.True(t, c.EnabledByDefault())

	ch := make(chan *prometheus.Desc, 5)
	c.Describe(ch)
	close(ch)
	assert.Len(t, ch, 2)
}

func TestVersionCollector_Update(t *testing.T) {
	db := store.NewTest(t)
	defer db.Close()

	c := newVersionCollector()
	ch := make(chan prometheus.Metric)

	go func() {
		err := c.Update(context.Background(), CollectConfig{DB: db}, ch)
		require.NoError(t, err)
		close(ch)
	}()

	count := 0
	for range ch {
		count++
	}
	assert.Equal(t, 2, count)
}
