package collector

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbari/pg-exporter/internal/store"
)

func TestArchiverCollector_Describe(t *testing.T) {
	c := newArchiverCollector()
	assert.Equal(t, "archiver", c.Name())
	assert.True(t, c.EnabledByDefault())

	ch := make(chan *prometheus.Desc, 10)
	c.Describe(ch)
	close(ch)
	assert.Len(t, ch, 3)
}

func TestArchiverCollector_Update(t *testing.T) {
	db := store.NewTest(t)
	defer db.Close()

	c := newArchiverCollector()
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
	assert.Equal(t, 3, count)
}
