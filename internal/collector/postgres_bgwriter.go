package collector

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

const bgwriterQuery = `
SELECT
    checkpoints_timed, checkpoints_req,
    checkpoint_write_time, checkpoint_sync_time,
    buffers_checkpoint, buffers_clean, maxwritten_clean,
    buffers_backend, buffers_backend_fsync, buffers_alloc,
    coalesce(extract(epoch FROM age(now(), stats_reset)), 0) AS stats_age_seconds
FROM pg_stat_bgwriter`

// bgwriterCollector is one of the fixed-row collectors: a single row
// from pg_stat_bgwriter mapped straight to counters/gauges.
type bgwriterCollector struct {
	checkpointsTimed   typedDesc
	checkpointsReq     typedDesc
	checkpointWriteMs  typedDesc
	checkpointSyncMs   typedDesc
	buffersCheckpoint  typedDesc
	buffersClean       typedDesc
	maxwrittenClean    typedDesc
	buffersBackend     typedDesc
	buffersBackendSync typedDesc
	buffersAlloc       typedDesc
	statsAge           typedDesc
}

func newBgwriterCollector() Collector {
	return &bgwriterCollector{
		checkpointsTimed:   newDesc("pg_stat_bgwriter_checkpoints_timed_total", "Number of scheduled checkpoints that have been performed.", prometheus.CounterValue),
		checkpointsReq:     newDesc("pg_stat_bgwriter_checkpoints_req_total", "Number of requested checkpoints that have been performed.", prometheus.CounterValue),
		checkpointWriteMs:  newDesc("pg_stat_bgwriter_checkpoint_write_time_seconds_total", "Total time spent writing checkpoint files to disk.", prometheus.CounterValue),
		checkpointSyncMs:   newDesc("pg_stat_bgwriter_checkpoint_sync_time_seconds_total", "Total time spent synchronizing checkpoint files to disk.", prometheus.CounterValue),
		buffersCheckpoint:  newDesc("pg_stat_bgwriter_buffers_checkpoint_total", "Number of buffers written during checkpoints.", prometheus.CounterValue),
		buffersClean:       newDesc("pg_stat_bgwriter_buffers_clean_total", "Number of buffers written by the background writer.", prometheus.CounterValue),
		maxwrittenClean:    newDesc("pg_stat_bgwriter_maxwritten_clean_total", "Number of times the background writer stopped a cleaning scan because it had written too many buffers.", prometheus.CounterValue),
		buffersBackend:     newDesc("pg_stat_bgwriter_buffers_backend_total", "Number of buffers written directly by a backend.", prometheus.CounterValue),
		buffersBackendSync: newDesc("pg_stat_bgwriter_buffers_backend_fsync_total", "Number of times a backend had to execute its own fsync call.", prometheus.CounterValue),
		buffersAlloc:       newDesc("pg_stat_bgwriter_buffers_alloc_total", "Number of buffers allocated.", prometheus.CounterValue),
		statsAge:           newDesc("pg_stat_bgwriter_stats_age_seconds", "Seconds since these statistics were last reset.", prometheus.GaugeValue),
	}
}

func (c *bgwriterCollector) Name() string { return "bgwriter" }
func (c *bgwriterCollector) EnabledByDefault() bool { return true }

func (c *bgwriterCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.checkpointsTimed.desc
	ch <- c.checkpointsReq.desc
	ch <- c.checkpointWriteMs.desc
	ch <- c.checkpointSyncMs.desc
	ch <- c.buffersCheckpoint.desc
	ch <- c.buffersClean.desc
	ch <- c.maxwrittenClean.desc
	ch <- c.buffersBackend.desc
	ch <- c.buffersBackendSync.desc
	ch <- c.buffersAlloc.desc
	ch <- c.statsAge.desc
}

func (c *bgwriterCollector) Update(ctx context.Context, cfg CollectConfig, ch chan<- prometheus.Metric) error {
	var (
		checkpointsTimed, checkpointsReq                 float64
		checkpointWriteMs, checkpointSyncMs              float64
		buffersCheckpoint, buffersClean, maxwrittenClean float64
		buffersBackend, buffersBackendSync, buffersAlloc float64
		statsAge                                         float64
	)

	err := cfg.DB.QueryRow(ctx, bgwriterQuery, nil,
		&checkpointsTimed, &checkpointsReq,
		&checkpointWriteMs, &checkpointSyncMs,
		&buffersCheckpoint, &buffersClean, &maxwrittenClean,
		&buffersBackend, &buffersBackendSync, &buffersAlloc,
		&statsAge,
	)
	if err != nil {
		return err
	}

	ch <- c.checkpointsTimed.mustNewConstMetric(checkpointsTimed)
	ch <- c.checkpointsReq.mustNewConstMetric(checkpointsReq)
	ch <- c.checkpointWriteMs.mustNewConstMetric(checkpointWriteMs / 1000)
	ch <- c.checkpointSyncMs.mustNewConstMetric(checkpointSyncMs / 1000)
	ch <- c.buffersCheckpoint.mustNewConstMetric(buffersCheckpoint)
	ch <- c.buffersClean.mustNewConstMetric(buffersClean)
	ch <- c.maxwrittenClean.mustNewConstMetric(maxwrittenClean)
	ch <- c.buffersBackend.mustNewConstMetric(buffersBackend)
	ch <- c.buffersBackendSync.mustNewConstMetric(buffersBackendSync)
	ch <- c.buffersAlloc.mustNewConstMetric(buffersAlloc)
	ch <- c.statsAge.mustNewConstMetric(statsAge)

	return nil
}
