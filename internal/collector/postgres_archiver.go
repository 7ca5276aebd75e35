package collector

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

const archiverQuery = `
SELECT
    archived_count,
    failed_count,
    coalesce(extract(epoch FROM greatest(now() - last_archived_time, '0 seconds')), 0) AS since_last_archive_seconds
FROM pg_stat_archiver`

// archiverCollector is one of the fixed-row collectors: a single row,
// mapped to gauges/counters with no grouping or fan-out.
type archiverCollector struct {
	archived  typedDesc
	failed    typedDesc
	sinceLast typedDesc
}

func newArchiverCollector() Collector {
	return &archiverCollector{
		archived:  newDesc("pg_stat_archiver_archived_total", "Total number of WAL segments successfully archived.", prometheus.CounterValue),
		failed:    newDesc("pg_stat_archiver_failed_total", "Total number of failed attempts at archiving WAL segments.", prometheus.CounterValue),
		sinceLast: newDesc("pg_stat_archiver_since_last_archive_seconds", "Seconds since the last successful WAL archive.", prometheus.GaugeValue),
	}
}

func (c *archiverCollector) Name() string { return "archiver" }
func (c *archiverCollector) EnabledByDefault() bool { return true }

func (c *archiverCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.archived.desc
	ch <- c.failed.desc
	ch <- c.sinceLast.desc
}

func (c *archiverCollector) Update(ctx context.Context, cfg CollectConfig, ch chan<- prometheus.Metric) error {
	var archived, failed, sinceLast float64

	if err := cfg.DB.QueryRow(ctx, archiverQuery, nil, &archived, &failed, &sinceLast); err != nil {
		return err
	}

	ch <- c.archived.mustNewConstMetric(archived)
	ch <- c.failed.mustNewConstMetric(failed)
	ch <- c.sinceLast.mustNewConstMetric(sinceLast)

	return nil
}
