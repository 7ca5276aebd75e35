package collector

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// vacuumProgressQuery excludes databases the same way every other
// cross-database view in this package does; rows with no matching
// pg_database entry (shouldn't normally happen) are kept rather than
// silently dropped.
const vacuumProgressQuery = `
SELECT
    coalesce(d.datname, '') AS datname,
    p.relid::regclass::text AS relname,
    p.phase,
    coalesce(p.heap_blks_total, 0) AS heap_blks_total,
    coalesce(p.heap_blks_scanned, 0) AS heap_blks_scanned,
    coalesce(p.heap_blks_vacuumed, 0) AS heap_blks_vacuumed,
    coalesce(p.index_vacuum_count, 0) AS index_vacuum_count,
    coalesce(p.max_dead_tuples, 0) AS max_dead_tuples,
    coalesce(p.num_dead_tuples, 0) AS num_dead_tuples
FROM pg_stat_progress_vacuum p
LEFT JOIN pg_database d ON d.oid = p.datid
WHERE d.datname IS NULL OR NOT (coalesce(d.datname, '') = ANY($1))`

// vacuumProgressCollector is a reset-per-scrape collector: a row exists
// only while its vacuum is running, so Update emits metrics
// only for the currently active set, and a table with no row this scrape
// genuinely has no vacuum in progress.
type vacuumProgressCollector struct {
	heapTotal        typedDesc
	heapScanned      typedDesc
	heapVacuumed     typedDesc
	indexVacuumCount typedDesc
	maxDeadTuples    typedDesc
	numDeadTuples    typedDesc
	progressRatio    typedDesc
}

func newVacuumProgressCollector() Collector {
	labels := []string{"datname", "relname", "phase"}
	return &vacuumProgressCollector{
		heapTotal:        newDesc("pg_stat_progress_vacuum_heap_blks_total", "Total number of heap blocks in the table being vacuumed.", prometheus.GaugeValue, labels...),
		heapScanned:      newDesc("pg_stat_progress_vacuum_heap_blks_scanned", "Number of heap blocks scanned so far.", prometheus.GaugeValue, labels...),
		heapVacuumed:     newDesc("pg_stat_progress_vacuum_heap_blks_vacuumed", "Number of heap blocks vacuumed so far.", prometheus.GaugeValue, labels...),
		indexVacuumCount: newDesc("pg_stat_progress_vacuum_index_vacuum_count", "Number of completed index vacuum cycles.", prometheus.GaugeValue, labels...),
		maxDeadTuples:    newDesc("pg_stat_progress_vacuum_max_dead_tuples", "Number of dead tuples the current maintenance_work_mem can hold.", prometheus.GaugeValue, labels...),
		numDeadTuples:    newDesc("pg_stat_progress_vacuum_num_dead_tuples", "Number of dead tuples collected since the last index vacuum cycle.", prometheus.GaugeValue, labels...),
		progressRatio:    newDesc("pg_stat_progress_vacuum_heap_progress_ratio", "heap_blks_scanned / heap_blks_total; 0 when heap_blks_total is 0.", prometheus.GaugeValue, labels...),
	}
}

func (c *vacuumProgressCollector) Name() string { return "vacuum_progress" }
func (c *vacuumProgressCollector) EnabledByDefault() bool { return true }

func (c *vacuumProgressCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.heapTotal.desc
	ch <- c.heapScanned.desc
	ch <- c.heapVacuumed.desc
	ch <- c.indexVacuumCount.desc
	ch <- c.maxDeadTuples.desc
	ch <- c.numDeadTuples.desc
	ch <- c.progressRatio.desc
}

func (c *vacuumProgressCollector) Update(ctx context.Context, cfg CollectConfig, ch chan<- prometheus.Metric) error {
	res, err := cfg.DB.Query(ctx, vacuumProgressQuery, cfg.Excluded.List())
	if err != nil {
		return err
	}

	idx := colIndex(res)
	for _, row := range res.Rows {
		datname := row[idx["datname"]].String
		relname := row[idx["relname"]].String
		phase := row[idx["phase"]].String

		heapTotal := parseFloatOrZero(row[idx["heap_blks_total"]].String)
		heapScanned := parseFloatOrZero(row[idx["heap_blks_scanned"]].String)

		ch <- c.heapTotal.mustNewConstMetric(heapTotal, datname, relname, phase)
		ch <- c.heapScanned.mustNewConstMetric(heapScanned, datname, relname, phase)
		ch <- c.heapVacuumed.mustNewConstMetric(parseFloatOrZero(row[idx["heap_blks_vacuumed"]].String), datname, relname, phase)
		ch <- c.indexVacuumCount.mustNewConstMetric(parseFloatOrZero(row[idx["index_vacuum_count"]].String), datname, relname, phase)
		ch <- c.maxDeadTuples.mustNewConstMetric(parseFloatOrZero(row[idx["max_dead_tuples"]].String), datname, relname, phase)
		ch <- c.numDeadTuples.mustNewConstMetric(parseFloatOrZero(row[idx["num_dead_tuples"]].String), datname, relname, phase)

		ratio := 0.0
		if heapTotal > 0 {
			ratio = heapScanned / heapTotal
		}
		ch <- c.progressRatio.mustNewConstMetric(ratio, datname, relname, phase)
	}

	return nil
}
