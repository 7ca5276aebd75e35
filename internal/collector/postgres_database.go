package collector

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

const databaseQuery = `
SELECT
    coalesce(datname, '[unknown]') AS datname,
    xact_commit, xact_rollback,
    blks_read, blks_hit,
    tup_returned, tup_fetched, tup_inserted, tup_updated, tup_deleted,
    conflicts, deadlocks, temp_files, temp_bytes
FROM pg_stat_database
WHERE NOT (coalesce(datname, '') = ANY($1))`

// databaseCollector is a supplemented collector (not named in the
// distilled core, see SPEC_FULL.md): per-database transaction/tuple/
// conflict counters from pg_stat_database.
type databaseCollector struct {
	xactCommit   typedDesc
	xactRollback typedDesc
	blksRead     typedDesc
	blksHit      typedDesc
	tupReturned  typedDesc
	tupFetched   typedDesc
	tupInserted  typedDesc
	tupUpdated   typedDesc
	tupDeleted   typedDesc
	conflicts    typedDesc
	deadlocks    typedDesc
	tempFiles    typedDesc
	tempBytes    typedDesc
}

func newDatabaseCollector() Collector {
	labels := []string{"datname"}
	return &databaseCollector{
		xactCommit:   newDesc("pg_stat_database_xact_commit_total", "Number of transactions committed, per database.", prometheus.CounterValue, labels...),
		xactRollback: newDesc("pg_stat_database_xact_rollback_total", "Number of transactions rolled back, per database.", prometheus.CounterValue, labels...),
		blksRead:     newDesc("pg_stat_database_blks_read_total", "Number of disk blocks read, per database.", prometheus.CounterValue, labels...),
		blksHit:      newDesc("pg_stat_database_blks_hit_total", "Number of buffer hits, per database.", prometheus.CounterValue, labels...),
		tupReturned:  newDesc("pg_stat_database_tup_returned_total", "Number of rows returned by queries, per database.", prometheus.CounterValue, labels...),
		tupFetched:   newDesc("pg_stat_database_tup_fetched_total", "Number of rows fetched by queries, per database.", prometheus.CounterValue, labels...),
		tupInserted:  newDesc("pg_stat_database_tup_inserted_total", "Number of rows inserted, per database.", prometheus.CounterValue, labels...),
		tupUpdated:   newDesc("pg_stat_database_tup_updated_total", "Number of rows updated, per database.", prometheus.CounterValue, labels...),
		tupDeleted:   newDesc("pg_stat_database_tup_deleted_total", "Number of rows deleted, per database.", prometheus.CounterValue, labels...),
		conflicts:    newDesc("pg_stat_database_conflicts_total", "Number of queries canceled due to recovery conflicts, per database.", prometheus.CounterValue, labels...),
		deadlocks:    newDesc("pg_stat_database_deadlocks_total", "Number of deadlocks detected, per database.", prometheus.CounterValue, labels...),
		tempFiles:    newDesc("pg_stat_database_temp_files_total", "Number of temporary files created, per database.", prometheus.CounterValue, labels...),
		tempBytes:    newDesc("pg_stat_database_temp_bytes_total", "Total size of temporary files, per database.", prometheus.CounterValue, labels...),
	}
}

func (c *databaseCollector) Name() string { return "database" }
func (c *databaseCollector) EnabledByDefault() bool { return true }

func (c *databaseCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.xactCommit.desc
	ch <- c.xactRollback.desc
	ch <- c.blksRead.desc
	ch <- c.blksHit.desc
	ch <- c.tupReturned.desc
	ch <- c.tupFetched.desc
	ch <- c.tupInserted.desc
	ch <- c.tupUpdated.desc
	ch <- c.tupDeleted.desc
	ch <- c.conflicts.desc
	ch <- c.deadlocks.desc
	ch <- c.tempFiles.desc
	ch <- c.tempBytes.desc
}

func (c *databaseCollector) Update(ctx context.Context, cfg CollectConfig, ch chan<- prometheus.Metric) error {
	res, err := cfg.DB.Query(ctx, databaseQuery, cfg.Excluded.List())
	if err != nil {
		return err
	}

	idx := colIndex(res)
	for _, row := range res.Rows {
		datname := row[idx["datname"]].String

		ch <- c.xactCommit.mustNewConstMetric(parseFloatOrZero(row[idx["xact_commit"]].String), datname)
		ch <- c.xactRollback.mustNewConstMetric(parseFloatOrZero(row[idx["xact_rollback"]].String), datname)
		ch <- c.blksRead.mustNewConstMetric(parseFloatOrZero(row[idx["blks_read"]].String), datname)
		ch <- c.blksHit.mustNewConstMetric(parseFloatOrZero(row[idx["blks_hit"]].String), datname)
		ch <- c.tupReturned.mustNewConstMetric(parseFloatOrZero(row[idx["tup_returned"]].String), datname)
		ch <- c.tupFetched.mustNewConstMetric(parseFloatOrZero(row[idx["tup_fetched"]].String), datname)
		ch <- c.tupInserted.mustNewConstMetric(parseFloatOrZero(row[idx["tup_inserted"]].String), datname)
		ch <- c.tupUpdated.mustNewConstMetric(parseFloatOrZero(row[idx["tup_updated"]].String), datname)
		ch <- c.tupDeleted.mustNewConstMetric(parseFloatOrZero(row[idx["tup_deleted"]].String), datname)
		ch <- c.conflicts.mustNewConstMetric(parseFloatOrZero(row[idx["conflicts"]].String), datname)
		ch <- c.deadlocks.mustNewConstMetric(parseFloatOrZero(row[idx["deadlocks"]].String), datname)
		ch <- c.tempFiles.mustNewConstMetric(parseFloatOrZero(row[idx["temp_files"]].String), datname)
		ch <- c.tempBytes.mustNewConstMetric(parseFloatOrZero(row[idx["temp_bytes"]].String), datname)
	}

	return nil
}
