package collector

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nbari/pg-exporter/internal/log"
)

const tablesDatabasesQuery = `
SELECT datname
FROM pg_database
WHERE datallowconn AND NOT datistemplate AND NOT (coalesce(datname, '') = ANY($1))`

// tablesQuery is executed once per non-excluded database. The two
// threshold-ratio columns are computed in SQL against the server's
// autovacuum settings and emitted as-is, never clamped or rescaled:
// >=1.0 means the maintenance daemon is due or overdue.
const tablesQuery = `
SELECT
    schemaname, relname,
    seq_scan, seq_tup_read,
    idx_scan, idx_tup_fetch,
    n_tup_ins, n_tup_upd, n_tup_del, n_tup_hot_upd,
    n_live_tup, n_dead_tup, n_mod_since_analyze,
    coalesce(extract(epoch FROM last_vacuum), 0) AS last_vacuum,
    coalesce(extract(epoch FROM last_autovacuum), 0) AS last_autovacuum,
    coalesce(extract(epoch FROM last_analyze), 0) AS last_analyze,
    coalesce(extract(epoch FROM last_autoanalyze), 0) AS last_autoanalyze,
    vacuum_count, autovacuum_count, analyze_count, autoanalyze_count,
    pg_relation_size(relid) AS table_size_bytes,
    pg_indexes_size(relid) AS index_size_bytes,
    CASE WHEN n_live_tup <= 0 THEN 0 ELSE
        n_dead_tup / (current_setting('autovacuum_vacuum_threshold')::float8 +
            current_setting('autovacuum_vacuum_scale_factor')::float8 * n_live_tup)
    END AS autovacuum_threshold_ratio,
    CASE WHEN n_live_tup <= 0 THEN 0 ELSE
        n_mod_since_analyze / (current_setting('autovacuum_analyze_threshold')::float8 +
            current_setting('autovacuum_analyze_scale_factor')::float8 * n_live_tup)
    END AS autoanalyze_threshold_ratio
FROM pg_stat_user_tables`

// tablesCollector gathers pg_stat_user_tables for every connectable,
// non-excluded database, fanning out through per-database pools.
type tablesCollector struct {
	seqScan     typedDesc
	seqTupRead  typedDesc
	idxScan     typedDesc
	idxTupFetch typedDesc

	tupIns    typedDesc
	tupUpd    typedDesc
	tupDel    typedDesc
	tupHotUpd typedDesc

	liveTup            typedDesc
	deadTup            typedDesc
	modSinceAnalyze    typedDesc
	lastVacuum         typedDesc
	lastAutovacuum     typedDesc
	lastAnalyze        typedDesc
	lastAutoanalyze    typedDesc
	vacuumCount        typedDesc
	autovacuumCount    typedDesc
	analyzeCount       typedDesc
	autoanalyzeCount   typedDesc
	tableSizeBytes     typedDesc
	indexSizeBytes     typedDesc
	autovacuumRatio    typedDesc
	autoanalyzeRatio   typedDesc
	bloatRatio         typedDesc
	deadTupleSizeBytes typedDesc
}

func newTablesCollector() Collector {
	labels := []string{"datname", "schemaname", "relname"}
	return &tablesCollector{
		seqScan:     newDesc("pg_stat_user_tables_seq_scan_total", "Number of sequential scans initiated on this table.", prometheus.CounterValue, labels...),
		seqTupRead:  newDesc("pg_stat_user_tables_seq_tup_read_total", "Number of live rows fetched by sequential scans.", prometheus.CounterValue, labels...),
		idxScan:     newDesc("pg_stat_user_tables_idx_scan_total", "Number of index scans initiated on this table.", prometheus.CounterValue, labels...),
		idxTupFetch: newDesc("pg_stat_user_tables_idx_tup_fetch_total", "Number of live rows fetched by index scans.", prometheus.CounterValue, labels...),

		tupIns:    newDesc("pg_stat_user_tables_n_tup_ins_total", "Number of rows inserted.", prometheus.CounterValue, labels...),
		tupUpd:    newDesc("pg_stat_user_tables_n_tup_upd_total", "Number of rows updated.", prometheus.CounterValue, labels...),
		tupDel:    newDesc("pg_stat_user_tables_n_tup_del_total", "Number of rows deleted.", prometheus.CounterValue, labels...),
		tupHotUpd: newDesc("pg_stat_user_tables_n_tup_hot_upd_total", "Number of rows HOT-updated.", prometheus.CounterValue, labels...),

		liveTup:            newDesc("pg_stat_user_tables_n_live_tup", "Estimated number of live rows.", prometheus.GaugeValue, labels...),
		deadTup:            newDesc("pg_stat_user_tables_n_dead_tup", "Estimated number of dead rows.", prometheus.GaugeValue, labels...),
		modSinceAnalyze:    newDesc("pg_stat_user_tables_n_mod_since_analyze", "Estimated number of rows modified since the last analyze.", prometheus.GaugeValue, labels...),
		lastVacuum:         newDesc("pg_stat_user_tables_last_vacuum_seconds", "Epoch seconds of the last manual vacuum; 0 means never.", prometheus.GaugeValue, labels...),
		lastAutovacuum:     newDesc("pg_stat_user_tables_last_autovacuum_seconds", "Epoch seconds of the last autovacuum; 0 means never.", prometheus.GaugeValue, labels...),
		lastAnalyze:        newDesc("pg_stat_user_tables_last_analyze_seconds", "Epoch seconds of the last manual analyze; 0 means never.", prometheus.GaugeValue, labels...),
		lastAutoanalyze:    newDesc("pg_stat_user_tables_last_autoanalyze_seconds", "Epoch seconds of the last autoanalyze; 0 means never.", prometheus.GaugeValue, labels...),
		vacuumCount:        newDesc("pg_stat_user_tables_vacuum_count_total", "Number of times this table has been manually vacuumed.", prometheus.CounterValue, labels...),
		autovacuumCount:    newDesc("pg_stat_user_tables_autovacuum_count_total", "Number of times this table has been autovacuumed.", prometheus.CounterValue, labels...),
		analyzeCount:       newDesc("pg_stat_user_tables_analyze_count_total", "Number of times this table has been manually analyzed.", prometheus.CounterValue, labels...),
		autoanalyzeCount:   newDesc("pg_stat_user_tables_autoanalyze_count_total", "Number of times this table has been autoanalyzed.", prometheus.CounterValue, labels...),
		tableSizeBytes:     newDesc("pg_stat_user_tables_table_size_bytes", "On-disk size of the table's heap, in bytes.", prometheus.GaugeValue, labels...),
		indexSizeBytes:     newDesc("pg_stat_user_tables_index_size_bytes", "On-disk size of all indexes on the table, in bytes.", prometheus.GaugeValue, labels...),
		autovacuumRatio:    newDesc("pg_stat_user_tables_autovacuum_threshold_ratio", "Dead tuples over the computed autovacuum trigger threshold; >=1.0 means autovacuum is due.", prometheus.GaugeValue, labels...),
		autoanalyzeRatio:   newDesc("pg_stat_user_tables_autoanalyze_threshold_ratio", "Modified tuples over the computed autoanalyze trigger threshold; >=1.0 means autoanalyze is due.", prometheus.GaugeValue, labels...),
		bloatRatio:         newDesc("pg_stat_user_tables_bloat_ratio", "Dead tuples over total (live+dead) tuples.", prometheus.GaugeValue, labels...),
		deadTupleSizeBytes: newDesc("pg_stat_user_tables_dead_tuple_size_bytes", "Estimated bytes occupied by dead tuples (table size times bloat ratio).", prometheus.GaugeValue, labels...),
	}
}

func (c *tablesCollector) Name() string { return "tables" }
func (c *tablesCollector) EnabledByDefault() bool { return false }

func (c *tablesCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []typedDesc{
		c.seqScan, c.seqTupRead, c.idxScan, c.idxTupFetch,
		c.tupIns, c.tupUpd, c.tupDel, c.tupHotUpd,
		c.liveTup, c.deadTup, c.modSinceAnalyze,
		c.lastVacuum, c.lastAutovacuum, c.lastAnalyze, c.lastAutoanalyze,
		c.vacuumCount, c.autovacuumCount, c.analyzeCount, c.autoanalyzeCount,
		c.tableSizeBytes, c.indexSizeBytes,
		c.autovacuumRatio, c.autoanalyzeRatio,
		c.bloatRatio, c.deadTupleSizeBytes,
	} {
		ch <- d.desc
	}
}

func (c *tablesCollector) Update(ctx context.Context, cfg CollectConfig, ch chan<- prometheus.Metric) error {
	excluded := cfg.Excluded.WithTemplates()

	res, err := cfg.DB.Query(ctx, tablesDatabasesQuery, excluded)
	if err != nil {
		return err
	}

	idx := colIndex(res)
	databases := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		databases = append(databases, row[idx["datname"]].String)
	}

	var wg sync.WaitGroup
	wg.Add(len(databases))
	for _, datname := range databases {
		go func(datname string) {
			defer wg.Done()
			c.collectDatabase(ctx, cfg, datname, ch)
		}(datname)
	}
	wg.Wait()

	return nil
}

func (c *tablesCollector) collectDatabase(ctx context.Context, cfg CollectConfig, datname string, ch chan<- prometheus.Metric) {
	db := cfg.DB
	if cfg.Pools != nil && datname != cfg.Pools.DefaultDatabase() {
		var err error
		db, err = cfg.Pools.GetOrCreate(ctx, datname)
		if err != nil {
			log.Warnf("tables collector: get pool for database %q failed: %s", datname, err)
			return
		}
	}

	res, err := db.Query(ctx, tablesQuery)
	if err != nil {
		log.Warnf("tables collector: query database %q failed: %s", datname, err)
		return
	}

	idx := colIndex(res)
	for _, row := range res.Rows {
		schemaname := row[idx["schemaname"]].String
		relname := row[idx["relname"]].String

		ch <- c.seqScan.mustNewConstMetric(parseFloatOrZero(row[idx["seq_scan"]].String), datname, schemaname, relname)
		ch <- c.seqTupRead.mustNewConstMetric(parseFloatOrZero(row[idx["seq_tup_read"]].String), datname, schemaname, relname)
		ch <- c.idxScan.mustNewConstMetric(parseFloatOrZero(row[idx["idx_scan"]].String), datname, schemaname, relname)
		ch <- c.idxTupFetch.mustNewConstMetric(parseFloatOrZero(row[idx["idx_tup_fetch"]].String), datname, schemaname, relname)

		ch <- c.tupIns.mustNewConstMetric(parseFloatOrZero(row[idx["n_tup_ins"]].String), datname, schemaname, relname)
		ch <- c.tupUpd.mustNewConstMetric(parseFloatOrZero(row[idx["n_tup_upd"]].String), datname, schemaname, relname)
		ch <- c.tupDel.mustNewConstMetric(parseFloatOrZero(row[idx["n_tup_del"]].String), datname, schemaname, relname)
		ch <- c.tupHotUpd.mustNewConstMetric(parseFloatOrZero(row[idx["n_tup_hot_upd"]].String), datname, schemaname, relname)

		liveTup := parseFloatOrZero(row[idx["n_live_tup"]].String)
		deadTup := parseFloatOrZero(row[idx["n_dead_tup"]].String)
		tableSize := parseFloatOrZero(row[idx["table_size_bytes"]].String)

		ch <- c.liveTup.mustNewConstMetric(liveTup, datname, schemaname, relname)
		ch <- c.deadTup.mustNewConstMetric(deadTup, datname, schemaname, relname)
		ch <- c.modSinceAnalyze.mustNewConstMetric(parseFloatOrZero(row[idx["n_mod_since_analyze"]].String), datname, schemaname, relname)

		ch <- c.lastVacuum.mustNewConstMetric(parseFloatOrZero(row[idx["last_vacuum"]].String), datname, schemaname, relname)
		ch <- c.lastAutovacuum.mustNewConstMetric(parseFloatOrZero(row[idx["last_autovacuum"]].String), datname, schemaname, relname)
		ch <- c.lastAnalyze.mustNewConstMetric(parseFloatOrZero(row[idx["last_analyze"]].String), datname, schemaname, relname)
		ch <- c.lastAutoanalyze.mustNewConstMetric(parseFloatOrZero(row[idx["last_autoanalyze"]].String), datname, schemaname, relname)

		ch <- c.vacuumCount.mustNewConstMetric(parseFloatOrZero(row[idx["vacuum_count"]].String), datname, schemaname, relname)
		ch <- c.autovacuumCount.mustNewConstMetric(parseFloatOrZero(row[idx["autovacuum_count"]].String), datname, schemaname, relname)
		ch <- c.analyzeCount.mustNewConstMetric(parseFloatOrZero(row[idx["analyze_count"]].String), datname, schemaname, relname)
		ch <- c.autoanalyzeCount.mustNewConstMetric(parseFloatOrZero(row[idx["autoanalyze_count"]].String), datname, schemaname, relname)

		ch <- c.tableSizeBytes.mustNewConstMetric(tableSize, datname, schemaname, relname)
		ch <- c.indexSizeBytes.mustNewConstMetric(parseFloatOrZero(row[idx["index_size_bytes"]].String), datname, schemaname, relname)

		ch <- c.autovacuumRatio.mustNewConstMetric(parseFloatOrZero(row[idx["autovacuum_threshold_ratio"]].String), datname, schemaname, relname)
		ch <- c.autoanalyzeRatio.mustNewConstMetric(parseFloatOrZero(row[idx["autoanalyze_threshold_ratio"]].String), datname, schemaname, relname)

		bloatRatio := 0.0
		if liveTup+deadTup > 0 {
			bloatRatio = deadTup / (liveTup + deadTup)
		}
		ch <- c.bloatRatio.mustNewConstMetric(bloatRatio, datname, schemaname, relname)
		ch <- c.deadTupleSizeBytes.mustNewConstMetric(tableSize*bloatRatio, datname, schemaname, relname)
	}
}
