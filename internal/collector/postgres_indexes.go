package collector

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nbari/pg-exporter/internal/log"
)

const indexesDatabasesQuery = `
SELECT datname
FROM pg_database
WHERE datallowconn AND NOT datistemplate AND NOT (coalesce(datname, '') = ANY($1))`

// indexesQuery excludes indexes held under AccessExclusiveLock (e.g. mid
// REINDEX CONCURRENTLY), whose stat rows may be inconsistent.
const indexesQuery = `
SELECT
    schemaname, relname, indexrelname,
    (i.indisprimary OR i.indisunique) AS key,
    idx_scan, idx_tup_read, idx_tup_fetch,
    idx_blks_read, idx_blks_hit,
    pg_relation_size(s1.indexrelid) AS size_bytes
FROM pg_stat_user_indexes s1
JOIN pg_statio_user_indexes s2 USING (schemaname, relname, indexrelname)
JOIN pg_index i ON s1.indexrelid = i.indexrelid
WHERE NOT EXISTS (
    SELECT 1 FROM pg_locks
    WHERE relation = s1.indexrelid AND mode = 'AccessExclusiveLock' AND granted
)`

// unusedIndexSizeThresholdBytes is the size above which a never-scanned,
// non-key index is reported as unused; small indexes are cheap enough to
// ignore.
const unusedIndexSizeThresholdBytes = 5 * 1024 * 1024

// indexesCollector is the per-user-index cross-database collector.
type indexesCollector struct {
	scans     typedDesc
	tupRead   typedDesc
	tupFetch  typedDesc
	blksRead  typedDesc
	blksHit   typedDesc
	sizeBytes typedDesc
	unused    typedDesc
}

func newIndexesCollector() Collector {
	labels := []string{"datname", "schemaname", "relname", "indexrelname", "key"}
	return &indexesCollector{
		scans:     newDesc("pg_stat_user_indexes_idx_scan_total", "Number of index scans initiated on this index.", prometheus.CounterValue, labels...),
		tupRead:   newDesc("pg_stat_user_indexes_idx_tup_read_total", "Number of index entries returned by scans on this index.", prometheus.CounterValue, labels...),
		tupFetch:  newDesc("pg_stat_user_indexes_idx_tup_fetch_total", "Number of live table rows fetched by simple index scans.", prometheus.CounterValue, labels...),
		blksRead:  newDesc("pg_stat_user_indexes_idx_blks_read_total", "Number of disk blocks read from this index.", prometheus.CounterValue, labels...),
		blksHit:   newDesc("pg_stat_user_indexes_idx_blks_hit_total", "Number of buffer hits on this index.", prometheus.CounterValue, labels...),
		sizeBytes: newDesc("pg_stat_user_indexes_size_bytes", "On-disk size of the index, in bytes.", prometheus.GaugeValue, labels...),
		unused:    newDesc("pg_stat_user_indexes_unused", "1 if this non-key index has never been scanned and exceeds the size threshold, else 0.", prometheus.GaugeValue, labels...),
	}
}

func (c *indexesCollector) Name() string { return "indexes" }
func (c *indexesCollector) EnabledByDefault() bool { return false }

func (c *indexesCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.scans.desc
	ch <- c.tupRead.desc
	ch <- c.tupFetch.desc
	ch <- c.blksRead.desc
	ch <- c.blksHit.desc
	ch <- c.sizeBytes.desc
	ch <- c.unused.desc
}

func (c *indexesCollector) Update(ctx context.Context, cfg CollectConfig, ch chan<- prometheus.Metric) error {
	excluded := cfg.Excluded.WithTemplates()

	res, err := cfg.DB.Query(ctx, indexesDatabasesQuery, excluded)
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

func (c *indexesCollector) collectDatabase(ctx context.Context, cfg CollectConfig, datname string, ch chan<- prometheus.Metric) {
	db := cfg.DB
	if cfg.Pools != nil && datname != cfg.Pools.DefaultDatabase() {
		var err error
		db, err = cfg.Pools.GetOrCreate(ctx, datname)
		if err != nil {
			log.Warnf("indexes collector: get pool for database %q failed: %s", datname, err)
			return
		}
	}

	res, err := db.Query(ctx, indexesQuery)
	if err != nil {
		log.Warnf("indexes collector: query database %q failed: %s", datname, err)
		return
	}

	idx := colIndex(res)
	for _, row := range res.Rows {
		schemaname := row[idx["schemaname"]].String
		relname := row[idx["relname"]].String
		indexrelname := row[idx["indexrelname"]].String
		key := row[idx["key"]].String

		scans := parseFloatOrZero(row[idx["idx_scan"]].String)
		sizeBytes := parseFloatOrZero(row[idx["size_bytes"]].String)

		ch <- c.scans.mustNewConstMetric(scans, datname, schemaname, relname, indexrelname, key)
		ch <- c.tupRead.mustNewConstMetric(parseFloatOrZero(row[idx["idx_tup_read"]].String), datname, schemaname, relname, indexrelname, key)
		ch <- c.tupFetch.mustNewConstMetric(parseFloatOrZero(row[idx["idx_tup_fetch"]].String), datname, schemaname, relname, indexrelname, key)
		ch <- c.blksRead.mustNewConstMetric(parseFloatOrZero(row[idx["idx_blks_read"]].String), datname, schemaname, relname, indexrelname, key)
		ch <- c.blksHit.mustNewConstMetric(parseFloatOrZero(row[idx["idx_blks_hit"]].String), datname, schemaname, relname, indexrelname, key)
		ch <- c.sizeBytes.mustNewConstMetric(sizeBytes, datname, schemaname, relname, indexrelname, key)

		unused := 0.0
		if key != "t" && scans == 0 && sizeBytes > unusedIndexSizeThresholdBytes {
			unused = 1
		}
		ch <- c.unused.mustNewConstMetric(unused, datname, schemaname, relname, indexrelname, key)
	}
}
