package collector

import (
	"bytes"
	"context"
	"text/template"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultStatementsTopN = 100

// statementsQueryTemplate is the top-N cardinality-governed query:
// query_short is trimmed to a single line and truncated so the
// label value itself can never grow unbounded, and LIMIT bounds the
// number of distinct label tuples emitted per scrape.
const statementsQueryTemplate = `
SELECT
    d.datname AS datname,
    pg_get_userbyid(p.userid) AS usename,
    p.queryid::text AS queryid,
    CASE WHEN length(regexp_replace(p.query, '\s+', ' ', 'g')) > 80
        THEN left(regexp_replace(p.query, '\s+', ' ', 'g'), 77) || '...'
        ELSE regexp_replace(p.query, '\s+', ' ', 'g')
    END AS query_short,
    p.calls, p.rows,
    p.total_exec_time, p.min_exec_time, p.max_exec_time, p.mean_exec_time, p.stddev_exec_time,
    p.blk_read_time, p.blk_write_time,
    coalesce(p.shared_blks_hit, 0) AS shared_blks_hit,
    coalesce(p.shared_blks_read, 0) AS shared_blks_read,
    coalesce(p.shared_blks_dirtied, 0) AS shared_blks_dirtied,
    coalesce(p.shared_blks_written, 0) AS shared_blks_written,
    coalesce(p.local_blks_hit, 0) AS local_blks_hit,
    coalesce(p.local_blks_read, 0) AS local_blks_read,
    coalesce(p.local_blks_dirtied, 0) AS local_blks_dirtied,
    coalesce(p.local_blks_written, 0) AS local_blks_written,
    coalesce(p.temp_blks_read, 0) AS temp_blks_read,
    coalesce(p.temp_blks_written, 0) AS temp_blks_written
FROM pg_stat_statements p
JOIN pg_database d ON d.oid = p.dbid
WHERE p.queryid IS NOT NULL
  AND p.total_exec_time > 0
  AND NOT (coalesce(d.datname, '') = ANY(ARRAY['template0', 'template1']))
ORDER BY p.total_exec_time DESC
LIMIT {{.TopN}}`

// statementsCollector is the pg_stat_statements top-N collector. All
// families it emits are reset-per-scrape: Update never accumulates across calls, so
// the label tuple set exactly tracks the current top-N query set.
type statementsCollector struct {
	calls         typedDesc
	rows          typedDesc
	totalTime     typedDesc
	minTime       typedDesc
	maxTime       typedDesc
	meanTime      typedDesc
	stddevTime    typedDesc
	blkReadTime   typedDesc
	blkWriteTime  typedDesc
	sharedHit     typedDesc
	sharedRead    typedDesc
	sharedDirtied typedDesc
	sharedWritten typedDesc
	localHit      typedDesc
	localRead     typedDesc
	localDirtied  typedDesc
	localWritten  typedDesc
	tempRead      typedDesc
	tempWritten   typedDesc
	cacheHitRatio typedDesc
}

func newStatementsCollector() Collector {
	labels := []string{"datname", "usename", "queryid", "query_short"}
	return &statementsCollector{
		calls:         newDesc("pg_stat_statements_calls_total", "Total number of times the statement was executed.", prometheus.CounterValue, labels...),
		rows:          newDesc("pg_stat_statements_rows_total", "Total number of rows retrieved or affected by the statement.", prometheus.CounterValue, labels...),
		totalTime:     newDesc("pg_stat_statements_total_time_seconds", "Total time spent executing the statement, in seconds.", prometheus.CounterValue, labels...),
		minTime:       newDesc("pg_stat_statements_min_time_seconds", "Minimum time spent executing the statement, in seconds.", prometheus.GaugeValue, labels...),
		maxTime:       newDesc("pg_stat_statements_max_time_seconds", "Maximum time spent executing the statement, in seconds.", prometheus.GaugeValue, labels...),
		meanTime:      newDesc("pg_stat_statements_mean_time_seconds", "Mean time spent executing the statement, in seconds.", prometheus.GaugeValue, labels...),
		stddevTime:    newDesc("pg_stat_statements_stddev_time_seconds", "Population standard deviation of time spent executing the statement, in seconds.", prometheus.GaugeValue, labels...),
		blkReadTime:   newDesc("pg_stat_statements_blk_read_time_seconds", "Total time spent reading data file blocks, in seconds.", prometheus.CounterValue, labels...),
		blkWriteTime:  newDesc("pg_stat_statements_blk_write_time_seconds", "Total time spent writing data file blocks, in seconds.", prometheus.CounterValue, labels...),
		sharedHit:     newDesc("pg_stat_statements_shared_blks_hit_total", "Total number of shared block cache hits by the statement.", prometheus.CounterValue, labels...),
		sharedRead:    newDesc("pg_stat_statements_shared_blks_read_total", "Total number of shared blocks read by the statement.", prometheus.CounterValue, labels...),
		sharedDirtied: newDesc("pg_stat_statements_shared_blks_dirtied_total", "Total number of shared blocks dirtied by the statement.", prometheus.CounterValue, labels...),
		sharedWritten: newDesc("pg_stat_statements_shared_blks_written_total", "Total number of shared blocks written by the statement.", prometheus.CounterValue, labels...),
		localHit:      newDesc("pg_stat_statements_local_blks_hit_total", "Total number of local block cache hits by the statement.", prometheus.CounterValue, labels...),
		localRead:     newDesc("pg_stat_statements_local_blks_read_total", "Total number of local blocks read by the statement.", prometheus.CounterValue, labels...),
		localDirtied:  newDesc("pg_stat_statements_local_blks_dirtied_total", "Total number of local blocks dirtied by the statement.", prometheus.CounterValue, labels...),
		localWritten:  newDesc("pg_stat_statements_local_blks_written_total", "Total number of local blocks written by the statement.", prometheus.CounterValue, labels...),
		tempRead:      newDesc("pg_stat_statements_temp_blks_read_total", "Total number of temp blocks read by the statement.", prometheus.CounterValue, labels...),
		tempWritten:   newDesc("pg_stat_statements_temp_blks_written_total", "Total number of temp blocks written by the statement.", prometheus.CounterValue, labels...),
		cacheHitRatio: newDesc("pg_stat_statements_cache_hit_ratio", "shared_blks_hit / (shared_blks_hit + shared_blks_read); 1.0 when the statement has touched no shared blocks.", prometheus.GaugeValue, labels...),
	}
}

func (c *statementsCollector) Name() string { return "statements" }
func (c *statementsCollector) EnabledByDefault() bool { return false }

func (c *statementsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []typedDesc{
		c.calls, c.rows, c.totalTime, c.minTime, c.maxTime, c.meanTime, c.stddevTime,
		c.blkReadTime, c.blkWriteTime,
		c.sharedHit, c.sharedRead, c.sharedDirtied, c.sharedWritten,
		c.localHit, c.localRead, c.localDirtied, c.localWritten,
		c.tempRead, c.tempWritten, c.cacheHitRatio,
	} {
		ch <- d.desc
	}
}

func (c *statementsCollector) Update(ctx context.Context, cfg CollectConfig, ch chan<- prometheus.Metric) error {
	if !cfg.DB.IsExtensionAvailable(ctx, "pg_stat_statements") {
		return nil
	}

	topN := cfg.StatementsTopN
	if topN <= 0 {
		topN = defaultStatementsTopN
	}

	tmpl, err := template.New("statements").Parse(statementsQueryTemplate)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ TopN int }{TopN: topN}); err != nil {
		return err
	}

	res, err := cfg.DB.Query(ctx, buf.String())
	if err != nil {
		return err
	}

	idx := colIndex(res)
	for _, row := range res.Rows {
		datname := row[idx["datname"]].String
		usename := row[idx["usename"]].String
		queryid := row[idx["queryid"]].String
		queryShort := row[idx["query_short"]].String

		calls := parseFloatOrZero(row[idx["calls"]].String)
		sharedHit := parseFloatOrZero(row[idx["shared_blks_hit"]].String)
		sharedRead := parseFloatOrZero(row[idx["shared_blks_read"]].String)

		ch <- c.calls.mustNewConstMetric(calls, datname, usename, queryid, queryShort)
		ch <- c.rows.mustNewConstMetric(parseFloatOrZero(row[idx["rows"]].String), datname, usename, queryid, queryShort)
		ch <- c.totalTime.mustNewConstMetric(parseFloatOrZero(row[idx["total_exec_time"]].String)/1000, datname, usename, queryid, queryShort)
		ch <- c.minTime.mustNewConstMetric(parseFloatOrZero(row[idx["min_exec_time"]].String)/1000, datname, usename, queryid, queryShort)
		ch <- c.maxTime.mustNewConstMetric(parseFloatOrZero(row[idx["max_exec_time"]].String)/1000, datname, usename, queryid, queryShort)
		ch <- c.meanTime.mustNewConstMetric(parseFloatOrZero(row[idx["mean_exec_time"]].String)/1000, datname, usename, queryid, queryShort)
		ch <- c.stddevTime.mustNewConstMetric(parseFloatOrZero(row[idx["stddev_exec_time"]].String)/1000, datname, usename, queryid, queryShort)
		ch <- c.blkReadTime.mustNewConstMetric(parseFloatOrZero(row[idx["blk_read_time"]].String)/1000, datname, usename, queryid, queryShort)
		ch <- c.blkWriteTime.mustNewConstMetric(parseFloatOrZero(row[idx["blk_write_time"]].String)/1000, datname, usename, queryid, queryShort)

		ch <- c.sharedHit.mustNewConstMetric(sharedHit, datname, usename, queryid, queryShort)
		ch <- c.sharedRead.mustNewConstMetric(sharedRead, datname, usename, queryid, queryShort)
		ch <- c.sharedDirtied.mustNewConstMetric(parseFloatOrZero(row[idx["shared_blks_dirtied"]].String), datname, usename, queryid, queryShort)
		ch <- c.sharedWritten.mustNewConstMetric(parseFloatOrZero(row[idx["shared_blks_written"]].String), datname, usename, queryid, queryShort)
		ch <- c.localHit.mustNewConstMetric(parseFloatOrZero(row[idx["local_blks_hit"]].String), datname, usename, queryid, queryShort)
		ch <- c.localRead.mustNewConstMetric(parseFloatOrZero(row[idx["local_blks_read"]].String), datname, usename, queryid, queryShort)
		ch <- c.localDirtied.mustNewConstMetric(parseFloatOrZero(row[idx["local_blks_dirtied"]].String), datname, usename, queryid, queryShort)
		ch <- c.localWritten.mustNewConstMetric(parseFloatOrZero(row[idx["local_blks_written"]].String), datname, usename, queryid, queryShort)
		ch <- c.tempRead.mustNewConstMetric(parseFloatOrZero(row[idx["temp_blks_read"]].String), datname, usename, queryid, queryShort)
		ch <- c.tempWritten.mustNewConstMetric(parseFloatOrZero(row[idx["temp_blks_written"]].String), datname, usename, queryid, queryShort)

		ratio := 1.0
		if sharedHit+sharedRead > 0 {
			ratio = sharedHit / (sharedHit + sharedRead)
		}
		ch <- c.cacheHitRatio.mustNewConstMetric(ratio, datname, usename, queryid, queryShort)
	}

	return nil
}
