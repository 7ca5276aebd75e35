package collector

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

const locksRelationQuery = `
SELECT
    c.relname AS relation,
    count(*) FILTER (WHERE l.granted) AS granted,
    count(*) FILTER (WHERE NOT l.granted) AS waiting
FROM pg_locks l
JOIN pg_class c ON c.oid = l.relation
GROUP BY c.relname`

// locksCollector is the "relational" lock flavor: lock counts joined
// against pg_class, labeled by relation name. Its label set is
// workload-dependent, so the family is rebuilt from scratch every scrape.
type locksCollector struct {
	waiting typedDesc
	granted typedDesc
}

func newLocksCollector() Collector {
	return &locksCollector{
		waiting: newDesc("pg_locks_waiting", "Number of not-yet-granted locks, per relation.", prometheus.GaugeValue, "relation"),
		granted: newDesc("pg_locks_granted", "Number of granted locks, per relation.", prometheus.GaugeValue, "relation"),
	}
}

func (c *locksCollector) Name() string { return "locks" }
func (c *locksCollector) EnabledByDefault() bool { return true }

func (c *locksCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.waiting.desc
	ch <- c.granted.desc
}

func (c *locksCollector) Update(ctx context.Context, cfg CollectConfig, ch chan<- prometheus.Metric) error {
	res, err := cfg.DB.Query(ctx, locksRelationQuery)
	if err != nil {
		return err
	}

	idx := colIndex(res)
	for _, row := range res.Rows {
		relation := row[idx["relation"]].String
		ch <- c.granted.mustNewConstMetric(parseFloatOrZero(row[idx["granted"]].String), relation)
		ch <- c.waiting.mustNewConstMetric(parseFloatOrZero(row[idx["waiting"]].String), relation)
	}

	return nil
}

const locksDatabaseQuery = `
SELECT
    coalesce(d.datname, '[unknown]') AS datname,
    l.mode,
    count(*) AS count
FROM pg_locks l
JOIN pg_database d ON d.oid = l.database
WHERE NOT (coalesce(d.datname, '') = ANY($1))
GROUP BY 1, 2`

// locksDatabaseCollector is the "per-database" lock flavor: counts by
// database and lock mode, reset-per-scrape like its sibling.
type locksDatabaseCollector struct {
	count typedDesc
}

func newLocksDatabaseCollector() Collector {
	return &locksDatabaseCollector{
		count: newDesc("pg_locks_count", "Number of locks, per database and lock mode.", prometheus.GaugeValue, "datname", "mode"),
	}
}

func (c *locksDatabaseCollector) Name() string { return "locks_database" }
func (c *locksDatabaseCollector) EnabledByDefault() bool { return false }

func (c *locksDatabaseCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.count.desc
}

func (c *locksDatabaseCollector) Update(ctx context.Context, cfg CollectConfig, ch chan<- prometheus.Metric) error {
	res, err := cfg.DB.Query(ctx, locksDatabaseQuery, cfg.Excluded.WithTemplates())
	if err != nil {
		return err
	}

	idx := colIndex(res)
	for _, row := range res.Rows {
		datname := row[idx["datname"]].String
		mode := row[idx["mode"]].String
		ch <- c.count.mustNewConstMetric(parseFloatOrZero(row[idx["count"]].String), datname, mode)
	}

	return nil
}
