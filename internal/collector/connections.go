package collector

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nbari/pg-exporter/internal/model"
)

const connectionsQuery = `
SELECT
    coalesce(datname, '[unknown]') AS datname,
    state,
    count(*) AS count
FROM pg_stat_activity
WHERE backend_type = 'client backend' AND pid != pg_backend_pid()
    AND NOT (coalesce(datname, '') = ANY($1))
GROUP BY 1, 2`

const connectionsWaitingBlockedQuery = `
SELECT
    coalesce(datname, '[unknown]') AS datname,
    count(*) FILTER (WHERE wait_event IS NOT NULL) AS waiting,
    count(*) FILTER (WHERE cardinality(pg_blocking_pids(pid)) > 0) AS blocked
FROM pg_stat_activity
WHERE backend_type = 'client backend' AND pid != pg_backend_pid()
    AND NOT (coalesce(datname, '') = ANY($1))
GROUP BY 1`

// connectionsCollector exposes pg_stat_activity broken down by database
// and backend state, plus derived waiting/blocked counts.
type connectionsCollector struct {
	count   typedDesc
	active  typedDesc
	idle    typedDesc
	waiting typedDesc
	blocked typedDesc
}

func newConnectionsCollector() Collector {
	return &connectionsCollector{
		count:   newDesc("pg_stat_activity_count", "Number of backends in each state, per database.", prometheus.GaugeValue, "datname", "state"),
		active:  newDesc("pg_stat_activity_active_connections", "Number of active backends, per database.", prometheus.GaugeValue, "datname"),
		idle:    newDesc("pg_stat_activity_idle_connections", "Number of idle backends, per database.", prometheus.GaugeValue, "datname"),
		waiting: newDesc("pg_stat_activity_waiting_connections", "Number of backends waiting on an event, per database.", prometheus.GaugeValue, "datname"),
		blocked: newDesc("pg_stat_activity_blocked_connections", "Number of backends blocked by another backend, per database.", prometheus.GaugeValue, "datname"),
	}
}

func (c *connectionsCollector) Name() string { return "connections" }
func (c *connectionsCollector) EnabledByDefault() bool { return true }

func (c *connectionsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.count.desc
	ch <- c.active.desc
	ch <- c.idle.desc
	ch <- c.waiting.desc
	ch <- c.blocked.desc
}

func (c *connectionsCollector) Update(ctx context.Context, cfg CollectConfig, ch chan<- prometheus.Metric) error {
	excluded := cfg.Excluded.WithTemplates()

	res, err := cfg.DB.Query(ctx, connectionsQuery, excluded)
	if err != nil {
		return err
	}

	byState := parseConnectionsByState(res)

	for datname, states := range byState {
		for state, count := range states {
			ch <- c.count.mustNewConstMetric(count, datname, state)
		}
		// active/idle must be emitted as 0 when the database appears but
		// the state is absent.
		if _, ok := states["active"]; !ok {
			ch <- c.active.mustNewConstMetric(0, datname)
		} else {
			ch <- c.active.mustNewConstMetric(states["active"], datname)
		}
		if _, ok := states["idle"]; !ok {
			ch <- c.idle.mustNewConstMetric(0, datname)
		} else {
			ch <- c.idle.mustNewConstMetric(states["idle"], datname)
		}
	}

	res, err = cfg.DB.Query(ctx, connectionsWaitingBlockedQuery, excluded)
	if err != nil {
		return err
	}

	waiting, blocked := parseConnectionsWaitingBlocked(res)
	for datname, v := range waiting {
		ch <- c.waiting.mustNewConstMetric(v, datname)
	}
	for datname, v := range blocked {
		ch <- c.blocked.mustNewConstMetric(v, datname)
	}

	return nil
}

func parseConnectionsByState(r *model.PGResult) map[string]map[string]float64 {
	idx := colIndex(r)
	byState := make(map[string]map[string]float64)

	for _, row := range r.Rows {
		datname := row[idx["datname"]].String
		state := row[idx["state"]].String
		count := parseFloatOrZero(row[idx["count"]].String)

		if _, ok := byState[datname]; !ok {
			byState[datname] = make(map[string]float64)
		}
		byState[datname][state] = count
	}

	return byState
}

func parseConnectionsWaitingBlocked(r *model.PGResult) (waiting, blocked map[string]float64) {
	idx := colIndex(r)
	waiting = make(map[string]float64)
	blocked = make(map[string]float64)

	for _, row := range r.Rows {
		datname := row[idx["datname"]].String
		waiting[datname] = parseFloatOrZero(row[idx["waiting"]].String)
		blocked[datname] = parseFloatOrZero(row[idx["blocked"]].String)
	}

	return waiting, blocked
}
