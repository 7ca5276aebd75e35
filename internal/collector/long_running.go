package collector

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

const longRunningQuery = `
SELECT
    coalesce(datname, '[unknown]') AS datname,
    state,
    coalesce(wait_event_type, 'None') AS wait_event_type,
    extract(epoch FROM clock_timestamp() - query_start) AS duration
FROM pg_stat_activity
WHERE backend_type = 'client backend' AND pid != pg_backend_pid()
    AND state != 'idle'
    AND query NOT LIKE 'autovacuum:%'
    AND query_start < clock_timestamp() - interval '5 minutes'
    AND NOT (coalesce(datname, '') = ANY($1))`

// longRunningCollector reports long-running queries bucketed by age
// threshold, disabled by default because its cardinality follows workload.
type longRunningCollector struct {
	over5m      typedDesc
	over15m     typedDesc
	over1h      typedDesc
	over6h      typedDesc
	maxDuration typedDesc
	byState     typedDesc
	byWaitEvent typedDesc
	total       typedDesc
	oldestAge   typedDesc
}

func newLongRunningCollector() Collector {
	return &longRunningCollector{
		over5m:      newDesc("pg_stat_activity_queries_over_5m", "Number of queries running longer than 5 minutes, per database.", prometheus.GaugeValue, "datname"),
		over15m:     newDesc("pg_stat_activity_queries_over_15m", "Number of queries running longer than 15 minutes, per database.", prometheus.GaugeValue, "datname"),
		over1h:      newDesc("pg_stat_activity_queries_over_1h", "Number of queries running longer than 1 hour, per database.", prometheus.GaugeValue, "datname"),
		over6h:      newDesc("pg_stat_activity_queries_over_6h", "Number of queries running longer than 6 hours, per database.", prometheus.GaugeValue, "datname"),
		maxDuration: newDesc("pg_stat_activity_max_query_duration_seconds", "Longest-running query duration, per database.", prometheus.GaugeValue, "datname"),
		byState:     newDesc("pg_stat_activity_long_running_by_state", "Number of long-running queries, by database and state.", prometheus.GaugeValue, "datname", "state"),
		byWaitEvent: newDesc("pg_stat_activity_long_running_by_wait_event", "Number of long-running queries waiting on an event, by database and wait event type.", prometheus.GaugeValue, "datname", "wait_event_type"),
		total:       newDesc("pg_stat_activity_total_long_running", "Total number of long-running queries across all databases.", prometheus.GaugeValue),
		oldestAge:   newDesc("pg_stat_activity_oldest_query_age_seconds", "Age of the oldest running query across all databases.", prometheus.GaugeValue),
	}
}

func (c *longRunningCollector) Name() string { return "long_running" }
func (c *longRunningCollector) EnabledByDefault() bool { return false }

func (c *longRunningCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.over5m.desc
	ch <- c.over15m.desc
	ch <- c.over1h.desc
	ch <- c.over6h.desc
	ch <- c.maxDuration.desc
	ch <- c.byState.desc
	ch <- c.byWaitEvent.desc
	ch <- c.total.desc
	ch <- c.oldestAge.desc
}

type longRunningStat struct {
	over5m, over15m, over1h, over6h float64
	maxDuration                     float64
}

func (c *longRunningCollector) Update(ctx context.Context, cfg CollectConfig, ch chan<- prometheus.Metric) error {
	res, err := cfg.DB.Query(ctx, longRunningQuery, cfg.Excluded.WithTemplates())
	if err != nil {
		return err
	}

	idx := colIndex(res)
	perDB := make(map[string]*longRunningStat)
	byState := make(map[[2]string]float64)
	byWaitEvent := make(map[[2]string]float64)
	var total, oldest float64

	for _, row := range res.Rows {
		datname := row[idx["datname"]].String
		state := row[idx["state"]].String
		waitEventType := row[idx["wait_event_type"]].String
		duration := parseFloatOrZero(row[idx["duration"]].String)

		stat, ok := perDB[datname]
		if !ok {
			stat = &longRunningStat{}
			perDB[datname] = stat
		}

		stat.over5m++
		if duration >= 900 {
			stat.over15m++
		}
		if duration >= 3600 {
			stat.over1h++
		}
		if duration >= 21600 {
			stat.over6h++
		}
		if duration > stat.maxDuration {
			stat.maxDuration = duration
		}

		byState[[2]string{datname, state}]++
		if waitEventType != "None" {
			byWaitEvent[[2]string{datname, waitEventType}]++
		}

		total++
		if duration > oldest {
			oldest = duration
		}
	}

	for datname, stat := range perDB {
		ch <- c.over5m.mustNewConstMetric(stat.over5m, datname)
		ch <- c.over15m.mustNewConstMetric(stat.over15m, datname)
		ch <- c.over1h.mustNewConstMetric(stat.over1h, datname)
		ch <- c.over6h.mustNewConstMetric(stat.over6h, datname)
		ch <- c.maxDuration.mustNewConstMetric(stat.maxDuration, datname)
	}
	for key, count := range byState {
		ch <- c.byState.mustNewConstMetric(count, key[0], key[1])
	}
	for key, count := range byWaitEvent {
		ch <- c.byWaitEvent.mustNewConstMetric(count, key[0], key[1])
	}
	ch <- c.total.mustNewConstMetric(total)
	ch <- c.oldestAge.mustNewConstMetric(oldest)

	return nil
}
