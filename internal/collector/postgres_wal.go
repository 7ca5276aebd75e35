package collector

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	walQueryPre10 = "SELECT pg_is_in_recovery()::int AS recovery, " +
		"(CASE pg_is_in_recovery() WHEN true THEN pg_last_xlog_receive_location() ELSE pg_current_xlog_location() END) - '0/0' AS wal_bytes"

	walQueryLatest = "SELECT pg_is_in_recovery()::int AS recovery, " +
		"(CASE pg_is_in_recovery() WHEN true THEN pg_last_wal_receive_lsn() ELSE pg_current_wal_lsn() END) - '0/0' AS wal_bytes"
)

// walCollector is one of the fixed-row collectors: recovery state
// plus the current (or received, on a replica) WAL position in bytes.
type walCollector struct {
	recovery typedDesc
	written  typedDesc
}

func newWalCollector() Collector {
	return &walCollector{
		recovery: newDesc("pg_recovery_info", "Whether the server is currently in recovery (1) or not (0).", prometheus.GaugeValue),
		written:  newDesc("pg_wal_written_bytes_total", "Total amount of WAL written, or received in case of a replica, in bytes.", prometheus.CounterValue),
	}
}

func (c *walCollector) Name() string { return "wal" }
func (c *walCollector) EnabledByDefault() bool { return true }

func (c *walCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.recovery.desc
	ch <- c.written.desc
}

func (c *walCollector) Update(ctx context.Context, cfg CollectConfig, ch chan<- prometheus.Metric) error {
	var recovery int
	var walBytes float64

	query := walQueryLatest
	if cfg.ServerVersionNum != 0 && cfg.ServerVersionNum < PostgresV10 {
		query = walQueryPre10
	}

	if err := cfg.DB.QueryRow(ctx, query, nil, &recovery, &walBytes); err != nil {
		return err
	}

	ch <- c.recovery.mustNewConstMetric(float64(recovery))
	ch <- c.written.mustNewConstMetric(walBytes)

	return nil
}
