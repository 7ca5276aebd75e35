package collector

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nbari/pg-exporter/internal/log"
)

const replicationReplicaQuery = `
SELECT
    pg_is_in_recovery() AS is_replica,
    CASE WHEN pg_is_in_recovery()
        THEN coalesce(extract(epoch FROM greatest(now() - pg_last_xact_replay_timestamp(), '0 seconds')), 0)
        ELSE 0
    END AS last_replay_age,
    CASE
        WHEN NOT pg_is_in_recovery() THEN 0
        WHEN pg_last_wal_receive_lsn() = pg_last_wal_replay_lsn() THEN 0
        ELSE coalesce(extract(epoch FROM greatest(now() - pg_last_xact_replay_timestamp(), '0 seconds')), 0)
    END AS lag_seconds`

const replicationPrimaryQuery = `
SELECT
    application_name,
    coalesce(client_addr::text, '') AS client_addr,
    state,
    pg_current_wal_lsn() - '0/0' AS current_wal_lsn_bytes,
    pg_wal_lsn_diff(pg_current_wal_lsn(), replay_lsn) AS wal_lsn_diff,
    coalesce(extract(epoch FROM greatest(now() - reply_time, '0 seconds')), 0) AS reply_time
FROM pg_stat_replication`

const replicationSlotsQuery = `
SELECT
    slot_name,
    slot_type,
    coalesce(database, '') AS database,
    active,
    pg_wal_lsn_diff(
        CASE WHEN pg_is_in_recovery() THEN pg_last_wal_receive_lsn() ELSE pg_current_wal_lsn() END,
        restart_lsn
    ) AS wal_lsn_diff
FROM pg_replication_slots`

// replicationCollector is a composite of three sub-collectors sharing one
// Postgres connection: replica-side recovery state, primary-side
// per-replica stats, and replication slot lag. All families driven by
// per-row data are rebuilt every scrape since the set of replicas/slots is
// workload-dependent.
type replicationCollector struct {
	isReplica  typedDesc
	lagSeconds typedDesc
	replayAge  typedDesc

	currentWalLSN typedDesc
	walLSNDiff    typedDesc
	replyTime     typedDesc
	slotsByState  typedDesc

	slotWalLSNDiff typedDesc
	slotActive     typedDesc
}

func newReplicationCollector() Collector {
	return &replicationCollector{
		isReplica:  newDesc("pg_replication_is_replica", "Whether this server is a replica (1) or a primary (0).", prometheus.GaugeValue),
		lagSeconds: newDesc("pg_replication_lag_seconds", "Replication lag in seconds; 0 on a primary or when caught up.", prometheus.GaugeValue),
		replayAge:  newDesc("pg_replication_last_replay_age_seconds", "Seconds since the last transaction was replayed.", prometheus.GaugeValue),

		currentWalLSN: newDesc("pg_current_wal_lsn_bytes", "Current WAL LSN expressed as a byte offset.", prometheus.GaugeValue, "application_name", "client_addr", "state"),
		walLSNDiff:    newDesc("pg_wal_lsn_diff", "Bytes of WAL between the primary's current LSN and the replica's replay LSN.", prometheus.GaugeValue, "application_name", "client_addr", "state"),
		replyTime:     newDesc("pg_stat_replication_reply_time", "Seconds since the replica's last reply.", prometheus.GaugeValue, "application_name", "client_addr", "state"),
		slotsByState:  newDesc("pg_stat_replication_slots", "Number of replicas, per application name and state.", prometheus.GaugeValue, "application_name", "state"),

		slotWalLSNDiff: newDesc("pg_replication_slots_wal_lsn_diff", "Bytes of WAL retained by a replication slot.", prometheus.GaugeValue, "slot_name", "slot_type", "database"),
		slotActive:     newDesc("pg_replication_slots_active", "Whether a replication slot is active (1) or not (0).", prometheus.GaugeValue, "slot_name", "slot_type", "database"),
	}
}

func (c *replicationCollector) Name() string { return "replication" }
func (c *replicationCollector) EnabledByDefault() bool { return true }

func (c *replicationCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.isReplica.desc
	ch <- c.lagSeconds.desc
	ch <- c.replayAge.desc
	ch <- c.currentWalLSN.desc
	ch <- c.walLSNDiff.desc
	ch <- c.replyTime.desc
	ch <- c.slotsByState.desc
	ch <- c.slotWalLSNDiff.desc
	ch <- c.slotActive.desc
}

func (c *replicationCollector) Update(ctx context.Context, cfg CollectConfig, ch chan<- prometheus.Metric) error {
	if err := c.updateReplicaState(ctx, cfg, ch); err != nil {
		log.Warnf("replica state query failed: %s", err)
	}
	if err := c.updatePrimaryState(ctx, cfg, ch); err != nil {
		log.Warnf("primary replication state query failed: %s", err)
	}
	if err := c.updateSlots(ctx, cfg, ch); err != nil {
		log.Warnf("replication slots query failed: %s", err)
	}
	return nil
}

func (c *replicationCollector) updateReplicaState(ctx context.Context, cfg CollectConfig, ch chan<- prometheus.Metric) error {
	var isReplica bool
	var replayAge, lagSeconds float64

	if err := cfg.DB.QueryRow(ctx, replicationReplicaQuery, nil, &isReplica, &replayAge, &lagSeconds); err != nil {
		return err
	}

	isReplicaValue := 0.0
	if isReplica {
		isReplicaValue = 1.0
	}

	ch <- c.isReplica.mustNewConstMetric(isReplicaValue)
	ch <- c.replayAge.mustNewConstMetric(replayAge)
	ch <- c.lagSeconds.mustNewConstMetric(lagSeconds)

	return nil
}

func (c *replicationCollector) updatePrimaryState(ctx context.Context, cfg CollectConfig, ch chan<- prometheus.Metric) error {
	res, err := cfg.DB.Query(ctx, replicationPrimaryQuery)
	if err != nil {
		return err
	}

	idx := colIndex(res)
	slotCounts := make(map[[2]string]float64)

	for _, row := range res.Rows {
		appName := row[idx["application_name"]].String
		clientAddr := row[idx["client_addr"]].String
		state := row[idx["state"]].String

		ch <- c.currentWalLSN.mustNewConstMetric(parseFloatOrZero(row[idx["current_wal_lsn_bytes"]].String), appName, clientAddr, state)
		ch <- c.walLSNDiff.mustNewConstMetric(parseFloatOrZero(row[idx["wal_lsn_diff"]].String), appName, clientAddr, state)
		ch <- c.replyTime.mustNewConstMetric(parseFloatOrZero(row[idx["reply_time"]].String), appName, clientAddr, state)

		slotCounts[[2]string{appName, state}]++
	}

	for key, count := range slotCounts {
		ch <- c.slotsByState.mustNewConstMetric(count, key[0], key[1])
	}

	return nil
}

func (c *replicationCollector) updateSlots(ctx context.Context, cfg CollectConfig, ch chan<- prometheus.Metric) error {
	res, err := cfg.DB.Query(ctx, replicationSlotsQuery)
	if err != nil {
		return err
	}

	idx := colIndex(res)
	for _, row := range res.Rows {
		slotName := row[idx["slot_name"]].String
		slotType := row[idx["slot_type"]].String
		database := row[idx["database"]].String

		ch <- c.slotWalLSNDiff.mustNewConstMetric(parseFloatOrZero(row[idx["wal_lsn_diff"]].String), slotName, slotType, database)

		active := 0.0
		if row[idx["active"]].String == "t" || row[idx["active"]].String == "true" {
			active = 1.0
		}
		ch <- c.slotActive.mustNewConstMetric(active, slotName, slotType, database)
	}

	return nil
}
