package collector

// Postgres server_version_num thresholds used to pick between version-gated
// queries across the collector package.
const (
	// PostgresVMinNum is the oldest server_version_num this exporter is
	// tested against; older servers may be missing catalog columns some
	// collectors rely on.
	PostgresVMinNum = 90600
	// PostgresVMinStr is the human-readable form of PostgresVMinNum.
	PostgresVMinStr = "9.6"
	// PostgresV10 is the version_num boundary at which Postgres renamed
	// xlog_* catalog functions/columns to wal_*.
	PostgresV10 = 100000
)
