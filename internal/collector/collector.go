package collector

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nbari/pg-exporter/internal/store"
)

// Collector is the capability every metric source in this package
// implements: a stable name, a family declaration, a per-scrape population
// step, and a default-enablement bit. Variants are leaf collectors (most of
// this package) and composite collectors that fan out to sub-collectors
// (the replication composite in replication.go).
type Collector interface {
	// Name returns the collector's stable, lowercase, user-visible name -
	// also its CLI toggle flag.
	Name() string
	// EnabledByDefault reports whether this collector runs without the
	// operator explicitly opting in.
	EnabledByDefault() bool
	// Describe sends every metric descriptor this collector owns. The
	// Collector Registry's own Describe forwards it when the registry is
	// registered at startup, which detects metric-family conflicts.
	Describe(ch chan<- *prometheus.Desc)
	// Update executes the collector's queries and sends the resulting
	// samples to ch. A returned error is scrape-local: it is recorded by
	// the scrape self-monitor and does not abort sibling collectors.
	Update(ctx context.Context, cfg CollectConfig, ch chan<- prometheus.Metric) error
}

// CollectConfig carries everything a Collector's Update needs from the
// process for a single scrape: the shared default-database connection, the
// cross-database Pool Manager, the excluded-database set, and a handful of
// collector-specific tunables.
type CollectConfig struct {
	// DB is the shared pool for the exporter's own DSN database.
	DB *store.DB
	// Pools is the cross-database Pool Manager; nil for collectors that
	// never fan out across databases.
	Pools *store.PoolManager
	// Excluded is the process-wide excluded-database set.
	Excluded *store.ExcludedDatabases
	// ServerVersionNum is Postgres' server_version_num (e.g. 150003),
	// used to pick between version-gated queries.
	ServerVersionNum int
	// StatementsTopN bounds the pg_stat_statements collector's cardinality.
	StatementsTopN int
}

// Factory constructs a new, ready-to-register Collector instance.
type Factory func() Collector

// Factories maps every collector's stable name to its constructor. The
// Collector Registry consults this table when building the set of enabled
// collectors from the process configuration.
type Factories map[string]Factory

// NewFactories returns the factory table for every collector this binary
// knows about, from the heavyweight fan-out collectors down to the
// fixed-row ones a fresh server reports on its very first scrape.
func NewFactories() Factories {
	return Factories{
		"connections":     func() Collector { return newConnectionsCollector() },
		"long_running":    func() Collector { return newLongRunningCollector() },
		"locks":           func() Collector { return newLocksCollector() },
		"locks_database":  func() Collector { return newLocksDatabaseCollector() },
		"replication":     func() Collector { return newReplicationCollector() },
		"tables":          func() Collector { return newTablesCollector() },
		"statements":      func() Collector { return newStatementsCollector() },
		"database":        func() Collector { return newDatabaseCollector() },
		"indexes":         func() Collector { return newIndexesCollector() },
		"vacuum_progress": func() Collector { return newVacuumProgressCollector() },
		"archiver":        func() Collector { return newArchiverCollector() },
		"bgwriter":        func() Collector { return newBgwriterCollector() },
		"wal":             func() Collector { return newWalCollector() },
		"postmaster":      func() Collector { return newPostmasterCollector() },
		"settings":        func() Collector { return newSettingsCollector() },
		"version":         func() Collector { return newVersionCollector() },
	}
}

// Names returns every known collector name, used for --help text and
// startup logging. The order is that of map iteration and is not stable;
// callers that need a fixed order sort the result.
func (f Factories) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	return names
}

// DefaultEnabled returns the names of every collector whose
// EnabledByDefault() is true, by instantiating each once.
func (f Factories) DefaultEnabled() []string {
	var names []string
	for name, factory := range f {
		if factory().EnabledByDefault() {
			names = append(names, name)
		}
	}
	return names
}
