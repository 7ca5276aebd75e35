package collector

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbari/pg-exporter/internal/store"
)

func newTestRegistry(t *testing.T, enabled []string) *Registry {
	t.Helper()

	db := store.NewTest(t)
	t.Cleanup(db.Close)

	cfg := CollectConfig{DB: db, Excluded: excludedDatabasesForTest()}

	reg, err := NewRegistry(enabled, NewFactories(), cfg, BuildInfo{
		Version: "1.2.3", Commit: "abcdef0123456789", Arch: "amd64",
	})
	require.NoError(t, err)

	return reg
}

func TestNewRegistry_SkipsUnknownNames(t *testing.T) {
	reg := newTestRegistry(t, []string{"connections", "version", "no_such_collector"})

	names := reg.EnabledNames()
	assert.Len(t, names, 2)
	assert.Contains(t, names, "connections")
	assert.Contains(t, names, "version")
}

func TestNewRegistry_FamilyConflictIsFatal(t *testing.T) {
	db := store.NewTest(t)
	t.Cleanup(db.Close)

	cfg := CollectConfig{DB: db, Excluded: excludedDatabasesForTest()}

	// Listing the same collector twice makes the second instance redeclare
	// every family the first one owns.
	_, err := NewRegistry([]string{"version", "version"}, NewFactories(), cfg, BuildInfo{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_Gather(t *testing.T) {
	reg := newTestRegistry(t, []string{"connections", "version"})

	payload, err := reg.Gather(context.Background())
	require.NoError(t, err)

	body := string(payload)
	assert.Contains(t, body, "pg_up 1")
	assert.Contains(t, body, `pg_exporter_build_info{arch="amd64",commit="abcdef0123456789",version="1.2.3"} 1`)
	assert.Contains(t, body, "pg_server_version_num")
	assert.Contains(t, body, "pg_exporter_scrapes_total")
}

// Two consecutive scrapes on an idle server must expose the same family
// set; the cardinality gauge reflects the previous pass once one completed.
func TestRegistry_GatherTwice(t *testing.T) {
	reg := newTestRegistry(t, []string{"version"})

	first, err := reg.Gather(context.Background())
	require.NoError(t, err)
	second, err := reg.Gather(context.Background())
	require.NoError(t, err)

	assert.Contains(t, string(first), "pg_up 1")
	assert.Contains(t, string(second), "pg_up 1")
	assert.NotContains(t, string(second), "pg_exporter_metrics_total 0\n")
}

func TestRegistry_SelfMonitorAccessor(t *testing.T) {
	reg := newTestRegistry(t, []string{"version"})

	// Of every collector-shaped type in this package, only the Registry
	// answers to the self-monitor accessor.
	var iface interface{} = reg
	provider, ok := iface.(SelfMonitorProvider)
	require.True(t, ok)
	assert.NotNil(t, provider.SelfMonitor())

	var c interface{} = newVersionCollector()
	_, ok = c.(SelfMonitorProvider)
	assert.False(t, ok)
}

func TestRegistry_ExcludedDatabasesNeverLabeled(t *testing.T) {
	db := store.NewTest(t)
	t.Cleanup(db.Close)

	cfg := CollectConfig{DB: db, Excluded: store.NewExcludedDatabases([]string{"postgres"})}
	reg, err := NewRegistry([]string{"connections", "database"}, NewFactories(), cfg, BuildInfo{})
	require.NoError(t, err)

	payload, err := reg.Gather(context.Background())
	require.NoError(t, err)

	for _, line := range strings.Split(string(payload), "\n") {
		assert.NotContains(t, line, `datname="postgres"`)
	}
}
