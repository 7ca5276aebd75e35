package collector

import "github.com/nbari/pg-exporter/internal/store"

// excludedDatabasesForTest returns an empty exclusion set, the convention
// used across this package's own collector tests when a CollectConfig's
// Excluded field is required but no database needs filtering out.
func excludedDatabasesForTest() *store.ExcludedDatabases {
	return store.NewExcludedDatabases(nil)
}
