package collector

import (
	"context"
	"strconv"
	"strings"

	"github.com/nbari/pg-exporter/internal/log"
	"github.com/nbari/pg-exporter/internal/store"
)

// ServerInfo holds the handful of server-level facts the collector
// framework needs before it can run its first scrape: the numeric server
// version (for version-gated queries) and whether pg_stat_statements is
// preloaded (reported at startup; the statements collector itself checks
// the extension with IsExtensionAvailable on each scrape).
type ServerInfo struct {
	ServerVersionNum int
	PgStatStatements bool
}

// DetectServerInfo queries the handful of pg_settings rows needed to
// configure the collector set for this server, once at startup before
// the first scrape.
func DetectServerInfo(ctx context.Context, db *store.DB) (ServerInfo, error) {
	var info ServerInfo

	var setting string
	if err := db.QueryRow(ctx, "SELECT setting FROM pg_settings WHERE name = 'server_version_num'", nil, &setting); err != nil {
		return info, err
	}

	version, err := strconv.Atoi(setting)
	if err != nil {
		return info, err
	}
	if version < PostgresVMinNum {
		log.Warnf("Postgres version is older than %s, some collectors may not work correctly", PostgresVMinStr)
	}
	info.ServerVersionNum = version

	if err := db.QueryRow(ctx, "SELECT setting FROM pg_settings WHERE name = 'shared_preload_libraries'", nil, &setting); err != nil {
		return info, err
	}
	info.PgStatStatements = strings.Contains(setting, "pg_stat_statements")
	if !info.PgStatStatements {
		log.Info("pg_stat_statements is not present in shared_preload_libraries, its collector will report no samples")
	}

	return info, nil
}
