package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/nbari/pg-exporter/internal/log"
)

// perDatabasePoolMaxConns and perDatabasePoolIdleTimeout bound every
// non-default per-database pool created by the PoolManager. Kept small
// deliberately: these pools exist to run a handful of statistics queries per
// scrape, not to serve application traffic.
const (
	perDatabasePoolMinConns    = 0
	perDatabasePoolMaxConns    = 2
	perDatabasePoolIdleTimeout = 60 * time.Second
)

// PoolManager is the process-wide, lazily populated cache of connection
// pools keyed by database name. The pool for the exporter's own DSN database
// is never stored here; callers reuse the shared pool handed to them by the
// Collector Registry for that case.
//
// The map is read far more often than it is written (once per distinct
// database for the life of the process), so writers take an exclusive lock
// while readers only need a read lock.
type PoolManager struct {
	base *pgxpool.Config

	mu    sync.RWMutex
	pools map[string]*DB
}

// NewPoolManager derives a PoolManager from the exporter's DSN. Everything
// except the database name (host, port, credentials, TLS mode) is reused
// when a per-database pool is created.
func NewPoolManager(dsn string) (*PoolManager, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	cfg.ConnConfig.PreferSimpleProtocol = true
	cfg.MinConns = perDatabasePoolMinConns
	cfg.MaxConns = perDatabasePoolMaxConns
	cfg.MaxConnIdleTime = perDatabasePoolIdleTimeout

	return &PoolManager{
		base:  cfg,
		pools: make(map[string]*DB),
	}, nil
}

// DefaultDatabase returns the database name named in the exporter's DSN -
// the one the shared pool already connects to.
func (m *PoolManager) DefaultDatabase() string {
	return m.base.ConnConfig.Database
}

// GetOrCreate returns the pool for datname, creating and caching it on first
// use. A failure to create a pool is returned to the caller and does not
// poison the map: a later scrape may retry and succeed.
func (m *PoolManager) GetOrCreate(ctx context.Context, datname string) (*DB, error) {
	m.mu.RLock()
	db, ok := m.pools[datname]
	m.mu.RUnlock()
	if ok {
		return db, nil
	}

	cfg := m.base.Copy()
	cfg.ConnConfig.Database = datname

	db, err := newFromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool for database %q: %w", datname, err)
	}

	m.mu.Lock()
	if existing, ok := m.pools[datname]; ok {
		m.mu.Unlock()
		db.Close()
		return existing, nil
	}
	m.pools[datname] = db
	m.mu.Unlock()

	log.Debugf("created connection pool for database %q", datname)

	return db, nil
}

// Close releases every cached per-database pool. Used on graceful shutdown.
func (m *PoolManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, db := range m.pools {
		db.Close()
		delete(m.pools, name)
	}
}
