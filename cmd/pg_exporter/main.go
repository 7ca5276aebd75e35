// Command pg_exporter is a Prometheus exporter for PostgreSQL: a single
// collector Registry served over a pull-based /metrics and /health
// surface, configured entirely through kingpin flags and their
// environment-variable counterparts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/nbari/pg-exporter/internal/collector"
	"github.com/nbari/pg-exporter/internal/httpserver"
	"github.com/nbari/pg-exporter/internal/log"
	"github.com/nbari/pg-exporter/internal/store"
)

// version, commit and arch are set at build time via -ldflags; they default
// to placeholders for `go build` without them.
var (
	version = "dev"
	commit  = "none"
	arch    = "unknown"
)

// connectTimeout bounds how long startup waits to acquire the first
// connection; exceeding it is startup-fatal.
const connectTimeout = 2 * time.Second

// shutdownTimeout bounds how long graceful shutdown waits for an
// in-flight scrape to finish.
const shutdownTimeout = 5 * time.Second

func main() {
	factories := collector.NewFactories()

	var (
		port = kingpin.Flag("port", "HTTP listen port").
			Short('p').Default("9432").Envar("PG_EXPORTER_PORT").Int()
		dsn = kingpin.Flag("dsn", "PostgreSQL DSN").
			Envar("PG_EXPORTER_DSN").Default("postgresql://postgresd@localhost:5432/postgres").String()
		verbose = kingpin.Flag("verbose", "increase log verbosity (repeatable)").
			Short('v').Counter()
		excludeDatabases = kingpin.Flag("exclude-databases", "comma-separated list of database names to always exclude").
			Envar("PG_EXPORTER_EXCLUDE_DATABASES").Default("").String()
		statementsTopN = kingpin.Flag("statements-top-n", "max number of distinct queries the statements collector reports per scrape").
			Default("100").Int()
	)

	collectorFlags := make(map[string]*bool)
	for _, name := range sortedNames(factories) {
		enabled := factories[name]().EnabledByDefault()
		collectorFlags[name] = kingpin.Flag(
			"collector."+name,
			fmt.Sprintf("enable the %s collector", name),
		).Default(strconv.FormatBool(enabled)).Bool()
	}

	kingpin.Parse()

	log.SetVerbosity(*verbose)

	var enabledNames []string
	for name, flag := range collectorFlags {
		if *flag {
			enabledNames = append(enabledNames, name)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, connectTimeout)
	db, err := store.New(connectCtx, *dsn)
	connectCancel()
	if err != nil {
		log.Errorf("cannot connect to %s: %s", redactDSN(*dsn), err)
		os.Exit(1)
	}
	defer db.Close()

	pools, err := store.NewPoolManager(*dsn)
	if err != nil {
		log.Errorf("cannot parse dsn: %s", err)
		os.Exit(1)
	}
	defer pools.Close()

	info, err := collector.DetectServerInfo(ctx, db)
	if err != nil {
		log.Errorf("cannot determine server info: %s", err)
		os.Exit(1)
	}

	excluded := store.NewExcludedDatabases(splitNonEmpty(*excludeDatabases))

	cfg := collector.CollectConfig{
		DB:               db,
		Pools:            pools,
		Excluded:         excluded,
		ServerVersionNum: info.ServerVersionNum,
		StatementsTopN:   *statementsTopN,
	}

	registry, err := collector.NewRegistry(enabledNames, factories, cfg, collector.BuildInfo{
		Version: version,
		Commit:  commit,
		Arch:    arch,
	})
	if err != nil {
		log.Errorf("cannot build collector registry: %s", err)
		os.Exit(1)
	}

	log.Infof("enabled collectors: %s", strings.Join(registry.EnabledNames(), ", "))

	srv := httpserver.NewServer(httpserver.Config{
		Addr:    fmt.Sprintf(":%d", *port),
		Name:    "pg_exporter",
		Version: version,
		Commit:  commit,
	}, registry)

	doExit := make(chan error, 2)
	go func() {
		doExit <- listenSignals()
		cancel()
	}()

	serveFailed := make(chan struct{})
	go func() {
		err := srv.Serve()
		if err != nil {
			close(serveFailed)
		}
		doExit <- err
	}()

	reason := <-doExit
	log.Warnf("shutting down: %s", reason)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("graceful shutdown failed: %s", err)
	}

	// A listener failure (e.g. the port cannot be bound) exits non-zero.
	select {
	case <-serveFailed:
		os.Exit(1)
	default:
	}
}

func listenSignals() error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	return fmt.Errorf("got %s", <-c)
}

func sortedNames(factories collector.Factories) []string {
	names := factories.Names()
	sort.Strings(names)
	return names
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// redactDSN strips credentials before a DSN ever reaches a log line.
func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at == -1 || scheme == -1 || at < scheme {
		return dsn
	}
	return dsn[:scheme+3] + "***" + dsn[at:]
}
