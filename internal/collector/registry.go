package collector

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/nbari/pg-exporter/internal/log"
	"github.com/nbari/pg-exporter/internal/selfmonitor"
	"github.com/nbari/pg-exporter/internal/store"
)

// BuildInfo carries the version/commit/arch triple emitted by
// pg_exporter_build_info.
type BuildInfo struct {
	Version string
	Commit  string
	Arch    string
}

// Registry owns the Prometheus registry, the enabled Collector set, the
// always-on pg_up and build-info gauges, and drives one scrape cycle.
// It is itself a prometheus.Collector so that the values it
// computes during a scrape (pg_up, build info) are emitted through the same
// Gather() pass that runs every enabled Collector's Update.
type Registry struct {
	promReg    *prometheus.Registry
	monitor    *selfmonitor.Monitor
	collectors map[string]Collector
	names      []string

	pgUpDesc  typedDesc
	buildInfo BuildInfo
	buildDesc typedDesc
	cfg       CollectConfig

	mu        sync.Mutex
	scrapeCtx context.Context
}

// NewRegistry builds the registry: it instantiates every enabled collector
// from factories, verifies no two collectors declare the same metric family
// (a conflict is startup-fatal and returned as an error), and registers
// itself plus the self-monitor with a fresh Prometheus registry.
func NewRegistry(enabled []string, factories Factories, cfg CollectConfig, build BuildInfo) (*Registry, error) {
	r := &Registry{
		promReg:    prometheus.NewRegistry(),
		monitor:    selfmonitor.New(),
		collectors: make(map[string]Collector),
		cfg:        cfg,
		buildInfo:  build,
		pgUpDesc:   newDesc("pg_up", "Whether the last probe of the PostgreSQL target succeeded.", prometheus.GaugeValue),
		buildDesc:  newDesc("pg_exporter_build_info", "Build information for pg_exporter.", prometheus.GaugeValue, "version", "commit", "arch"),
	}

	seen := make(map[string]struct{})

	for _, name := range enabled {
		factory, ok := factories[name]
		if !ok {
			log.Warnf("unknown collector %q, skip", name)
			continue
		}

		c := factory()

		descCh := make(chan *prometheus.Desc, 64)
		go func() {
			c.Describe(descCh)
			close(descCh)
		}()

		conflict := false
		var declared []string
		for d := range descCh {
			key := d.String()
			declared = append(declared, key)
			if _, ok := seen[key]; ok {
				conflict = true
			}
		}
		if conflict {
			// A family conflict is startup-fatal: a process that silently
			// dropped a collector would serve an incomplete metric set.
			return nil, fmt.Errorf("collector %q declares a metric family already registered by another collector", name)
		}
		for _, key := range declared {
			seen[key] = struct{}{}
		}

		r.collectors[name] = c
		r.names = append(r.names, name)
	}

	if err := r.promReg.Register(r.monitor); err != nil {
		return nil, fmt.Errorf("register self-monitor: %w", err)
	}
	if err := r.promReg.Register(r); err != nil {
		return nil, fmt.Errorf("register collector registry: %w", err)
	}

	return r, nil
}

// EnabledNames returns the names of the collectors actually constructed,
// for startup logging.
func (r *Registry) EnabledNames() []string {
	return r.names
}

// SelfMonitorProvider is a narrow, type-directed accessor capability: of
// every Collector-shaped variant in this package, only the
// one that owns the scrape self-monitor answers to it. Plain leaf and
// composite Collectors do not implement this interface, so a type
// assertion against it naturally fails for them without any "none" sentinel
// value needed.
type SelfMonitorProvider interface {
	SelfMonitor() *selfmonitor.Monitor
}

var _ SelfMonitorProvider = (*Registry)(nil)

// SelfMonitor returns the scrape self-monitor the registry drives every
// collector's ScrapeTimer through.
func (r *Registry) SelfMonitor() *selfmonitor.Monitor {
	return r.monitor
}

// Describe implements prometheus.Collector: it forwards every enabled
// collector's descriptors plus pg_up and build info.
func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	ch <- r.pgUpDesc.desc
	ch <- r.buildDesc.desc
	for _, c := range r.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector: this is where the actual scrape
// happens, driven synchronously by Gather when a client hits GET /metrics.
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	ctx := r.scrapeContext()

	// 1. Connectivity probe.
	pgUp := 1.0
	if err := r.cfg.DB.Ping(ctx); err != nil {
		log.Warnf("connectivity probe failed: %s", err)
		pgUp = 0
	}

	// 2 & 3. Fan out every enabled collector concurrently; failures are
	// isolated and do not abort siblings.
	var (
		wg         sync.WaitGroup
		pipe       = make(chan prometheus.Metric)
		mu         sync.Mutex
		anySuccess bool
	)

	wg.Add(len(r.collectors))
	for name, c := range r.collectors {
		go func(name string, c Collector) {
			defer wg.Done()

			timer := r.monitor.Start(name)
			defer timer.Finish()

			if err := c.Update(ctx, r.cfg, pipe); err != nil {
				log.Warnf("collector %q failed: %s", name, err)
				timer.Error()
				return
			}
			timer.Success()

			mu.Lock()
			anySuccess = true
			mu.Unlock()
		}(name, c)
	}

	go func() {
		wg.Wait()
		close(pipe)
	}()

	count := 0
	for m := range pipe {
		ch <- m
		count++
	}

	// 4. pg_up never goes negative or above 1; stays up if any collector
	// (or the probe) succeeded this scrape.
	if pgUp == 0 && anySuccess {
		pgUp = 1
	}
	ch <- r.pgUpDesc.mustNewConstMetric(pgUp)
	ch <- r.buildDesc.mustNewConstMetric(1, r.buildInfo.Version, r.buildInfo.Commit, r.buildInfo.Arch)

	// Self-monitor bookkeeping reflects the scrape that just completed; it
	// is read on the *next* Gather pass, which is consistent with the
	// metric's own definition ("current total number of samples").
	r.monitor.SetCardinality(count + 2)
	r.monitor.IncScrapes()
}

// Gather runs one scrape cycle end to end and returns the Prometheus text
// exposition payload. It never returns an error for scrape-local failures -
// a scrape always produces best-effort content; the only errors surfaced
// here are true encoding failures, which should be unreachable in practice.
func (r *Registry) Gather(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	r.scrapeCtx = ctx
	r.mu.Unlock()

	families, err := r.promReg.Gather()
	if err != nil {
		// Gather partial-failure mode: some collectors may still have
		// produced valid families; encode what's there and note the error.
		log.Errorf("gather encountered errors: %s", err)
	}

	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range families {
		if encErr := encoder.Encode(mf); encErr != nil {
			return buf.Bytes(), fmt.Errorf("encode metric family %s: %w", mf.GetName(), encErr)
		}
	}

	return buf.Bytes(), nil
}

func (r *Registry) scrapeContext() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scrapeCtx != nil {
		return r.scrapeCtx
	}
	return context.Background()
}

// DB exposes the registry's shared connection, used by the /health handler
// to reuse the same pool for its own ping rather than opening another.
func (r *Registry) DB() *store.DB {
	return r.cfg.DB
}

// Info returns the version/commit/arch triple the registry was built with.
func (r *Registry) Info() BuildInfo {
	return r.buildInfo
}
