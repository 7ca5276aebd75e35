package collector

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

const postmasterQuery = `SELECT extract(epoch FROM pg_postmaster_start_time()) AS start_time_seconds`

// postmasterCollector is one of the fixed-row collectors: it
// republishes the server's process start time as a Unix timestamp so
// dashboards can derive uptime without relying on exporter process state.
type postmasterCollector struct {
	startTime typedDesc
}

func newPostmasterCollector() Collector {
	return &postmasterCollector{
		startTime: newDesc("pg_postmaster_start_time_seconds", "Unix timestamp of postmaster process start.", prometheus.GaugeValue),
	}
}

func (c *postmasterCollector) Name() string { return "postmaster" }
func (c *postmasterCollector) EnabledByDefault() bool { return true }

func (c *postmasterCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.startTime.desc
}

func (c *postmasterCollector) Update(ctx context.Context, cfg CollectConfig, ch chan<- prometheus.Metric) error {
	var startTime float64

	if err := cfg.DB.QueryRow(ctx, postmasterQuery, nil, &startTime); err != nil {
		return err
	}

	ch <- c.startTime.mustNewConstMetric(startTime)

	return nil
}
