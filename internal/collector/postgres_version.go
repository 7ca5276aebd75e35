package collector

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

const versionQuery = `
SELECT
    version() AS full_version,
    current_setting('server_version') AS server_version,
    current_setting('server_version_num') AS server_version_num`

// versionCollector is one of the fixed-row collectors: a single,
// never-changing-within-a-process-lifetime info row describing the server
// the exporter is attached to.
type versionCollector struct {
	info       typedDesc
	versionNum typedDesc
}

func newVersionCollector() Collector {
	return &versionCollector{
		info:       newDesc("pg_version_info", "Labeled information about the connected Postgres server version.", prometheus.GaugeValue, "full_version", "server_version"),
		versionNum: newDesc("pg_server_version_num", "Postgres server_version_num (e.g. 150003).", prometheus.GaugeValue),
	}
}

func (c *versionCollector) Name() string { return "version" }
func (c *versionCollector) EnabledByDefault() bool { return true }

func (c *versionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.info.desc
	ch <- c.versionNum.desc
}

func (c *versionCollector) Update(ctx context.Context, cfg CollectConfig, ch chan<- prometheus.Metric) error {
	var fullVersion, serverVersion, serverVersionNum string

	if err := cfg.DB.QueryRow(ctx, versionQuery, nil, &fullVersion, &serverVersion, &serverVersionNum); err != nil {
		return err
	}

	ch <- c.info.mustNewConstMetric(1, fullVersion, serverVersion)
	ch <- c.versionNum.mustNewConstMetric(parseFloatOrZero(serverVersionNum))

	return nil
}
