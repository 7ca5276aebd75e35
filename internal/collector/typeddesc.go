package collector

import "github.com/prometheus/client_golang/prometheus"

// typedDesc pairs a Prometheus descriptor with the value type used to build
// samples from it - the collector package's standard metric-emission helper.
type typedDesc struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
}

// newDesc builds a typedDesc from a fully qualified metric name, matching
// the literal names fixed by the metric name contract rather than
// constructing them piecewise with prometheus.BuildFQName.
func newDesc(fqName, help string, valueType prometheus.ValueType, labels ...string) typedDesc {
	return typedDesc{
		desc:      prometheus.NewDesc(fqName, help, labels, nil),
		valueType: valueType,
	}
}

// mustNewConstMetric builds a sample for this family. Label values must be
// supplied in the same order the family's labels were declared.
func (d typedDesc) mustNewConstMetric(value float64, labelValues ...string) prometheus.Metric {
	return prometheus.MustNewConstMetric(d.desc, d.valueType, value, labelValues...)
}
