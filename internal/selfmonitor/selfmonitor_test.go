package selfmonitor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestScrapeTimer_Success(t *testing.T) {
	m := New()

	timer := m.Start("connections")
	timer.Success()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.lastSuccess.WithLabelValues("connections")))
}

func TestScrapeTimer_Error(t *testing.T) {
	m := New()

	timer := m.Start("connections")
	timer.Error()

	assert.Equal(t, float64(0), testutil.ToFloat64(m.lastSuccess.WithLabelValues("connections")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.errors.WithLabelValues("connections")))
}

func TestScrapeTimer_FinishDefaultsToSuccess(t *testing.T) {
	m := New()

	func() {
		timer := m.Start("locks")
		defer timer.Finish()
		// collector returns without calling Success or Error explicitly
	}()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.lastSuccess.WithLabelValues("locks")))
}

func TestScrapeTimer_FinishDoesNotOverrideExplicitOutcome(t *testing.T) {
	m := New()

	func() {
		timer := m.Start("locks")
		defer timer.Finish()
		timer.Error()
	}()

	assert.Equal(t, float64(0), testutil.ToFloat64(m.lastSuccess.WithLabelValues("locks")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.errors.WithLabelValues("locks")))
}

func TestMonitor_Cardinality(t *testing.T) {
	m := New()
	m.SetCardinality(42)

	assert.Equal(t, float64(42), testutil.ToFloat64(m.metricsTotal))
}
