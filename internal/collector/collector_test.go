package collector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// The factory table is the process-wide source of truth for collector
// names; every key must match the Name() of the collector it constructs,
// since the key becomes a user-visible CLI toggle flag.
func TestNewFactories_NamesMatch(t *testing.T) {
	for name, factory := range NewFactories() {
		c := factory()
		assert.Equal(t, name, c.Name())
		assert.Equal(t, strings.ToLower(name), name)
	}
}

func TestFactories_Names(t *testing.T) {
	factories := NewFactories()
	names := factories.Names()

	assert.Len(t, names, len(factories))
	assert.Contains(t, names, "connections")
	assert.Contains(t, names, "statements")
}

func TestFactories_DefaultEnabled(t *testing.T) {
	enabled := NewFactories().DefaultEnabled()

	assert.Contains(t, enabled, "connections")
	assert.Contains(t, enabled, "replication")

	// Cardinality-heavy collectors stay opt-in.
	assert.NotContains(t, enabled, "tables")
	assert.NotContains(t, enabled, "statements")
	assert.NotContains(t, enabled, "long_running")
}
