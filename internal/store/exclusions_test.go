package store

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExcludedDatabases_Contains(t *testing.T) {
	e := NewExcludedDatabases([]string{"db1", "db2", ""})

	assert.True(t, e.Contains("db1"))
	assert.True(t, e.Contains("db2"))
	assert.False(t, e.Contains("db3"))
	assert.False(t, e.Contains(""))
}

func TestExcludedDatabases_WithTemplates(t *testing.T) {
	e := NewExcludedDatabases([]string{"db1"})

	got := e.WithTemplates()
	sort.Strings(got)

	assert.Equal(t, []string{"db1", "template0", "template1"}, got)
}

func TestNewExcludedDatabases_Empty(t *testing.T) {
	e := NewExcludedDatabases(nil)
	assert.Empty(t, e.List())
	assert.False(t, e.Contains("anything"))
}
