package collector

import (
	"strconv"

	"github.com/nbari/pg-exporter/internal/log"
	"github.com/nbari/pg-exporter/internal/model"
)

// colIndex builds a column-name-to-index map for a PGResult, the same
// quick-lookup idiom used throughout the collector package to avoid
// hardcoding positional indexes into SELECT lists.
func colIndex(r *model.PGResult) map[string]int {
	idx := make(map[string]int, r.Ncols)
	for i, col := range r.Colnames {
		idx[string(col.Name)] = i
	}
	return idx
}

// parseFloatOrZero parses s as float64, returning 0 for empty (NULL)
// values or values that fail to parse (logged, not fatal - a single bad
// column must not abort the whole collector).
func parseFloatOrZero(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Debugf("parse float %q failed: %s, treat as 0", s, err)
		return 0
	}
	return v
}
