package collector

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nbari/pg-exporter/internal/log"
	"github.com/nbari/pg-exporter/internal/model"
)

// settingsQuery selects the GUCs whose source is the compiled-in default
// or a server-wide one (configuration file, override, environment
// variable, command line, global); per-database, per-user and session
// sources are left out. For the full list of displayable source names see
// guc.c's GucSource_Names[].
const settingsQuery = `
SELECT name, setting, unit, vartype
FROM pg_show_all_settings()
WHERE source IN ('default', 'configuration file', 'override', 'environment variable', 'command line', 'global')`

const settingsFilesQuery = `
SELECT name, setting
FROM pg_show_all_settings()
WHERE name IN ('config_file', 'hba_file', 'ident_file', 'data_directory')`

// settingsCollector republishes pg_settings.* as info-style gauges on
// every scrape; its label set is stable across scrapes, so it never
// needs to reset.
type settingsCollector struct {
	settings typedDesc
	files    typedDesc
}

func newSettingsCollector() Collector {
	return &settingsCollector{
		settings: newDesc("pg_settings_info", "Labeled information about a Postgres configuration setting.", prometheus.GaugeValue, "name", "setting", "unit", "vartype", "source"),
		files:    newDesc("pg_settings_files_info", "Labeled information about a Postgres system file referenced by a GUC.", prometheus.GaugeValue, "guc", "mode", "path"),
	}
}

func (c *settingsCollector) Name() string { return "settings" }
func (c *settingsCollector) EnabledByDefault() bool { return true }

func (c *settingsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.settings.desc
	ch <- c.files.desc
}

func (c *settingsCollector) Update(ctx context.Context, cfg CollectConfig, ch chan<- prometheus.Metric) error {
	res, err := cfg.DB.Query(ctx, settingsQuery)
	if err != nil {
		return err
	}

	for _, s := range parsePostgresSettings(res) {
		ch <- c.settings.mustNewConstMetric(s.value, s.name, s.setting, s.unit, s.vartype, "main")
	}

	res, err = cfg.DB.Query(ctx, settingsFilesQuery)
	if err != nil {
		return err
	}

	for _, f := range parsePostgresFiles(res) {
		ch <- c.files.mustNewConstMetric(1, f.guc, f.mode, f.path)
	}

	return nil
}

// postgresSetting is the normalized representation of a single pg_settings row.
type postgresSetting struct {
	name    string
	setting string
	unit    string
	vartype string
	value   float64
}

func parsePostgresSettings(r *model.PGResult) []postgresSetting {
	var settings []postgresSetting

	for _, row := range r.Rows {
		if len(row) != 4 {
			log.Warnln("settings collector: wrong number of columns; skip")
			continue
		}

		n, s, u, v := row[0].String, row[1].String, row[2].String, row[3].String
		setting, err := newPostgresSetting(n, s, u, v)
		if err != nil {
			log.Warnf("settings collector: normalize setting (name=%s, setting=%s, unit=%s, vartype=%s) failed: %s; skip", n, s, u, v, err)
			continue
		}

		settings = append(settings, setting)
	}

	return settings
}

// newPostgresSetting normalizes a pg_settings row's setting value to a
// float64 in its base unit (bytes or seconds), so settings are comparable
// across units without downstream rescaling.
func newPostgresSetting(name, setting, unit, vartype string) (postgresSetting, error) {
	var value float64

	switch vartype {
	case "enum", "string":
		return postgresSetting{name: name, unit: unit, vartype: vartype, setting: setting, value: 0}, nil
	case "bool":
		switch setting {
		case "off":
			value = 0
		case "on":
			value = 1
		default:
			return postgresSetting{}, fmt.Errorf("invalid bool value: %q", setting)
		}

		return postgresSetting{name: name, unit: unit, vartype: vartype, setting: setting, value: value}, nil
	case "integer", "real":
		factor, unit, err := parseUnit(unit)
		if err != nil {
			return postgresSetting{}, err
		}

		v, err := strconv.ParseFloat(setting, 64)
		if err != nil {
			return postgresSetting{}, err
		}

		// Negative values are specials (e.g. old_snapshot_threshold), not magnitudes.
		if v >= 0 {
			v *= factor
		}

		if vartype == "integer" && v >= 1 {
			setting = strconv.FormatFloat(v, 'f', 0, 64)
		} else {
			setting = strings.TrimRight(strconv.FormatFloat(v, 'f', 5, 64), "0")
			setting = strings.TrimRight(setting, ".")
			if setting == "" {
				setting = "0"
			}
		}

		return postgresSetting{name: name, unit: unit, vartype: vartype, setting: setting, value: v}, nil
	default:
		return postgresSetting{}, fmt.Errorf("unknown vartype: %q", vartype)
	}
}

// postgresFile describes a system file referenced by a GUC.
type postgresFile struct {
	path string
	mode string
	guc  string
}

func parsePostgresFiles(r *model.PGResult) []postgresFile {
	var files []postgresFile

	for _, row := range r.Rows {
		if len(row) != 2 {
			log.Warnln("settings collector: wrong number of columns in files query; skip")
			continue
		}

		guc, path := row[0].String, row[1].String
		fi, err := os.Stat(path)
		if err != nil {
			log.Warnf("settings collector: stat %s failed: %s; skip", path, err)
			continue
		}

		files = append(files, postgresFile{path: path, mode: fmt.Sprintf("%04o", fi.Mode().Perm()), guc: guc})
	}

	return files
}

// parseUnit normalizes a pg_settings.unit value into a multiplying factor
// and a base unit name ("bytes" or "seconds").
func parseUnit(unit string) (float64, string, error) {
	if unit == "" {
		return 1, "", nil
	}

	re := regexp.MustCompile(`^(?i)([0-9]*)([a-z]+)$`)
	match := re.FindStringSubmatch(unit)
	if len(match) != 3 {
		return 1, "", fmt.Errorf("invalid unit: %q", unit)
	}

	factor := 1.0
	if match[1] != "" {
		var err error
		factor, err = strconv.ParseFloat(match[1], 64)
		if err != nil {
			return 1, "", err
		}
	}

	switch match[2] {
	case "B":
		return factor, "bytes", nil
	case "kB":
		return factor * 1024, "bytes", nil
	case "MB":
		return factor * 1024 * 1024, "bytes", nil
	case "GB":
		return factor * 1024 * 1024 * 1024, "bytes", nil
	case "TB":
		return factor * 1024 * 1024 * 1024 * 1024, "bytes", nil
	case "ms":
		return factor * 0.001, "seconds", nil
	case "s":
		return factor, "seconds", nil
	case "min":
		return factor * 60, "seconds", nil
	case "h":
		return factor * 60 * 60, "seconds", nil
	case "d":
		return factor * 60 * 60 * 24, "seconds", nil
	default:
		return 1, "", fmt.Errorf("unknown suffix: %q", match[2])
	}
}
