// Package config manages run defaults from a config file and environment.
// Configuration is read-only: the tool never writes it back.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/klytics/xlreport/internal/colrange"
	"github.com/klytics/xlreport/internal/etl"
	"github.com/klytics/xlreport/internal/formats/xlsx"
	"github.com/klytics/xlreport/internal/report"
)

// EnvPrefix is prepended to every environment override, e.g.
// XLREPORT_START_ROW or XLREPORT_REPORT_TOP_N.
const EnvPrefix = "XLREPORT"

// Config holds the application configuration.
type Config struct {
	Sheet       string `mapstructure:"sheet" json:"sheet"`
	Output      string `mapstructure:"output" json:"output"`
	OutputSheet string `mapstructure:"output_sheet" json:"outputSheet"`
	Charts      string `mapstructure:"charts" json:"charts,omitempty"`
	NoCharts    bool   `mapstructure:"no_charts" json:"noCharts"`
	StartRow    int    `mapstructure:"start_row" json:"startRow"`
	Columns     string `mapstructure:"columns" json:"columns"`
	Report      struct {
		EntityColumn string          `mapstructure:"entity_column" json:"entityColumn"`
		Metrics      []report.Metric `mapstructure:"metrics" json:"metrics"`
		TopN         int             `mapstructure:"top_n" json:"topN"`
	} `mapstructure:"report" json:"report"`
	Watch struct {
		DebounceMs int `mapstructure:"debounce_ms" json:"debounceMs"`
	} `mapstructure:"watch" json:"watch"`
}

// ConfigIssue describes a problem found in the loaded configuration.
type ConfigIssue struct {
	Key     string
	Message string
}

// Load reads ~/.xlreport/config.yaml (or path, when non-empty) and
// XLREPORT_* environment variables on top of the built-in defaults.
func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
	}

	setDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing default config is fine; an explicit or broken one is not.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			return nil, fmt.Errorf("could not read config %s: %w", describe(path), err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	def := report.DefaultOptions()

	viper.SetDefault("sheet", xlsx.DefaultSheet)
	viper.SetDefault("output", etl.DefaultOutput)
	viper.SetDefault("output_sheet", xlsx.DefaultSheet)
	viper.SetDefault("charts", "")
	viper.SetDefault("no_charts", false)
	viper.SetDefault("start_row", 0)
	viper.SetDefault("columns", "A:F")
	viper.SetDefault("report.entity_column", def.EntityColumn)
	viper.SetDefault("report.metrics", []map[string]string{
		{"column": def.Metrics[0].Column, "label": def.Metrics[0].Label},
		{"column": def.Metrics[1].Column, "label": def.Metrics[1].Label},
	})
	viper.SetDefault("report.top_n", def.TopN)
	viper.SetDefault("watch.debounce_ms", 500)
}

// Validate checks config values and returns a list of issues.
func (c *Config) Validate() []ConfigIssue {
	var issues []ConfigIssue

	if _, err := colrange.Parse(c.Columns); err != nil {
		issues = append(issues, ConfigIssue{Key: "columns", Message: err.Error()})
	}
	if c.StartRow < 0 {
		issues = append(issues, ConfigIssue{Key: "start_row", Message: "must not be negative"})
	}
	if len(c.Report.Metrics) != 2 {
		issues = append(issues, ConfigIssue{
			Key:     "report.metrics",
			Message: fmt.Sprintf("exactly 2 metrics are required, got %d", len(c.Report.Metrics)),
		})
	}
	for i, m := range c.Report.Metrics {
		if m.Column == "" {
			issues = append(issues, ConfigIssue{
				Key:     fmt.Sprintf("report.metrics[%d].column", i),
				Message: "column name is empty",
			})
		}
	}
	if c.Report.TopN <= 0 {
		issues = append(issues, ConfigIssue{Key: "report.top_n", Message: "must be greater than zero"})
	}
	if c.Watch.DebounceMs < 0 {
		issues = append(issues, ConfigIssue{Key: "watch.debounce_ms", Message: "must not be negative"})
	}

	return issues
}

// RunOptions converts the configuration into options for the ETL runner.
func (c *Config) RunOptions() etl.Options {
	opts := etl.Options{
		Sheet:       c.Sheet,
		OutputSheet: c.OutputSheet,
		OutputPath:  c.Output,
		ChartsPath:  c.Charts,
		NoCharts:    c.NoCharts,
		Report: report.Options{
			EntityColumn: c.Report.EntityColumn,
			TopN:         c.Report.TopN,
		},
	}
	copy(opts.Report.Metrics[:], c.Report.Metrics)
	return opts
}

// ConfigPath returns the path to the default config file.
func ConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// ShowConfig returns a formatted string of the effective configuration.
func ShowConfig(c *Config) string {
	var sb strings.Builder

	source := viper.ConfigFileUsed()
	if source == "" {
		source = ConfigPath() + " (not found, using defaults)"
	}
	sb.WriteString(fmt.Sprintf("Config: %s\n\n", source))

	sb.WriteString("Input\n")
	sb.WriteString(fmt.Sprintf("  sheet:         %s\n", c.Sheet))
	sb.WriteString(fmt.Sprintf("  start_row:     %d\n", c.StartRow))
	sb.WriteString(fmt.Sprintf("  columns:       %s\n", c.Columns))
	sb.WriteString("\n")

	sb.WriteString("Output\n")
	sb.WriteString(fmt.Sprintf("  output:        %s\n", c.Output))
	sb.WriteString(fmt.Sprintf("  output_sheet:  %s\n", c.OutputSheet))
	charts := c.Charts
	switch {
	case c.NoCharts:
		charts = "(disabled)"
	case charts == "":
		charts = etl.ChartsPathFor(c.Output)
	}
	sb.WriteString(fmt.Sprintf("  charts:        %s\n", charts))
	sb.WriteString("\n")

	sb.WriteString("Report\n")
	sb.WriteString(fmt.Sprintf("  entity_column: %s\n", c.Report.EntityColumn))
	for i, m := range c.Report.Metrics {
		sb.WriteString(fmt.Sprintf("  metric %d:      %s (%s)\n", i+1, m.Column, m.Label))
	}
	sb.WriteString(fmt.Sprintf("  top_n:         %d\n", c.Report.TopN))
	sb.WriteString("\n")

	return sb.String()
}

func describe(path string) string {
	if path == "" {
		return ConfigPath()
	}
	return path
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".xlreport"
	}
	return filepath.Join(home, ".xlreport")
}
