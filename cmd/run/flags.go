package run

import (
	"github.com/spf13/cobra"

	"github.com/klytics/xlreport/internal/colrange"
	"github.com/klytics/xlreport/internal/config"
	"github.com/klytics/xlreport/internal/etl"
	"github.com/klytics/xlreport/internal/output"
)

// Flags are the request and output flags shared by run, watch and shell.
type Flags struct {
	StartRow    int
	Columns     string
	Sheet       string
	Output      string
	OutputSheet string
	Charts      string
	NoCharts    bool
	TopN        int
}

// Settings is the effective configuration of a command after flags have
// been applied over the config file.
type Settings struct {
	Options  etl.Options
	StartRow int
	Columns  string
	Config   *config.Config
}

// BindFlags registers the shared flags on cmd.
func BindFlags(cmd *cobra.Command) *Flags {
	f := &Flags{}
	cmd.Flags().IntVar(&f.StartRow, "start-row", 0, "First data row to keep, 0 = first row after the header")
	cmd.Flags().StringVar(&f.Columns, "columns", "A:F", "Column letters to keep, e.g. A:F")
	cmd.Flags().StringVar(&f.Sheet, "sheet", "Sheet1", "Input sheet name")
	cmd.Flags().StringVarP(&f.Output, "output", "o", etl.DefaultOutput, "Output workbook path")
	cmd.Flags().StringVar(&f.OutputSheet, "output-sheet", "Sheet1", "Output sheet name")
	cmd.Flags().StringVar(&f.Charts, "charts", "", "Chart workbook path (default <output>_charts.xlsx)")
	cmd.Flags().BoolVar(&f.NoCharts, "no-charts", false, "Do not write the chart workbook")
	cmd.Flags().IntVar(&f.TopN, "top", 10, "Number of entities in the bar chart")
	return f
}

// Resolve loads the config named by --config and applies every flag the
// user set explicitly on top of it.
func (f *Flags) Resolve(cmd *cobra.Command) (*Settings, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, output.Usagef("%s", err)
	}

	changed := cmd.Flags().Changed
	if changed("start-row") {
		cfg.StartRow = f.StartRow
	}
	if changed("columns") {
		cfg.Columns = f.Columns
	}
	if changed("sheet") {
		cfg.Sheet = f.Sheet
	}
	if changed("output") {
		cfg.Output = f.Output
		if !changed("charts") {
			cfg.Charts = ""
		}
	}
	if changed("output-sheet") {
		cfg.OutputSheet = f.OutputSheet
	}
	if changed("charts") {
		cfg.Charts = f.Charts
	}
	if changed("no-charts") {
		cfg.NoCharts = f.NoCharts
	}
	if changed("top") {
		cfg.Report.TopN = f.TopN
	}

	// A bad range is reported like any other invalid request.
	if _, err := colrange.Parse(cfg.Columns); err != nil {
		return nil, err
	}
	if issues := cfg.Validate(); len(issues) > 0 {
		return nil, output.Usagef("%s: %s", issues[0].Key, issues[0].Message)
	}

	return &Settings{
		Options:  cfg.RunOptions(),
		StartRow: cfg.StartRow,
		Columns:  cfg.Columns,
		Config:   cfg,
	}, nil
}
