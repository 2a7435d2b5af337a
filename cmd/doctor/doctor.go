// Package doctor provides the "xlreport doctor" command for checking that
// runs can succeed in the current environment.
package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/xlreport/internal/config"
	"github.com/klytics/xlreport/internal/etl"
	"github.com/klytics/xlreport/internal/formats/xlsx"
	"github.com/klytics/xlreport/internal/output"
	"github.com/klytics/xlreport/internal/table"
)

// Check represents a single health check result.
type Check struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", "error"
	Message string `json:"message"`
}

// NewCommand creates the "doctor" command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and output locations",
		Long:  "Run diagnostic checks to verify xlreport can read its config and write its outputs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			checks := runChecks(cmd.Context(), cfgPath)

			errCount := 0
			for _, c := range checks {
				if c.Status == "error" {
					errCount++
				}
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				if err := output.PrintJSON(os.Stdout, "doctor", checks); err != nil {
					return err
				}
			} else {
				printChecks(checks)
			}

			if errCount > 0 {
				return &output.ExitError{Code: output.ExitSystemError}
			}
			return nil
		},
	}
}

func printChecks(checks []Check) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Println("xlreport doctor")
	fmt.Println("===============")
	fmt.Println()

	okCount, warnCount, errCount := 0, 0, 0
	for _, c := range checks {
		var icon string
		switch c.Status {
		case "ok":
			icon = green("✓")
			okCount++
		case "warning":
			icon = yellow("!")
			warnCount++
		case "error":
			icon = red("✗")
			errCount++
		}
		fmt.Printf("  %s %s: %s\n", icon, c.Name, c.Message)
	}

	fmt.Println()
	fmt.Printf("  %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)
}

func runChecks(ctx context.Context, cfgPath string) []Check {
	checks := []Check{{
		Name:    "Go Runtime",
		Status:  "ok",
		Message: fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return append(checks, Check{Name: "Config", Status: "error", Message: err.Error()})
	}
	if _, statErr := os.Stat(config.ConfigPath()); cfgPath == "" && statErr != nil {
		checks = append(checks, Check{Name: "Config", Status: "warning", Message: "no config file, using built-in defaults"})
	} else {
		checks = append(checks, Check{Name: "Config", Status: "ok", Message: "loaded"})
	}
	if issues := cfg.Validate(); len(issues) > 0 {
		for _, issue := range issues {
			checks = append(checks, Check{Name: "Config " + issue.Key, Status: "error", Message: issue.Message})
		}
		return checks
	}

	opts := cfg.RunOptions()
	dirs := []string{filepath.Dir(opts.OutputPath)}
	if !opts.NoCharts {
		charts := opts.ChartsPath
		if charts == "" {
			charts = etl.ChartsPathFor(opts.OutputPath)
		}
		if d := filepath.Dir(charts); d != dirs[0] {
			dirs = append(dirs, d)
		}
	}
	for _, dir := range dirs {
		checks = append(checks, checkWritable(dir))
	}

	checks = append(checks, checkSelfTest(ctx, cfg))
	return checks
}

func checkWritable(dir string) Check {
	name := "Output Directory " + dir
	f, err := os.CreateTemp(dir, ".xlreport-doctor-*")
	if err != nil {
		return Check{Name: name, Status: "error", Message: fmt.Sprintf("not writable: %v", err)}
	}
	f.Close()
	os.Remove(f.Name())
	return Check{Name: name, Status: "ok", Message: "writable"}
}

// checkSelfTest runs a two-entity workbook through every stage in memory
// using the configured entity and metric columns.
func checkSelfTest(ctx context.Context, cfg *config.Config) Check {
	opts := cfg.RunOptions()
	header := []string{opts.Report.EntityColumn, opts.Report.Metrics[0].Column, opts.Report.Metrics[1].Column}
	data, err := xlsx.EncodeTable(table.New(header, [][]string{
		{"CountryA", "2", "1"},
		{"CountryB", "1", "3"},
	}), opts.Sheet)
	if err != nil {
		return Check{Name: "Self Test", Status: "error", Message: err.Error()}
	}

	if _, err := etl.Process(ctx, etl.Request{Source: data, ColumnRange: "A:C"}, opts); err != nil {
		return Check{Name: "Self Test", Status: "error", Message: err.Error()}
	}
	return Check{Name: "Self Test", Status: "ok", Message: "extract, transform, report and load succeeded"}
}
