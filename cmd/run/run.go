// Package run provides the "xlreport run" command.
package run

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/xlreport/internal/etl"
	"github.com/klytics/xlreport/internal/output"
	"github.com/klytics/xlreport/internal/progress"
	"github.com/klytics/xlreport/internal/report"
)

var stageLabels = map[string]string{
	etl.StageExtract:   "Reading workbook...",
	etl.StageTransform: "Filtering rows and columns...",
	etl.StageReport:    "Building report...",
	etl.StageLoad:      "Encoding output...",
}

// NewCommand returns the run command.
func NewCommand() *cobra.Command {
	var flags *Flags
	var quiet bool

	cmd := &cobra.Command{
		Use:   "run <input.xlsx>",
		Short: "Filter a workbook and build its report",
		Long: `Reads the first sheet of an .xlsx workbook, keeps the rows from --start-row
onward and the columns in --columns, writes the result to --output, and
builds the grouped report with its bar and pie charts.

Nothing is written unless every stage succeeds. Pass '-' to read from stdin.

Example:
  xlreport run mental-health.xlsx --start-row 0 --columns A:F
  cat data.xlsx | xlreport run - --output out.xlsx --no-charts`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonFlag, _ := cmd.Flags().GetBool("json")
			verbose, _ := cmd.Flags().GetBool("verbose")

			settings, err := flags.Resolve(cmd)
			if err != nil {
				return err
			}

			spinner := progress.NewSpinner("Starting...")
			settings.Options.OnStage = func(stage string) {
				spinner.Update(stageLabels[stage])
			}
			spinner.Start()

			runner := etl.NewRunner(settings.Options, verbose)
			res, err := runner.RunFile(cmd.Context(), args[0], settings.StartRow, settings.Columns)
			spinner.Stop("")

			if jsonFlag {
				if err != nil {
					output.PrintJSONError(os.Stdout, "run", err, res)
					return &output.ExitError{Code: output.ExitCode(err)}
				}
				return output.PrintJSON(os.Stdout, "run", JSONData(res))
			}
			if err != nil {
				return err
			}

			PrintResult(os.Stdout, res, !quiet)
			return nil
		},
	}

	flags = BindFlags(cmd)
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only the result message")

	return cmd
}

// JSONData is the --json payload of a successful run: the result plus the
// Chart.js descriptions of both charts.
func JSONData(res *etl.Result) map[string]any {
	data := map[string]any{"result": res}
	if res.Report != nil {
		data["charts"] = report.ChartJS(res.Report)
	}
	return data
}

// PrintResult writes the success message and, when withReport is set, the
// terminal rendering of the report.
func PrintResult(w io.Writer, res *etl.Result, withReport bool) {
	green := color.New(color.FgGreen, color.Bold)
	green.Fprintf(w, "✓ %s\n", res.Message)
	if res.ChartsPath != "" {
		fmt.Fprintf(w, "  Charts saved as %s\n", res.ChartsPath)
	}
	fmt.Fprintf(w, "  %d row(s), columns: %v (%s)\n", res.Rows, res.Columns, res.Duration.Round(time.Millisecond))
	if withReport && res.Report != nil {
		fmt.Fprintln(w)
		report.RenderText(w, res.Report)
	}
}
