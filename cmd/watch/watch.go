// Package watch provides the "xlreport watch" command.
package watch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/xlreport/cmd/run"
	"github.com/klytics/xlreport/internal/etl"
	"github.com/klytics/xlreport/internal/output"
	w "github.com/klytics/xlreport/internal/watch"
)

// NewCommand creates the "watch" command.
func NewCommand() *cobra.Command {
	var (
		flags    *run.Flags
		debounce int
		runNow   bool
	)

	cmd := &cobra.Command{
		Use:   "watch <input.xlsx> [input.xlsx...]",
		Short: "Re-run the report whenever an input workbook changes",
		Long: `Watch one or more input workbooks and re-run the report each time one is
saved. Every change produces the same single success or error message as
'xlreport run'; failures do not stop the watcher.

Example:
  xlreport watch mental-health.xlsx --columns A:F
  xlreport watch data.xlsx --debounce 1000 --run-now`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonFlag, _ := cmd.Flags().GetBool("json")
			verbose, _ := cmd.Flags().GetBool("verbose")

			settings, err := flags.Resolve(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("debounce") {
				debounce = settings.Config.Watch.DebounceMs
			}

			watcher, err := w.New(w.Config{
				Files:    args,
				Debounce: time.Duration(debounce) * time.Millisecond,
			})
			if err != nil {
				return err
			}

			runner := etl.NewRunner(settings.Options, verbose)
			watcher.Handler = func(ctx context.Context, path string) error {
				res, err := runner.RunFile(ctx, path, settings.StartRow, settings.Columns)
				switch {
				case jsonFlag && err != nil:
					output.PrintJSONLine(os.Stdout, "watch", res, err)
				case jsonFlag:
					output.PrintJSONLine(os.Stdout, "watch", run.JSONData(res), nil)
				case err != nil:
					color.New(color.FgRed).Fprintln(os.Stderr, res.Message)
				default:
					run.PrintResult(os.Stdout, res, false)
				}
				return err
			}

			if !jsonFlag {
				fmt.Printf("Watching %d workbook(s), press Ctrl+C to stop\n", len(args))
			}

			ctx := cmd.Context()
			if runNow {
				for _, path := range watcher.Config.Files {
					watcher.Handler(ctx, path)
				}
			}

			return watcher.Start(ctx)
		},
	}

	flags = run.BindFlags(cmd)
	cmd.Flags().IntVar(&debounce, "debounce", 500, "Debounce interval in milliseconds")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Run once for every input before waiting for changes")

	return cmd
}
