package pipeline

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/xlreport/cmd/run"
	"github.com/klytics/xlreport/internal/output"
	pipelinepkg "github.com/klytics/xlreport/internal/pipeline"
	"github.com/klytics/xlreport/internal/progress"
)

func newRunCommand() *cobra.Command {
	var (
		flags  *run.Flags
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "run <jobs.yaml>",
		Short: "Execute a job file",
		Long: `Runs every job in a YAML job file in order. Jobs inherit the config file
and flags as defaults and may override input, sheet, start_row, columns,
output and charts. A failing job stops the batch unless it sets
on_failure: skip.

Example jobs.yaml:
  name: monthly
  jobs:
    - id: all
      input: data/mental-health.xlsx
      output: out/all-${{ date.today }}.xlsx
    - id: recent
      input: ${{ jobs.all.output }}
      start_row: 100
      on_failure: skip`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonFlag, _ := cmd.Flags().GetBool("json")
			verbose, _ := cmd.Flags().GetBool("verbose")

			p, err := pipelinepkg.LoadPipeline(args[0])
			if err != nil {
				return output.Usagef("%s", err)
			}
			settings, err := flags.Resolve(cmd)
			if err != nil {
				return err
			}

			executor := pipelinepkg.NewExecutor(settings.Options, settings.StartRow, settings.Columns, verbose)
			executor.SetDryRun(dryRun)

			bar := progress.New(p.Name, len(p.Jobs))
			executor.OnJob = func(r pipelinepkg.JobResult) {
				bar.Step(r.JobID, r.Error == nil)
			}

			results, execErr := executor.Run(cmd.Context(), p)
			bar.Finish(fmt.Sprintf("%d/%d job(s) run", len(results), len(p.Jobs)))

			if jsonFlag {
				type jsonJob struct {
					JobID   string `json:"jobId"`
					Skipped bool   `json:"skipped,omitempty"`
					Error   string `json:"error,omitempty"`
					Result  any    `json:"result,omitempty"`
				}
				out := make([]jsonJob, len(results))
				for i, r := range results {
					out[i] = jsonJob{JobID: r.JobID, Skipped: r.Skipped}
					if r.Error != nil {
						out[i].Error = r.Error.Error()
					}
					if r.Result != nil {
						out[i].Result = run.JSONData(r.Result)
					}
				}
				if execErr != nil {
					output.PrintJSONError(os.Stdout, "pipeline run", execErr, out)
					return &output.ExitError{Code: output.ExitCode(execErr)}
				}
				return output.PrintJSON(os.Stdout, "pipeline run", out)
			}

			red := color.New(color.FgRed)
			green := color.New(color.FgGreen)
			for _, r := range results {
				msg := ""
				if r.Result != nil {
					msg = r.Result.Message
				}
				switch {
				case r.Skipped:
					red.Fprintf(os.Stderr, "Job %s: SKIPPED — %s\n", r.JobID, msg)
				case r.Error != nil:
					red.Fprintf(os.Stderr, "Job %s: FAILED — %s\n", r.JobID, msg)
				default:
					green.Printf("Job %s: OK — %s\n", r.JobID, msg)
				}
			}

			if execErr != nil {
				return &output.ExitError{Code: output.ExitCode(execErr)}
			}
			return nil
		},
	}

	flags = run.BindFlags(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Process every job in memory without writing files")

	return cmd
}
