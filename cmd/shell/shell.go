// Package shell provides the "xlreport shell" interactive command.
package shell

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/klytics/xlreport/cmd/run"
	"github.com/klytics/xlreport/internal/etl"
	"github.com/klytics/xlreport/internal/output"
	shellpkg "github.com/klytics/xlreport/internal/shell"
)

// NewCommand creates the "shell" command.
func NewCommand() *cobra.Command {
	var (
		flags    *run.Flags
		evalCmds []string
	)

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive report session",
		Long: `Start an interactive session: load a workbook, set the start row and the
column range, then 'run' to write the report. Inputs persist between runs.

Example:
  xlreport shell
  xlreport shell --eval "load data.xlsx" --eval "range A:C" --eval run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")

			settings, err := flags.Resolve(cmd)
			if err != nil {
				return err
			}

			session := shellpkg.NewSession(etl.NewRunner(settings.Options, verbose), settings.StartRow, settings.Columns)
			if len(evalCmds) > 0 {
				for _, line := range evalCmds {
					if err := session.Exec(cmd.Context(), line, os.Stdout); err != nil {
						return err
					}
				}
				if session.LastErr != nil {
					return &output.ExitError{Code: output.ExitCode(session.LastErr)}
				}
				return nil
			}
			return session.Run(cmd.Context(), os.Stdout)
		},
	}

	flags = run.BindFlags(cmd)
	cmd.Flags().StringArrayVar(&evalCmds, "eval", nil, "Run shell commands in order and exit (repeatable)")
	return cmd
}
