// Package cmd contains all CLI commands for the xlreport binary.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/xlreport/cmd/completion"
	cmdconfig "github.com/klytics/xlreport/cmd/config"
	"github.com/klytics/xlreport/cmd/doctor"
	"github.com/klytics/xlreport/cmd/inspect"
	"github.com/klytics/xlreport/cmd/pipeline"
	"github.com/klytics/xlreport/cmd/run"
	"github.com/klytics/xlreport/cmd/shell"
	"github.com/klytics/xlreport/cmd/version"
	cmdwatch "github.com/klytics/xlreport/cmd/watch"
	"github.com/klytics/xlreport/internal/output"
)

var (
	jsonOutput bool
	verbose    bool
	noColor    bool
	configPath string
)

// NewRootCommand creates and returns the root cobra command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "xlreport",
		Short: "Filter spreadsheet data and build grouped reports with charts",
		Long: `xlreport — spreadsheet extract, filter and report.

Reads an .xlsx workbook, keeps a start row onward and a column-letter range,
writes the filtered table to a new workbook, and builds a per-entity report
with a top-10 bar chart and a global pie chart.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
			if jsonOutput {
				os.Setenv("XLREPORT_JSON", "true")
			}
		},
	}

	// Global persistent flags
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as machine-readable JSON")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log each stage to stderr")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable ANSI color output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.xlreport/config.yaml)")

	// Register subcommands
	rootCmd.AddCommand(run.NewCommand())
	rootCmd.AddCommand(inspect.NewCommand())
	rootCmd.AddCommand(cmdwatch.NewCommand())
	rootCmd.AddCommand(shell.NewCommand())
	rootCmd.AddCommand(pipeline.NewCommand())
	rootCmd.AddCommand(cmdconfig.NewCommand())
	rootCmd.AddCommand(doctor.NewCommand())
	rootCmd.AddCommand(completion.NewCommand(rootCmd))
	rootCmd.AddCommand(version.NewCommand())

	return rootCmd
}

// Execute runs the root command and exits with the code matching any
// returned error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}

	var exitErr *output.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, color.RedString(output.Message(err)))
	}
	stop()
	os.Exit(output.ExitCode(err))
}
