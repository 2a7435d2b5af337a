// Package pipeline provides CLI commands for running batch job files.
package pipeline

import "github.com/spf13/cobra"

// NewCommand returns the pipeline subcommand group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run batches of report jobs defined in YAML",
		Long:  "Execute job files that run several workbooks, ranges and outputs in one go.",
	}

	cmd.AddCommand(newRunCommand())

	return cmd
}
