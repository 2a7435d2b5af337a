// Package config provides CLI commands for inspecting configuration.
package config

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/xlreport/internal/config"
	"github.com/klytics/xlreport/internal/output"
)

// NewCommand returns the config command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect xlreport configuration",
		Long: `Show the effective defaults from ~/.xlreport/config.yaml and XLREPORT_*
environment variables. The file is edited by hand; xlreport never writes it.`,
	}

	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newPathCommand())
	cmd.AddCommand(newValidateCommand())

	return cmd
}

func load(cmd *cobra.Command) (*config.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, output.Usagef("%s", err)
	}
	return cfg, nil
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonFlag, _ := cmd.Flags().GetBool("json")
			cfg, err := load(cmd)
			if err != nil {
				return err
			}

			if jsonFlag {
				return output.PrintJSON(os.Stdout, "config show", cfg)
			}

			fmt.Print(config.ShowConfig(cfg))
			return nil
		},
	}
}

func newPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the default config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.ConfigPath())
		},
	}
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration for problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}

			issues := cfg.Validate()
			if len(issues) == 0 {
				color.New(color.FgGreen).Println("✓ Configuration is valid")
				return nil
			}

			red := color.New(color.FgRed)
			for _, issue := range issues {
				red.Fprintf(os.Stderr, "  %s: %s\n", issue.Key, issue.Message)
			}
			return output.Usagef("%d configuration issue(s) found", len(issues))
		},
	}
}
