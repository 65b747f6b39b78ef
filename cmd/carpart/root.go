package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for carpart.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "carpart",
		Short: "Resumable scraper for vehicle parts catalogs",
		Long: `carpart scrapes a vehicle parts catalog into two JSON artifacts:
parts.json, the deduplicated part catalog, and compatibility.json, the
part-to-vehicle fitment index.

The catalog's hierarchy endpoints, page selectors, and hierarchy roots are
described in a YAML site file. Run "carpart init" to create one.

Runs are checkpointed and resume where an interrupted run stopped.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewScrapeCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
