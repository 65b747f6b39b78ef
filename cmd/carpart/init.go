package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/config"
)

//go:embed templates/carpart.yaml
var siteTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a commented site file",
		Long: `Init writes a .carpart.yaml site file to the current directory.

The generated file describes the catalog to scrape: its base URL, the
hierarchy endpoints, the makes to walk, and the CSS selectors used to read
application and detail pages. Every option is documented inline.

Examples:
  # Create .carpart.yaml in the current directory
  carpart init

  # Create the site file at a specific path
  carpart init -o sites/csf.yaml

  # Force overwrite an existing file
  carpart init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the site file")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite an existing site file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("site file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := siteTemplate.ReadFile("templates/carpart.yaml")
	if err != nil {
		return fmt.Errorf("failed to read site file template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write site file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created site file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file before the first scrape:")
	fmt.Fprintln(out, "  - Set base_url to the catalog host")
	fmt.Fprintln(out, "  - List the makes and their ids")
	fmt.Fprintln(out, "  - Adjust selectors if the page layout differs")

	return nil
}
