package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Raam977/citius-scraper/internal/config"
)

//go:embed templates/citius.yaml
var configTemplate embed.FS

const templatePath = "templates/citius.yaml"

// configFileName is the default configuration file name.
const configFileName = config.DefaultConfigFile

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new citius configuration file",
		Long: `Initialize creates a new .citius.yaml configuration file in the current directory.

The generated file includes:
- Default run settings (page limit, workers, delays, output)
- Commented examples of saved searches

Examples:
  # Create .citius.yaml in current directory
  citius init

  # Create config file at a specific path
  citius init -o myconfig.yaml

  # Force overwrite existing file
  citius init -f

  # Print the template without writing a file
  citius init --stdout`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName, "Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false, "Overwrite existing configuration file")
	cmd.Flags().Bool("stdout", false, "Print the template instead of writing it")

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
	toStdout, err := cmd.Flags().GetBool("stdout")
	if err != nil {
		return err
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	out := cmd.OutOrStdout()
	if toStdout {
		_, err := out.Write(content)
		return err
	}

	if err := writeTemplate(outputPath, content, force); err != nil {
		return err
	}

	// Read the file back so a broken template is reported here rather than
	// on the first search.
	file, err := config.LoadConfigFile(outputPath)
	if err != nil {
		return fmt.Errorf("generated configuration is invalid: %w", err)
	}

	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintf(out, "  max pages: %d, workers: %d, delay: %s, format: %s\n",
		file.Defaults.MaxPages, file.Defaults.Workers, file.Defaults.MinDelay, file.Defaults.Format)
	fmt.Fprintln(out, "\nAdd saved searches under 'profiles' and run them with:")
	fmt.Fprintln(out, "  citius search --profile <name>")

	return nil
}

// writeTemplate writes content to path, refusing to replace an existing
// file unless force is set.
func writeTemplate(path string, content []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", path)
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}
