package main

import (
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/nao1215/lorecrawl/internal/config"
)

//go:embed templates/lorecrawl.yaml
var configTemplate []byte

// errConfigExists is returned when init would replace a file without --force.
var errConfigExists = errors.New("configuration file already exists")

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented lorecrawl configuration file",
		Long: `Init writes a YAML file holding every crawl setting at its default
value, with a comment for each one. Crawl reads it from .lorecrawl in the
current or home directory, or from config.yaml in the XDG config directory.

Examples:
  # Write .lorecrawl here
  lorecrawl init

  # Write the per-user file in the XDG config directory
  lorecrawl init --xdg

  # Write somewhere else and point crawl at it
  lorecrawl init -o crawl.yaml && lorecrawl crawl -c crawl.yaml`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Path of the file to write")
	cmd.Flags().Bool("xdg", false,
		"Write config.yaml in the XDG config directory instead of --output")
	cmd.Flags().BoolP("force", "f", false,
		"Replace an existing file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	path, err := flags.GetString("output")
	if err != nil {
		return err
	}
	useXDG, err := flags.GetBool("xdg")
	if err != nil {
		return err
	}
	if useXDG {
		path = filepath.Join(config.XDGConfigDir(), config.XDGConfigFile)
	}
	force, err := flags.GetBool("force")
	if err != nil {
		return err
	}

	if err := writeTemplate(afero.NewOsFs(), path, force); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

// writeTemplate stores the embedded template at path, creating missing
// parent directories.
func writeTemplate(fsys afero.Fs, path string, force bool) error {
	if !force {
		exists, err := afero.Exists(fsys, path)
		if err != nil {
			return fmt.Errorf("check %s: %w", path, err)
		}
		if exists {
			return fmt.Errorf("%w: %s (use -f to replace it)", errConfigExists, path)
		}
	}

	if err := fsys.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(fsys, path, configTemplate, 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
