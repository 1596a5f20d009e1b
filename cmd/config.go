package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/conneroisu/ssrgate/internal/config"
	"github.com/conneroisu/ssrgate/internal/locale"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect ssrgate configuration",
	Long: `Inspect the configuration ssrgate resolves from its file, SSRGATE_
environment variables and defaults.

Examples:
  ssrgate config show                  # Show the resolved configuration
  ssrgate config show --format json    # Show it as JSON
  ssrgate config validate              # Validate without starting the server`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the configuration, including the supported locale list, and
report every problem found.`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configShowCmd.Flags().StringVarP(&configFormat, "format", "f", "yaml", "Output format (yaml, json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return writeConfig(cmd.OutOrStdout(), cfg, configFormat)
}

func writeConfig(w io.Writer, cfg *config.Config, format string) error {
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (supported: yaml, json)", format)
	}
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	registry, err := locale.NewRegistry(cfg.Locales.Supported, cfg.Locales.Default)
	if err != nil {
		return fmt.Errorf("invalid locales: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid (locales: %v, default: %s)\n",
		registry.Supported(), registry.Default())
	return nil
}
