// Package cmd provides the command-line interface for ssrgate.
//
// Configuration System:
//
//	Values are resolved with this precedence:
//	1. Command-line flags (--port, --host, ...) - highest priority
//	2. Individual environment variables (SSRGATE_SERVER_PORT, ...)
//	3. The configuration file: --config, else SSRGATE_CONFIG_FILE, else .ssrgate.yml
//	4. Built-in defaults - lowest priority
//
// Environment Variables:
//
//	SSRGATE_CONFIG_FILE: Path to a configuration file
//	SSRGATE_LOCALES_SUPPORTED: Comma-separated supported locales, e.g. "ru,en"
//	SSRGATE_LOCALES_DEFAULT: Default locale
//	And every other key following the SSRGATE_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "SSRGATE"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ssrgate",
	Short: "Locale-aware server-side rendering gateway",
	Long: `ssrgate serves server-rendered pages behind locale-prefixed URLs.

Every page request is resolved to a supported locale from the URL, the locale
cookie, or the Accept-Language header. Unprefixed URLs are redirected to their
locale-prefixed form; prefixed URLs are rendered and assembled into the client
build's HTML shell.

Quick Start:
  ssrgate serve                   Start the server
  ssrgate config show             Print the resolved configuration
  ssrgate health                  Probe a running server
  ssrgate version                 Show version information`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .ssrgate.yml, can also use SSRGATE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig selects the configuration file and enables SSRGATE_ environment
// overrides. A missing default file is not an error; an explicitly named file
// that cannot be read is reported when the configuration is loaded.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(envPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ssrgate")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
