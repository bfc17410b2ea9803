// Package cmd provides the slotter command-line interface.
//
// Configuration is layered, highest priority first:
//
//  1. Command-line flags (--port, --log-level, ...)
//  2. SLOTTER_<SECTION>_<OPTION> environment variables
//  3. The config file: --config, else SLOTTER_CONFIG_FILE, else .slotter.yml
//  4. Built-in defaults
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/slotter/internal/config"
	"github.com/conneroisu/slotter/internal/errors"
	"github.com/conneroisu/slotter/internal/logging"
	"github.com/conneroisu/slotter/internal/registry"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "slotter",
	Short: "Render markup templates whose values are live components",
	Long: `slotter renders page documents: markup with {placeholders} whose values
are either plain text or components. Components are projected into stub
elements and keep their state across re-renders.

Quick Start:
  slotter render page.yml             Render a document once to HTML
  slotter inspect page.yml            Show mount points and mounts of a live pass
  slotter serve page.yml              Preview a document with live updates
  slotter components                  List the available components`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Errors are printed with suggestions.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", errors.Enhance(err))
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .slotter.yml, can also use SLOTTER_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
}

// bindFlags binds flags to their config keys. It runs on every execution
// because a viper reset drops the bindings.
func bindFlags() {
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("watch.enabled", serveCmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("template.escape_values", renderCmd.Flags().Lookup("escape"))
}

func initConfig() {
	bindFlags()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".slotter")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing default file is fine; defaults apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads the configuration and points it at the document named
// in args, if any.
func loadConfig(args []string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.Document = args[0]
	}
	if cfg.Document == "" {
		return nil, fmt.Errorf("no document given: pass a path or set document in the config file")
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (logging.Logger, error) {
	lc, err := cfg.Log.LoggerConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(lc), nil
}

// newRegistry returns the components available to documents.
func newRegistry() *registry.ComponentRegistry {
	return registry.NewDefaultRegistry()
}
