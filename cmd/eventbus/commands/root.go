// Package commands provides the CLI commands for eventbus.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/eventbus/internal/config"
	"github.com/dshills/eventbus/internal/logging"
)

// Version information, set by main.
var (
	Version = "dev"
	Commit  = "unknown"
)

// Global flags
var (
	configPath string
	logLevel   string
	logPretty  bool
)

var rootCmd = &cobra.Command{
	Use:   "eventbus",
	Short: "In-process event bus tooling",
	Long: `eventbus exercises the in-process publish/subscribe bus.

Run 'eventbus soak' to drive a bus with posts, calls and prefiltered
posters and print its statistics, or 'eventbus config' to show the
effective configuration.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (.toml, .yaml or .yml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR), overrides the config")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "pretty", false, "Human readable console logs")

	rootCmd.AddCommand(soakCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(watchCmd)
}

// Execute runs the root command.
func Execute() error {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("eventbus %s (%s)\n", Version, Commit))
	return rootCmd.Execute()
}

// loadConfig loads the configuration, applies the global flags and
// initializes logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logPretty {
		cfg.Logging.Pretty = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.Init(cfg.LoggingConfig())
	return cfg, nil
}
