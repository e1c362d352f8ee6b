// Package main provides aqictl, a command-line client for the AirAdvisor
// estimators and advisories.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/airadvisor/airadvisor/internal/bootstrap"
	"github.com/airadvisor/airadvisor/internal/config"
)

// Version is set at compile time via ldflags.
var Version = "dev"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "aqictl",
	Short: "AirAdvisor - AQI estimates and health advisories",
	Long: `aqictl estimates the Air Quality Index from pollutant or weather readings
and classifies it into a health advisory, using the same services as the API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $CONFIG_PATH or configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log service activity to stderr")
	rootCmd.Version = Version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadComponents builds the service graph offline: feature flags stay in
// memory even when a database is configured.
func loadComponents(cmd *cobra.Command) (*config.Config, *bootstrap.Components, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	app := cfg.App
	app.LogLevel = "warn"
	if verbose {
		app.LogLevel = "debug"
	}
	logger := bootstrap.NewLogger(cmd.ErrOrStderr(), app, "aqictl", Version)

	c, err := bootstrap.Build(cmd.Context(), cfg, bootstrap.Options{SkipDatabase: true}, logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, c, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
