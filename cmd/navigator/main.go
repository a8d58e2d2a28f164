// Command navigator operates the decision core: it serves metrics and the
// weight scheduler, and runs one-off aggregation, crisis, import and replay jobs.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/SacredShifter/Navigator-sub000/internal/config"
	"github.com/SacredShifter/Navigator-sub000/internal/logging"
	"github.com/SacredShifter/Navigator-sub000/internal/navigator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "navigator",
	Short: "Navigator decision core",
	Long: `Navigator scores user resonance, selects interventions, learns from
collective feedback and monitors for crisis signals.

Configuration:
  1. --config flag (explicit path)
  2. ./navigator.yaml
  3. $HOME/.config/navigator/navigator.yaml

Every key can be overridden with NAVIGATOR_<SECTION>_<KEY>, e.g.
NAVIGATOR_STORE_PATH or NAVIGATOR_EMBEDDING_PROVIDER.`,
	SilenceUsage: true,
}

// #region main
func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./navigator.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON instead of a table")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(crisisCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// #endregion main

// #region helpers
func loadConfig() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, logging.New(cfg.Logging), nil
}

// openNavigator loads configuration and wires a Navigator. reg may be nil.
func openNavigator(reg *prometheus.Registry) (*navigator.Navigator, config.Config, zerolog.Logger, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, cfg, log, err
	}
	nav, err := navigator.Open(cfg, log, reg)
	if err != nil {
		return nil, cfg, log, err
	}
	return nav, cfg, log, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// #endregion helpers
