// Package main implements the worksession-api command: the HTTP server and
// a few operator tools that read the same store.
package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/worksession/internal/config"
	"github.com/PabloGalante/worksession/internal/observability"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr interface{ ExitCode() int }
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:           "worksession-api",
	Short:         "Timed technical work sessions and their evidence packs",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (.toml, .yaml or .yml)")
}

// loadConfig reads the config and applies its log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	observability.SetLevel(cfg.LogLevel)
	return cfg, nil
}
