// Package cmd wires the amrgold command-line interface.
package cmd

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/camonet/amrgold/internal/config"
)

var (
	cfgFile string
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "amrgold",
	Short: "Silver-to-Gold transformation for the antimicrobial stewardship mart",
	Long: `amrgold builds the Gold-layer star schema from curated Silver records:
dimension and fact construction, antimicrobial classification against the
WHO AWaRe reference lists, prescription appropriateness evaluation,
integrity validation and reconciliation against published reference totals.`,
	SilenceUsage: true,
}

func Execute() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, optional; AMRGOLD_* env vars override)")
}

// loadConfig loads configuration and applies non-empty flag overrides.
func loadConfig(overrides map[string]*string) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	for key, value := range overrides {
		if *value == "" {
			continue
		}
		switch key {
		case "silver-dir":
			cfg.SilverDir = *value
		case "gold-dir":
			cfg.GoldDir = *value
		case "refdata-dir":
			cfg.RefdataDir = *value
		case "policy":
			cfg.Policy = *value
		case "references":
			cfg.ReferencesFile = *value
		case "database-url":
			cfg.DatabaseURL = *value
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the console logger used by every command.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger()
}
