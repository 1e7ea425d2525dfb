// Package config loads pipeline configuration from an optional yaml file and
// AMRGOLD_* environment variables, env taking precedence.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/camonet/amrgold/internal/gold"
)

type Config struct {
	SilverDir      string `mapstructure:"silver_dir"`
	GoldDir        string `mapstructure:"gold_dir"`
	RefdataDir     string `mapstructure:"refdata_dir"`
	Policy         string `mapstructure:"association_policy"`
	ReferencesFile string `mapstructure:"references_file"`
	DatabaseURL    string `mapstructure:"database_url"`
	LogLevel       string `mapstructure:"log_level"`
}

// Load reads path when non-empty, then overlays environment variables
// (AMRGOLD_SILVER_DIR and friends). A missing file is only an error when the
// operator asked for one.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AMRGOLD")
	v.AutomaticEnv()

	v.SetDefault("silver_dir", "data/silver")
	v.SetDefault("gold_dir", "data/gold")
	v.SetDefault("refdata_dir", "refdata")
	v.SetDefault("association_policy", string(gold.PolicyAny))
	v.SetDefault("log_level", "info")

	// Bind explicitly so Unmarshal sees env-only keys.
	for _, key := range []string{
		"silver_dir", "gold_dir", "refdata_dir",
		"association_policy", "references_file", "database_url", "log_level",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.SilverDir == "" {
		return fmt.Errorf("silver_dir is required")
	}
	if c.GoldDir == "" {
		return fmt.Errorf("gold_dir is required")
	}
	if c.RefdataDir == "" {
		return fmt.Errorf("refdata_dir is required")
	}
	if _, err := gold.ParsePolicy(c.Policy); err != nil {
		return err
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}

// AssociationPolicy returns the validated policy. Call after Validate.
func (c *Config) AssociationPolicy() gold.AssociationPolicy {
	p, _ := gold.ParsePolicy(c.Policy)
	return p
}
