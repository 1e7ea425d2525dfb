package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/camonet/amrgold/internal/publish"
)

var publishFlags = struct {
	goldDir     string
	databaseURL string
}{}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Load the Gold tables into the PostgreSQL mart",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(map[string]*string{
			"gold-dir":     &publishFlags.goldDir,
			"database-url": &publishFlags.databaseURL,
		})
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("database_url is required (flag, config or AMRGOLD_DATABASE_URL)")
		}
		log := newLogger(cfg.LogLevel)
		ctx := cmd.Context()

		loader, err := publish.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer loader.Close()

		if err := loader.EnsureSchema(ctx); err != nil {
			return err
		}
		return loader.Publish(ctx, cfg.GoldDir, log)
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishFlags.goldDir, "gold-dir", "", "published Gold directory")
	publishCmd.Flags().StringVar(&publishFlags.databaseURL, "database-url", "", "PostgreSQL connection string")
	rootCmd.AddCommand(publishCmd)
}
