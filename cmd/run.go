package cmd

import (
	"github.com/spf13/cobra"

	"github.com/camonet/amrgold/internal/pipeline"
)

var runFlags = struct {
	silverDir  string
	goldDir    string
	refdataDir string
	policy     string
	references string
}{}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the Silver-to-Gold transformation",
	Long: `Reads the Silver tables, builds and validates the star schema, writes the
Gold parquet tables and the run manifest. With --references, reconciles the
produced totals against the reference file afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(map[string]*string{
			"silver-dir":  &runFlags.silverDir,
			"gold-dir":    &runFlags.goldDir,
			"refdata-dir": &runFlags.refdataDir,
			"policy":      &runFlags.policy,
			"references":  &runFlags.references,
		})
		if err != nil {
			return err
		}
		log := newLogger(cfg.LogLevel)

		result, err := pipeline.Run(cfg, log)
		if err != nil {
			return err
		}
		if result.Report != nil && result.Report.HasCritical() {
			log.Error().
				Int("critical_findings", len(result.Report.Criticals())).
				Msg("reconciliation found critical differences; tables published, review required")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runFlags.silverDir, "silver-dir", "", "Silver input directory")
	runCmd.Flags().StringVar(&runFlags.goldDir, "gold-dir", "", "Gold output directory")
	runCmd.Flags().StringVar(&runFlags.refdataDir, "refdata-dir", "", "reference catalog directory")
	runCmd.Flags().StringVar(&runFlags.policy, "policy", "", "diagnosis association policy (any or first)")
	runCmd.Flags().StringVar(&runFlags.references, "references", "", "reference metrics yaml for reconciliation")
	rootCmd.AddCommand(runCmd)
}
