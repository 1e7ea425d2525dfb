package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/camonet/amrgold/internal/pipeline"
)

var reconcileFlags = struct {
	goldDir    string
	references string
	runID      string
}{}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile a published Gold directory against reference totals",
	Long: `Recomputes the reconciliation metrics from an already-published Gold
directory and compares them against the reference metrics file. Findings are
logged and written to the report artifact; reconciliation never fails the
command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(map[string]*string{
			"gold-dir":   &reconcileFlags.goldDir,
			"references": &reconcileFlags.references,
		})
		if err != nil {
			return err
		}
		if cfg.ReferencesFile == "" {
			return fmt.Errorf("references file is required (flag, config or AMRGOLD_REFERENCES_FILE)")
		}
		log := newLogger(cfg.LogLevel)

		runID := reconcileFlags.runID
		if runID == "" {
			runID = uuid.NewString()
		}

		report, err := pipeline.Reconcile(runID, cfg.GoldDir, cfg.ReferencesFile, log)
		if err != nil {
			return err
		}
		if report.HasCritical() {
			log.Error().
				Int("critical_findings", len(report.Criticals())).
				Msg("critical differences found, review required")
		}
		return nil
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileFlags.goldDir, "gold-dir", "", "published Gold directory")
	reconcileCmd.Flags().StringVar(&reconcileFlags.references, "references", "", "reference metrics yaml")
	reconcileCmd.Flags().StringVar(&reconcileFlags.runID, "run-id", "", "run id to stamp on the report (default: new uuid)")
	rootCmd.AddCommand(reconcileCmd)
}
