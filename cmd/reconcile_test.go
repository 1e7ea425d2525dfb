package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/camonet/amrgold/internal/pipeline"
	"github.com/camonet/amrgold/internal/star"
	"github.com/camonet/amrgold/internal/tableio"
)

// writeGoldDir materializes the tables the reconciliation metrics read.
func writeGoldDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	write := func(table string, err error) {
		if err != nil {
			t.Fatalf("write %s: %v", table, err)
		}
	}
	path := func(table string) string { return filepath.Join(dir, table+".parquet") }

	write(star.TablePatientDim, tableio.Write(path(star.TablePatientDim), []star.PatientDim{
		star.SentinelPatient(),
		{PatientKey: 1, PatientID: "P1", Sex: "F", AgeBand: "18-59"},
	}))
	write(star.TableEncounterDim, tableio.Write(path(star.TableEncounterDim), []star.EncounterDim{
		star.SentinelEncounter(),
		{EncounterKey: 1, EncounterCode: "E1"},
	}))
	write(star.TablePrescriptionFact, tableio.Write(path(star.TablePrescriptionFact), []star.PrescriptionFact{
		{PrescriptionKey: 1, EncounterKey: 1, PatientKey: 1, MedicationKey: 1, TimeKey: 1,
			HealthUnitKey: 1, IsAntimicrobial: true, HasInfectiousDiagnosis: true,
			IsAppropriate: true, Spectrum: star.SpectrumNarrow, AWaReClass: star.AWaReAccess},
	}))
	write(star.TableDiagnosisFact, tableio.Write(path(star.TableDiagnosisFact), []star.DiagnosisFact{
		{DiagnosisFactKey: 1, EncounterKey: 1, PatientKey: 1, DiagnosisKey: 1, TimeKey: 1,
			HealthUnitKey: 1, IsInfectious: true, SourceTag: star.SourceCID10},
	}))
	write(star.TableEncounterSummary, tableio.Write(path(star.TableEncounterSummary), []star.EncounterSummaryFact{
		{EncounterKey: 1, PatientKey: 1, TimeKey: 1, HealthUnitKey: 1, PrincipalDiagnosisKey: 1,
			TotalDiagnoses: 1, TotalInfectiousDiagnoses: 1, TotalMedications: 1,
			TotalAntimicrobials: 1, HadAntimicrobial: true, HadInfectiousDiagnosis: true},
	}))

	return dir
}

func TestReconcileTakesReferencesFromEnvironment(t *testing.T) {
	goldDir := writeGoldDir(t)

	refsPath := filepath.Join(t.TempDir(), "references.yaml")
	content := `references:
  - name: total_patients
    value: 1
    source: "fixture"
`
	if err := os.WriteFile(refsPath, []byte(content), 0644); err != nil {
		t.Fatalf("write references: %v", err)
	}
	t.Setenv("AMRGOLD_REFERENCES_FILE", refsPath)

	rootCmd.SetArgs([]string{"reconcile", "--gold-dir", goldDir})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("reconcile with env-provided references: %v", err)
	}

	if _, err := os.Stat(filepath.Join(goldDir, pipeline.ReportFile)); err != nil {
		t.Errorf("report artifact missing: %v", err)
	}
}

func TestReconcileMissingReferencesIsConfigError(t *testing.T) {
	rootCmd.SetArgs([]string{"reconcile", "--gold-dir", t.TempDir()})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("reconcile without references: want error, got nil")
	}
	if strings.Contains(err.Error(), "required flag(s)") {
		t.Errorf("flag-level requirement instead of merged-config validation: %v", err)
	}
	if !strings.Contains(err.Error(), "references") {
		t.Errorf("error = %v, want references mention", err)
	}
}
