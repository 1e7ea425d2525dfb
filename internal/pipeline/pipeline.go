// Package pipeline orchestrates one Silver-to-Gold run: load, classify,
// build the star schema, validate, publish the parquet tables and write the
// run manifest.
package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/camonet/amrgold/internal/classify"
	"github.com/camonet/amrgold/internal/config"
	"github.com/camonet/amrgold/internal/gold"
	"github.com/camonet/amrgold/internal/integrity"
	"github.com/camonet/amrgold/internal/reconcile"
	"github.com/camonet/amrgold/internal/refdata"
	"github.com/camonet/amrgold/internal/silver"
	"github.com/camonet/amrgold/internal/star"
	"github.com/camonet/amrgold/internal/tableio"
)

// Artifact file names written next to the Gold tables.
const (
	ManifestFile = "run_manifest.json"
	ReportFile   = "reconciliation_report.json"
)

// Manifest records what one run produced, for provenance and monitoring.
type Manifest struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	ElapsedMS  int64          `json:"elapsed_ms"`
	Policy     string         `json:"association_policy"`
	RowCounts  map[string]int `json:"row_counts"`
	Gaps       classify.Gaps  `json:"classification_gaps"`
}

// Result is returned to the command layer after a successful run.
type Result struct {
	RunID    string
	Manifest *Manifest
	Report   *reconcile.Report // nil when no references file is configured
}

// Run executes the full stage. Integrity violations abort before any table
// is written; reconciliation findings never do.
func Run(cfg *config.Config, log zerolog.Logger) (*Result, error) {
	runID := uuid.NewString()
	started := time.Now()
	log = log.With().Str("run_id", runID).Logger()

	ds, err := silver.Load(cfg.SilverDir)
	if err != nil {
		return nil, fmt.Errorf("silver load: %w", err)
	}
	log.Info().
		Int("encounters", len(ds.Encounters)).
		Int("diagnoses", len(ds.Diagnoses)).
		Int("prescriptions", len(ds.Prescriptions)).
		Int("patients", len(ds.Patients)).
		Int("medications", len(ds.Medications)).
		Int("health_units", len(ds.HealthUnits)).
		Msg("silver dataset loaded")

	catalog, err := refdata.Load(cfg.RefdataDir)
	if err != nil {
		return nil, fmt.Errorf("reference data load: %w", err)
	}
	antimicrobials, aware, infectious := catalog.Sizes()
	log.Info().
		Int("antimicrobials", antimicrobials).
		Int("aware_classes", aware).
		Int("infectious_codes", infectious).
		Msg("reference catalogs loaded")

	cls := classify.New(catalog)

	dims, err := gold.BuildDimensions(ds, cls)
	if err != nil {
		return nil, fmt.Errorf("build dimensions: %w", err)
	}
	for table, n := range dims.Counts() {
		log.Debug().Str("table", table).Int("members", n).Msg("dimension built")
	}

	policy := cfg.AssociationPolicy()
	facts, err := gold.BuildFacts(ds, dims, policy)
	if err != nil {
		return nil, fmt.Errorf("build facts: %w", err)
	}
	log.Info().
		Str("policy", string(policy)).
		Int("prescription_facts", len(facts.Prescriptions)).
		Int("diagnosis_facts", len(facts.Diagnoses)).
		Int("encounter_summaries", len(facts.Summaries)).
		Msg("facts built")

	gaps := cls.Gaps()
	if gaps.AWaReUnmatched > 0 {
		log.Warn().
			Int("aware_unmatched", gaps.AWaReUnmatched).
			Strs("unmatched_antimicrobials", gaps.UnmatchedAntimicrobials).
			Msg("compounds without AWaRe classification")
	}

	if err := integrity.Validate(dims, facts); err != nil {
		log.Error().Err(err).Msg("integrity validation failed, nothing published")
		return nil, err
	}
	log.Info().Msg("integrity validation passed")

	rowCounts, err := writeTables(cfg.GoldDir, dims, facts)
	if err != nil {
		return nil, err
	}
	log.Info().Str("dir", cfg.GoldDir).Msg("gold tables written")

	manifest := &Manifest{
		RunID:      runID,
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
		Policy:     string(policy),
		RowCounts:  rowCounts,
		Gaps:       gaps,
	}
	manifest.ElapsedMS = manifest.FinishedAt.Sub(manifest.StartedAt).Milliseconds()
	if err := writeManifest(cfg.GoldDir, manifest); err != nil {
		return nil, err
	}

	result := &Result{RunID: runID, Manifest: manifest}

	if cfg.ReferencesFile != "" {
		report, err := Reconcile(runID, cfg.GoldDir, cfg.ReferencesFile, log)
		if err != nil {
			return nil, err
		}
		result.Report = report
	}

	log.Info().Int64("elapsed_ms", manifest.ElapsedMS).Msg("run complete")
	return result, nil
}

// Reconcile compares a published Gold directory against a references file and
// writes the report artifact into the Gold directory. Critical findings are
// logged at error level but never returned as errors.
func Reconcile(runID, goldDir, referencesFile string, log zerolog.Logger) (*reconcile.Report, error) {
	refs, err := reconcile.LoadReferences(referencesFile)
	if err != nil {
		return nil, err
	}
	tables, err := reconcile.LoadTables(goldDir)
	if err != nil {
		return nil, err
	}

	report := reconcile.Compare(runID, refs, tables.Metrics())
	if err := report.WriteJSON(filepath.Join(goldDir, ReportFile)); err != nil {
		return nil, err
	}

	for _, f := range report.Findings {
		ev := log.Info()
		if f.Classification == reconcile.ClassCritical {
			ev = log.Error()
		} else if f.Classification == reconcile.ClassNeedsInvestigation {
			ev = log.Warn()
		}
		ev = ev.Str("metric", f.Name).Float64("reference", f.Reference)
		if f.Computed != nil {
			ev = ev.Float64("computed", *f.Computed)
		}
		if f.RelativeDelta != nil {
			ev = ev.Float64("relative_delta", *f.RelativeDelta)
		}
		ev.Str("classification", f.Classification).Msg("reconciliation finding")
	}
	return report, nil
}

func writeTables(dir string, dims *gold.Dimensions, facts *gold.Facts) (map[string]int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create gold dir: %w", err)
	}

	write := func(table string, err error) error {
		if err != nil {
			return fmt.Errorf("write %s: %w", table, err)
		}
		return nil
	}

	path := func(table string) string { return filepath.Join(dir, table+".parquet") }

	if err := write(star.TablePatientDim, tableio.Write(path(star.TablePatientDim), dims.Patients)); err != nil {
		return nil, err
	}
	if err := write(star.TableMedicationDim, tableio.Write(path(star.TableMedicationDim), dims.Medications)); err != nil {
		return nil, err
	}
	if err := write(star.TableDiagnosisDim, tableio.Write(path(star.TableDiagnosisDim), dims.Diagnoses)); err != nil {
		return nil, err
	}
	if err := write(star.TableTimeDim, tableio.Write(path(star.TableTimeDim), dims.Times)); err != nil {
		return nil, err
	}
	if err := write(star.TableHealthUnitDim, tableio.Write(path(star.TableHealthUnitDim), dims.HealthUnits)); err != nil {
		return nil, err
	}
	if err := write(star.TableEncounterDim, tableio.Write(path(star.TableEncounterDim), dims.Encounters)); err != nil {
		return nil, err
	}
	if err := write(star.TablePrescriptionFact, tableio.Write(path(star.TablePrescriptionFact), facts.Prescriptions)); err != nil {
		return nil, err
	}
	if err := write(star.TableDiagnosisFact, tableio.Write(path(star.TableDiagnosisFact), facts.Diagnoses)); err != nil {
		return nil, err
	}
	if err := write(star.TableEncounterSummary, tableio.Write(path(star.TableEncounterSummary), facts.Summaries)); err != nil {
		return nil, err
	}

	return map[string]int{
		star.TablePatientDim:       len(dims.Patients),
		star.TableMedicationDim:    len(dims.Medications),
		star.TableDiagnosisDim:     len(dims.Diagnoses),
		star.TableTimeDim:          len(dims.Times),
		star.TableHealthUnitDim:    len(dims.HealthUnits),
		star.TableEncounterDim:     len(dims.Encounters),
		star.TablePrescriptionFact: len(facts.Prescriptions),
		star.TableDiagnosisFact:    len(facts.Diagnoses),
		star.TableEncounterSummary: len(facts.Summaries),
	}, nil
}

func writeManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
