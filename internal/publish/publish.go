// Package publish loads the Gold parquet tables into a PostgreSQL mart so
// dashboards can query the star schema directly.
package publish

import (
	"context"
	_ "embed"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/camonet/amrgold/internal/star"
	"github.com/camonet/amrgold/internal/tableio"
)

//go:embed schema.sql
var schemaSQL string

// Loader owns the connection pool for one publish run.
type Loader struct {
	pool *pgxpool.Pool
}

// Connect builds the pool and verifies the connection.
func Connect(ctx context.Context, connStr string) (*Loader, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection: %w", err)
	}
	poolConfig.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Loader{pool: pool}, nil
}

func (l *Loader) Close() {
	l.pool.Close()
}

// EnsureSchema creates the star schema tables when absent.
func (l *Loader) EnsureSchema(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Publish replaces the mart contents with the tables under goldDir. The whole
// load runs in one transaction: readers see either the previous run or the
// new one, never a mix.
func (l *Loader) Publish(ctx context.Context, goldDir string, log zerolog.Logger) error {
	start := time.Now()

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Facts first so dimension truncation never hits a foreign key.
	truncateOrder := []string{
		star.TablePrescriptionFact,
		star.TableDiagnosisFact,
		star.TableEncounterSummary,
		star.TablePatientDim,
		star.TableMedicationDim,
		star.TableDiagnosisDim,
		star.TableTimeDim,
		star.TableHealthUnitDim,
		star.TableEncounterDim,
	}
	for _, table := range truncateOrder {
		if _, err := tx.Exec(ctx, "TRUNCATE "+table+" CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}

	if err := copyTable(ctx, tx, goldDir, star.TablePatientDim,
		[]string{"patient_key", "patient_id", "sex", "age_years", "age_band"},
		func(r star.PatientDim) []any {
			return []any{r.PatientKey, r.PatientID, r.Sex, r.AgeYears, r.AgeBand}
		}, log); err != nil {
		return err
	}
	if err := copyTable(ctx, tx, goldDir, star.TableMedicationDim,
		[]string{"medication_key", "medication_code", "compound", "usage_type", "presentation_unit",
			"concentration", "is_antimicrobial", "aware_class", "spectrum", "route"},
		func(r star.MedicationDim) []any {
			return []any{r.MedicationKey, r.MedicationCode, r.Compound, r.UsageType, r.PresentationUnit,
				r.Concentration, r.IsAntimicrobial, r.AWaReClass, r.Spectrum, r.Route}
		}, log); err != nil {
		return err
	}
	if err := copyTable(ctx, tx, goldDir, star.TableDiagnosisDim,
		[]string{"diagnosis_key", "code", "source_tag", "description", "grouped_as", "is_infectious"},
		func(r star.DiagnosisDim) []any {
			return []any{r.DiagnosisKey, r.Code, r.SourceTag, r.Description, r.GroupedAs, r.IsInfectious}
		}, log); err != nil {
		return err
	}
	if err := copyTable(ctx, tx, goldDir, star.TableTimeDim,
		[]string{"time_key", "date", "year", "month", "quarter", "semester", "weekday", "month_name", "year_month"},
		func(r star.TimeDim) []any {
			return []any{r.TimeKey, r.Date, r.Year, r.Month, r.Quarter, r.Semester, r.Weekday, r.MonthName, r.YearMonth}
		}, log); err != nil {
		return err
	}
	if err := copyTable(ctx, tx, goldDir, star.TableHealthUnitDim,
		[]string{"health_unit_key", "unit_code", "unit_type", "analyzed"},
		func(r star.HealthUnitDim) []any {
			return []any{r.HealthUnitKey, r.UnitCode, r.UnitType, r.Analyzed}
		}, log); err != nil {
		return err
	}
	if err := copyTable(ctx, tx, goldDir, star.TableEncounterDim,
		[]string{"encounter_key", "encounter_code", "specialty", "extraction_period"},
		func(r star.EncounterDim) []any {
			return []any{r.EncounterKey, r.EncounterCode, r.Specialty, r.ExtractionPeriod}
		}, log); err != nil {
		return err
	}
	if err := copyTable(ctx, tx, goldDir, star.TablePrescriptionFact,
		[]string{"prescription_key", "encounter_key", "patient_key", "medication_key", "time_key",
			"health_unit_key", "quantity", "prescribed_quantity", "duration_days", "concentration",
			"is_antimicrobial", "has_infectious_diagnosis", "is_appropriate", "is_inappropriate",
			"usage_type", "spectrum", "aware_class"},
		func(r star.PrescriptionFact) []any {
			return []any{r.PrescriptionKey, r.EncounterKey, r.PatientKey, r.MedicationKey, r.TimeKey,
				r.HealthUnitKey, r.Quantity, r.PrescribedQuantity, r.DurationDays, r.Concentration,
				r.IsAntimicrobial, r.HasInfectiousDiagnosis, r.IsAppropriate, r.IsInappropriate,
				r.UsageType, r.Spectrum, r.AWaReClass}
		}, log); err != nil {
		return err
	}
	if err := copyTable(ctx, tx, goldDir, star.TableDiagnosisFact,
		[]string{"diagnosis_fact_key", "encounter_key", "patient_key", "diagnosis_key", "time_key",
			"health_unit_key", "is_infectious", "source_tag", "diagnosed_by"},
		func(r star.DiagnosisFact) []any {
			return []any{r.DiagnosisFactKey, r.EncounterKey, r.PatientKey, r.DiagnosisKey, r.TimeKey,
				r.HealthUnitKey, r.IsInfectious, r.SourceTag, r.DiagnosedBy}
		}, log); err != nil {
		return err
	}
	if err := copyTable(ctx, tx, goldDir, star.TableEncounterSummary,
		[]string{"encounter_key", "patient_key", "time_key", "health_unit_key", "principal_diagnosis_key",
			"total_diagnoses", "total_infectious_diagnoses", "total_medications", "total_antimicrobials",
			"had_antimicrobial", "had_infectious_diagnosis"},
		func(r star.EncounterSummaryFact) []any {
			return []any{r.EncounterKey, r.PatientKey, r.TimeKey, r.HealthUnitKey, r.PrincipalDiagnosisKey,
				r.TotalDiagnoses, r.TotalInfectiousDiagnoses, r.TotalMedications, r.TotalAntimicrobials,
				r.HadAntimicrobial, r.HadInfectiousDiagnosis}
		}, log); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("mart publish complete")
	return nil
}

// copyTable streams one parquet table into Postgres via COPY.
func copyTable[T any](ctx context.Context, tx pgx.Tx, goldDir, table string, columns []string, values func(T) []any, log zerolog.Logger) error {
	rows, err := tableio.Read[T](filepath.Join(goldDir, table+".parquet"))
	if err != nil {
		return fmt.Errorf("read %s: %w", table, err)
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return values(rows[i]), nil
		}))
	if err != nil {
		return fmt.Errorf("copy %s: %w", table, err)
	}
	if copied != int64(len(rows)) {
		return fmt.Errorf("copy %s: copied %d of %d rows", table, copied, len(rows))
	}
	log.Debug().Str("table", table).Int64("rows", copied).Msg("table copied")
	return nil
}
