// Package integrity runs the pre-publication checks over the built star
// schema: referential completeness and grain uniqueness. Any violation is
// fatal for the run; the Gold layer must not be published on top of a
// dangling foreign key or a duplicated grain.
package integrity

import (
	"fmt"
	"strings"

	"github.com/camonet/amrgold/internal/gold"
	"github.com/camonet/amrgold/internal/star"
)

// Check rule names, reported on violations.
const (
	RuleReferential = "referential_completeness"
	RuleUniqueness  = "grain_uniqueness"
	RuleRowCount    = "grain_row_count"
)

// keySample caps how many offending keys a violation carries. Enough to
// trace the Silver defect without dumping a whole fact table into the log.
const keySample = 10

// Violation is one failed check, with everything an operator needs to trace
// the upstream defect: table, rule, column and a sample of offending keys.
type Violation struct {
	Table  string
	Rule   string
	Column string
	Keys   []int64
	Detail string
}

func (v Violation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", v.Table, v.Rule)
	if v.Column != "" {
		fmt.Fprintf(&b, " on %s", v.Column)
	}
	if v.Detail != "" {
		fmt.Fprintf(&b, ": %s", v.Detail)
	}
	if len(v.Keys) > 0 {
		fmt.Fprintf(&b, " (offending keys %v)", v.Keys)
	}
	return b.String()
}

// Error aggregates every violation found in one validation pass, so a single
// failed run reports all defects rather than the first.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}
	return fmt.Sprintf("integrity validation failed with %d violation(s): %s",
		len(e.Violations), strings.Join(msgs, "; "))
}

// Validate checks the whole star schema and returns an *Error carrying every
// violation, or nil when the Gold layer is publishable.
func Validate(dims *gold.Dimensions, facts *gold.Facts) error {
	v := &validator{}

	// Dimension surrogate key sets, sentinel included.
	patients := v.dimensionKeys(star.TablePatientDim, patientKeys(dims))
	medications := v.dimensionKeys(star.TableMedicationDim, medicationKeys(dims))
	diagnoses := v.dimensionKeys(star.TableDiagnosisDim, diagnosisKeys(dims))
	times := v.dimensionKeys(star.TableTimeDim, timeKeys(dims))
	units := v.dimensionKeys(star.TableHealthUnitDim, healthUnitKeys(dims))
	encounters := v.dimensionKeys(star.TableEncounterDim, encounterKeys(dims))

	// Referential completeness, fact by fact.
	for _, f := range facts.Prescriptions {
		v.ref(star.TablePrescriptionFact, "encounter_key", f.EncounterKey, encounters)
		v.ref(star.TablePrescriptionFact, "patient_key", f.PatientKey, patients)
		v.ref(star.TablePrescriptionFact, "medication_key", f.MedicationKey, medications)
		v.ref(star.TablePrescriptionFact, "time_key", f.TimeKey, times)
		v.ref(star.TablePrescriptionFact, "health_unit_key", f.HealthUnitKey, units)
	}
	for _, f := range facts.Diagnoses {
		v.ref(star.TableDiagnosisFact, "encounter_key", f.EncounterKey, encounters)
		v.ref(star.TableDiagnosisFact, "patient_key", f.PatientKey, patients)
		v.ref(star.TableDiagnosisFact, "diagnosis_key", f.DiagnosisKey, diagnoses)
		v.ref(star.TableDiagnosisFact, "time_key", f.TimeKey, times)
		v.ref(star.TableDiagnosisFact, "health_unit_key", f.HealthUnitKey, units)
	}
	for _, f := range facts.Summaries {
		v.ref(star.TableEncounterSummary, "encounter_key", f.EncounterKey, encounters)
		v.ref(star.TableEncounterSummary, "patient_key", f.PatientKey, patients)
		v.ref(star.TableEncounterSummary, "principal_diagnosis_key", f.PrincipalDiagnosisKey, diagnoses)
		v.ref(star.TableEncounterSummary, "time_key", f.TimeKey, times)
		v.ref(star.TableEncounterSummary, "health_unit_key", f.HealthUnitKey, units)
	}
	v.flushRefSamples()

	// Fact primary key uniqueness.
	v.uniqueKeys(star.TablePrescriptionFact, "prescription_key", prescriptionPKs(facts))
	v.uniqueKeys(star.TableDiagnosisFact, "diagnosis_fact_key", diagnosisPKs(facts))
	v.uniqueKeys(star.TableEncounterSummary, "encounter_key", summaryPKs(facts))

	// Grain relationships.
	encounterCount := len(dims.Encounters) - 1 // minus sentinel
	if len(facts.Summaries) != encounterCount {
		v.violations = append(v.violations, Violation{
			Table:  star.TableEncounterSummary,
			Rule:   RuleRowCount,
			Detail: fmt.Sprintf("summary rows = %d, encounter dimension members = %d, want equal", len(facts.Summaries), encounterCount),
		})
	}
	if len(facts.Prescriptions) < len(facts.Summaries) {
		v.violations = append(v.violations, Violation{
			Table:  star.TablePrescriptionFact,
			Rule:   RuleRowCount,
			Detail: fmt.Sprintf("prescription rows = %d, below summary rows = %d", len(facts.Prescriptions), len(facts.Summaries)),
		})
	}
	if len(facts.Diagnoses) < len(facts.Summaries) {
		v.violations = append(v.violations, Violation{
			Table:  star.TableDiagnosisFact,
			Rule:   RuleRowCount,
			Detail: fmt.Sprintf("diagnosis rows = %d, below summary rows = %d", len(facts.Diagnoses), len(facts.Summaries)),
		})
	}

	if len(v.violations) > 0 {
		return &Error{Violations: v.violations}
	}
	return nil
}

type refMiss struct {
	table, column string
}

type validator struct {
	violations []Violation
	refMisses  map[refMiss][]int64
	refOrder   []refMiss
}

// dimensionKeys builds the surrogate key set for one dimension and checks
// its own key uniqueness on the way.
func (v *validator) dimensionKeys(table string, keys []int64) map[int64]struct{} {
	v.uniqueKeys(table, "surrogate key", keys)
	set := make(map[int64]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func (v *validator) uniqueKeys(table, column string, keys []int64) {
	seen := make(map[int64]struct{}, len(keys))
	var dups []int64
	for _, k := range keys {
		if _, ok := seen[k]; ok && len(dups) < keySample {
			dups = append(dups, k)
		}
		seen[k] = struct{}{}
	}
	if len(dups) > 0 {
		v.violations = append(v.violations, Violation{
			Table:  table,
			Rule:   RuleUniqueness,
			Column: column,
			Keys:   dups,
			Detail: "duplicate keys",
		})
	}
}

// ref records a dangling foreign key. Misses are grouped per table/column so
// a systematic defect produces one violation with a key sample, not millions.
func (v *validator) ref(table, column string, key int64, dim map[int64]struct{}) {
	if _, ok := dim[key]; ok {
		return
	}
	if v.refMisses == nil {
		v.refMisses = make(map[refMiss][]int64)
	}
	rm := refMiss{table: table, column: column}
	if _, seen := v.refMisses[rm]; !seen {
		v.refOrder = append(v.refOrder, rm)
	}
	if len(v.refMisses[rm]) < keySample {
		v.refMisses[rm] = append(v.refMisses[rm], key)
	}
}

func (v *validator) flushRefSamples() {
	for _, rm := range v.refOrder {
		v.violations = append(v.violations, Violation{
			Table:  rm.table,
			Rule:   RuleReferential,
			Column: rm.column,
			Keys:   v.refMisses[rm],
			Detail: "foreign key not found in dimension",
		})
	}
}

func patientKeys(d *gold.Dimensions) []int64 {
	keys := make([]int64, len(d.Patients))
	for i, r := range d.Patients {
		keys[i] = r.PatientKey
	}
	return keys
}

func medicationKeys(d *gold.Dimensions) []int64 {
	keys := make([]int64, len(d.Medications))
	for i, r := range d.Medications {
		keys[i] = r.MedicationKey
	}
	return keys
}

func diagnosisKeys(d *gold.Dimensions) []int64 {
	keys := make([]int64, len(d.Diagnoses))
	for i, r := range d.Diagnoses {
		keys[i] = r.DiagnosisKey
	}
	return keys
}

func timeKeys(d *gold.Dimensions) []int64 {
	keys := make([]int64, len(d.Times))
	for i, r := range d.Times {
		keys[i] = r.TimeKey
	}
	return keys
}

func healthUnitKeys(d *gold.Dimensions) []int64 {
	keys := make([]int64, len(d.HealthUnits))
	for i, r := range d.HealthUnits {
		keys[i] = r.HealthUnitKey
	}
	return keys
}

func encounterKeys(d *gold.Dimensions) []int64 {
	keys := make([]int64, len(d.Encounters))
	for i, r := range d.Encounters {
		keys[i] = r.EncounterKey
	}
	return keys
}

func prescriptionPKs(f *gold.Facts) []int64 {
	keys := make([]int64, len(f.Prescriptions))
	for i, r := range f.Prescriptions {
		keys[i] = r.PrescriptionKey
	}
	return keys
}

func diagnosisPKs(f *gold.Facts) []int64 {
	keys := make([]int64, len(f.Diagnoses))
	for i, r := range f.Diagnoses {
		keys[i] = r.DiagnosisFactKey
	}
	return keys
}

func summaryPKs(f *gold.Facts) []int64 {
	keys := make([]int64, len(f.Summaries))
	for i, r := range f.Summaries {
		keys[i] = r.EncounterKey
	}
	return keys
}
