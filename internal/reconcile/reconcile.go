// Package reconcile compares metrics computed from the Gold layer against
// externally published reference totals and classifies each difference.
// Reconciliation never blocks publication; it tells the operator how far the
// produced numbers sit from the reference study.
package reconcile

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/camonet/amrgold/internal/star"
	"github.com/camonet/amrgold/internal/tableio"
)

// Classification levels by relative difference against the reference value:
// match is exact equality, acceptable covers explained sub-5% differences,
// needs_investigation covers 5-10% and unexplained sub-5% differences, and
// critical is anything beyond 10%.
const (
	ClassMatch              = "match"
	ClassAcceptable         = "acceptable"
	ClassNeedsInvestigation = "needs_investigation"
	ClassCritical           = "critical"
)

const (
	acceptableThreshold    = 0.05
	investigationThreshold = 0.10
)

// Reference is one operator-supplied reference metric, usually transcribed
// from a published study.
type Reference struct {
	Name        string  `yaml:"name"`
	Value       float64 `yaml:"value"`
	Source      string  `yaml:"source"`
	Explanation string  `yaml:"explanation,omitempty"`
}

// referenceFile is the yaml document shape.
type referenceFile struct {
	References []Reference `yaml:"references"`
}

// LoadReferences reads the reference metrics yaml file.
func LoadReferences(path string) ([]Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read references: %w", err)
	}
	var rf referenceFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse references %s: %w", path, err)
	}
	for i, r := range rf.References {
		if r.Name == "" {
			return nil, fmt.Errorf("parse references %s: entry %d has no name", path, i)
		}
	}
	return rf.References, nil
}

// Finding is one reference/computed comparison. Computed is absent when the
// pipeline produced no value for the metric; RelativeDelta is absent when the
// ratio is undefined (reference 0, computed not). Both cases classify as
// critical rather than carrying NaN or infinities, which JSON cannot encode.
type Finding struct {
	Name           string   `json:"name"`
	Reference      float64  `json:"reference"`
	Computed       *float64 `json:"computed,omitempty"`
	RelativeDelta  *float64 `json:"relative_delta,omitempty"` // |computed-reference| / |reference|
	Classification string   `json:"classification"`
	Source         string   `json:"source,omitempty"`
	Explanation    string   `json:"explanation,omitempty"`
}

// Report is the reconciliation artifact written next to the Gold tables.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Findings    []Finding `json:"findings"`
}

// HasCritical reports whether any finding is classified critical. Critical
// findings require explicit operator acknowledgment before the Gold layer is
// trusted for downstream reporting.
func (r *Report) HasCritical() bool {
	for _, f := range r.Findings {
		if f.Classification == ClassCritical {
			return true
		}
	}
	return false
}

// Criticals returns the critical findings for prominent surfacing.
func (r *Report) Criticals() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Classification == ClassCritical {
			out = append(out, f)
		}
	}
	return out
}

// WriteJSON persists the report artifact.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Compare builds the report for one run. References with no computed
// counterpart are classified critical: a metric the pipeline cannot produce
// is itself a finding.
func Compare(runID string, refs []Reference, computed map[string]float64) *Report {
	report := &Report{RunID: runID, GeneratedAt: time.Now().UTC()}
	for _, ref := range refs {
		f := Finding{
			Name:        ref.Name,
			Reference:   ref.Value,
			Source:      ref.Source,
			Explanation: ref.Explanation,
		}
		value, ok := computed[ref.Name]
		if !ok {
			f.Classification = ClassCritical
			f.Explanation = "metric not computed from Gold layer"
			report.Findings = append(report.Findings, f)
			continue
		}
		f.Computed = &value

		if delta, defined := relativeDelta(ref.Value, value); defined {
			f.RelativeDelta = &delta
			f.Classification = classify(delta, ref.Explanation)
		} else {
			f.Classification = ClassCritical
		}
		report.Findings = append(report.Findings, f)
	}
	return report
}

// relativeDelta reports the ratio and whether it is defined: a zero reference
// with a nonzero computed value has no meaningful relative difference.
func relativeDelta(reference, computed float64) (float64, bool) {
	if reference == 0 {
		if computed == 0 {
			return 0, true
		}
		return 0, false
	}
	return math.Abs(computed-reference) / math.Abs(reference), true
}

// classify maps a relative delta to a severity. A sub-5% difference is only
// acceptable when the operator documented why; an unexplained difference is
// something to investigate, however small.
func classify(delta float64, explanation string) string {
	switch {
	case delta == 0:
		return ClassMatch
	case delta < acceptableThreshold:
		if explanation != "" {
			return ClassAcceptable
		}
		return ClassNeedsInvestigation
	case delta <= investigationThreshold:
		return ClassNeedsInvestigation
	default:
		return ClassCritical
	}
}

// Metric names computed from the Gold layer.
const (
	MetricTotalPatients       = "total_patients"
	MetricTotalEncounters     = "total_encounters"
	MetricTotalPrescriptions  = "total_prescriptions"
	MetricTotalDiagnoses      = "total_diagnoses"
	MetricTotalAntimicrobials = "total_antimicrobial_prescriptions"
	MetricPctAntimicrobial    = "pct_prescriptions_antimicrobial"
	MetricPctAppropriate      = "pct_antimicrobials_appropriate"
	MetricPctInfectious       = "pct_encounters_infectious"
)

// Tables holds the subset of published Gold tables the metrics need.
type Tables struct {
	Patients      []star.PatientDim
	Encounters    []star.EncounterDim
	Prescriptions []star.PrescriptionFact
	Diagnoses     []star.DiagnosisFact
	Summaries     []star.EncounterSummaryFact
}

// LoadTables reads the metric inputs back from a published Gold directory,
// so reconciliation can run standalone against any prior run.
func LoadTables(dir string) (*Tables, error) {
	t := &Tables{}
	var err error
	if t.Patients, err = tableio.Read[star.PatientDim](filepath.Join(dir, star.TablePatientDim+".parquet")); err != nil {
		return nil, fmt.Errorf("load patient dimension: %w", err)
	}
	if t.Encounters, err = tableio.Read[star.EncounterDim](filepath.Join(dir, star.TableEncounterDim+".parquet")); err != nil {
		return nil, fmt.Errorf("load encounter dimension: %w", err)
	}
	if t.Prescriptions, err = tableio.Read[star.PrescriptionFact](filepath.Join(dir, star.TablePrescriptionFact+".parquet")); err != nil {
		return nil, fmt.Errorf("load prescription facts: %w", err)
	}
	if t.Diagnoses, err = tableio.Read[star.DiagnosisFact](filepath.Join(dir, star.TableDiagnosisFact+".parquet")); err != nil {
		return nil, fmt.Errorf("load diagnosis facts: %w", err)
	}
	if t.Summaries, err = tableio.Read[star.EncounterSummaryFact](filepath.Join(dir, star.TableEncounterSummary+".parquet")); err != nil {
		return nil, fmt.Errorf("load encounter summaries: %w", err)
	}
	return t, nil
}

// Metrics derives the reconciliation metrics from the Gold tables. Dimension
// totals exclude the sentinel member; percentages are 0-100.
func (t *Tables) Metrics() map[string]float64 {
	m := map[string]float64{
		MetricTotalPatients:      float64(countNonSentinelPatients(t.Patients)),
		MetricTotalEncounters:    float64(countNonSentinelEncounters(t.Encounters)),
		MetricTotalPrescriptions: float64(len(t.Prescriptions)),
		MetricTotalDiagnoses:     float64(len(t.Diagnoses)),
	}

	var antimicrobials, appropriateAM int
	for _, p := range t.Prescriptions {
		if p.IsAntimicrobial {
			antimicrobials++
			if p.IsAppropriate {
				appropriateAM++
			}
		}
	}
	m[MetricTotalAntimicrobials] = float64(antimicrobials)
	if len(t.Prescriptions) > 0 {
		m[MetricPctAntimicrobial] = float64(antimicrobials) / float64(len(t.Prescriptions)) * 100
	}
	if antimicrobials > 0 {
		m[MetricPctAppropriate] = float64(appropriateAM) / float64(antimicrobials) * 100
	}

	var infectiousEncounters int
	for _, s := range t.Summaries {
		if s.HadInfectiousDiagnosis {
			infectiousEncounters++
		}
	}
	if len(t.Summaries) > 0 {
		m[MetricPctInfectious] = float64(infectiousEncounters) / float64(len(t.Summaries)) * 100
	}

	return m
}

func countNonSentinelPatients(rows []star.PatientDim) int {
	n := 0
	for _, r := range rows {
		if r.PatientKey != star.SentinelKey {
			n++
		}
	}
	return n
}

func countNonSentinelEncounters(rows []star.EncounterDim) int {
	n := 0
	for _, r := range rows {
		if r.EncounterKey != star.SentinelKey {
			n++
		}
	}
	return n
}
