package gold

import (
	"fmt"
	"sort"

	"github.com/camonet/amrgold/internal/silver"
	"github.com/camonet/amrgold/internal/star"
)

// AssociationPolicy selects how a prescription finds its encounter's
// infectious-diagnosis signal. The source materials for this pipeline
// disagree on the rule, so both are implemented and reconciliation data
// decides which matches the reference publication.
type AssociationPolicy string

const (
	// PolicyAny: has_infectious_diagnosis is true iff at least one diagnosis
	// of the encounter is infectious. Default, per the data dictionary.
	PolicyAny AssociationPolicy = "any"
	// PolicyFirst: only the encounter's first diagnosis, in Silver input
	// order, is consulted.
	PolicyFirst AssociationPolicy = "first"
)

// ParsePolicy validates a policy name from configuration.
func ParsePolicy(s string) (AssociationPolicy, error) {
	switch AssociationPolicy(s) {
	case PolicyAny:
		return PolicyAny, nil
	case PolicyFirst:
		return PolicyFirst, nil
	default:
		return "", fmt.Errorf("unknown association policy %q (want %q or %q)", s, PolicyAny, PolicyFirst)
	}
}

// Facts holds the three fact tables.
type Facts struct {
	Prescriptions []star.PrescriptionFact
	Diagnoses     []star.DiagnosisFact
	Summaries     []star.EncounterSummaryFact
}

// encounterContext caches one encounter's resolved foreign keys and its
// diagnosis signal so prescription and summary builders share a single join.
type encounterContext struct {
	encounterKey  int64
	patientKey    int64
	timeKey       int64
	healthUnitKey int64

	anyInfectious   bool
	firstInfectious bool
	firstSeen       bool

	principalKey        int64 // infectious-first principal diagnosis
	principalInfectious bool

	totalDiagnoses      int64
	infectiousDiagnoses int64
	totalMedications    int64
	antimicrobials      int64
}

// BuildFacts constructs the prescription, diagnosis and encounter-summary
// facts. Fact surrogate keys are dense 1..n in a documented stable order:
// diagnosis facts by (encounter code, code, input index), prescription facts
// by (encounter code, medication code, input index).
func BuildFacts(ds *silver.Dataset, dims *Dimensions, policy AssociationPolicy) (*Facts, error) {
	if policy != PolicyAny && policy != PolicyFirst {
		return nil, fmt.Errorf("invalid association policy %q", policy)
	}

	contexts := buildEncounterContexts(ds, dims)

	f := &Facts{}
	f.buildDiagnosisFacts(ds, dims, contexts)
	f.buildPrescriptionFacts(ds, dims, contexts, policy)
	f.buildSummaries(dims, contexts)
	return f, nil
}

// buildEncounterContexts resolves each encounter's foreign keys and scans
// its diagnoses once. Diagnosis signals are derived from Silver input order,
// not from the fact sort order.
func buildEncounterContexts(ds *silver.Dataset, dims *Dimensions) map[string]*encounterContext {
	contexts := make(map[string]*encounterContext, dims.EncounterKeys.Len())

	for _, enc := range ds.Encounters {
		contexts[enc.EncounterCode] = &encounterContext{
			encounterKey:  dims.EncounterKeys.Key(enc.EncounterCode),
			patientKey:    dims.PatientKeys.Key(enc.PatientID),
			timeKey:       dims.TimeKeys.Key(enc.Date),
			healthUnitKey: dims.HealthUnitKeys.Key(enc.UnitCode),
			principalKey:  star.SentinelKey,
		}
	}

	diagInfectious := diagnosisInfectiousIndex(dims)

	for _, diag := range ds.Diagnoses {
		ctx, ok := contexts[diag.EncounterCode]
		if !ok {
			// Dangling encounter code; the diagnosis fact still gets built
			// with sentinel encounter keys, but there is no summary row to
			// feed.
			continue
		}
		infectious := diagInfectious[diag.Code]

		ctx.totalDiagnoses++
		if infectious {
			ctx.infectiousDiagnoses++
			ctx.anyInfectious = true
		}
		if !ctx.firstSeen {
			ctx.firstSeen = true
			ctx.firstInfectious = infectious
		}
		// Principal diagnosis: first infectious one wins; otherwise the
		// first diagnosis overall.
		if ctx.principalKey == star.SentinelKey || (infectious && !ctx.principalInfectious) {
			ctx.principalKey = dims.DiagnosisKeys.Key(diag.Code)
			ctx.principalInfectious = infectious
		}
	}

	for _, presc := range ds.Prescriptions {
		ctx, ok := contexts[presc.EncounterCode]
		if !ok {
			continue
		}
		ctx.totalMedications++
	}

	return contexts
}

// diagnosisInfectiousIndex maps unified code → is-infectious from the built
// dimension, so facts and dimension never disagree. The sentinel member is
// excluded: its code must not shadow a real code spelled the same way.
func diagnosisInfectiousIndex(dims *Dimensions) map[string]bool {
	idx := make(map[string]bool, len(dims.Diagnoses))
	for _, d := range dims.Diagnoses {
		if d.DiagnosisKey == star.SentinelKey {
			continue
		}
		idx[d.Code] = d.IsInfectious
	}
	return idx
}

func (f *Facts) buildDiagnosisFacts(ds *silver.Dataset, dims *Dimensions, contexts map[string]*encounterContext) {
	order := make([]int, len(ds.Diagnoses))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		da, db := ds.Diagnoses[order[a]], ds.Diagnoses[order[b]]
		if da.EncounterCode != db.EncounterCode {
			return da.EncounterCode < db.EncounterCode
		}
		return da.Code < db.Code
	})

	diagInfectious := diagnosisInfectiousIndex(dims)

	f.Diagnoses = make([]star.DiagnosisFact, 0, len(order))
	for n, i := range order {
		diag := ds.Diagnoses[i]

		row := star.DiagnosisFact{
			DiagnosisFactKey: int64(n + 1),
			EncounterKey:     star.SentinelKey,
			PatientKey:       star.SentinelKey,
			DiagnosisKey:     dims.DiagnosisKeys.Key(diag.Code),
			TimeKey:          star.SentinelKey,
			HealthUnitKey:    star.SentinelKey,
			IsInfectious:     diagInfectious[diag.Code],
			SourceTag:        diag.SourceTag,
			DiagnosedBy:      diag.DiagnosedBy,
		}
		if ctx, ok := contexts[diag.EncounterCode]; ok {
			row.EncounterKey = ctx.encounterKey
			row.PatientKey = ctx.patientKey
			row.TimeKey = ctx.timeKey
			row.HealthUnitKey = ctx.healthUnitKey
		}
		f.Diagnoses = append(f.Diagnoses, row)
	}
}

func (f *Facts) buildPrescriptionFacts(ds *silver.Dataset, dims *Dimensions, contexts map[string]*encounterContext, policy AssociationPolicy) {
	order := make([]int, len(ds.Prescriptions))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		pa, pb := ds.Prescriptions[order[a]], ds.Prescriptions[order[b]]
		if pa.EncounterCode != pb.EncounterCode {
			return pa.EncounterCode < pb.EncounterCode
		}
		return pa.MedicationCode < pb.MedicationCode
	})

	medByKey := dims.medicationByKey()

	f.Prescriptions = make([]star.PrescriptionFact, 0, len(order))
	for n, i := range order {
		presc := ds.Prescriptions[i]

		medKey := dims.MedicationKeys.Key(presc.MedicationCode)
		med := medByKey[medKey] // sentinel member when unresolved

		row := star.PrescriptionFact{
			PrescriptionKey:    int64(n + 1),
			EncounterKey:       star.SentinelKey,
			PatientKey:         star.SentinelKey,
			MedicationKey:      medKey,
			TimeKey:            star.SentinelKey,
			HealthUnitKey:      star.SentinelKey,
			Quantity:           presc.Quantity,
			PrescribedQuantity: presc.PrescribedQuantity,
			DurationDays:       presc.DurationDays,
			Concentration:      med.Concentration,
			IsAntimicrobial:    med.IsAntimicrobial,
			UsageType:          med.UsageType,
			Spectrum:           med.Spectrum,
			AWaReClass:         med.AWaReClass,
		}

		// An encounter with zero diagnosis rows counts as "no infectious
		// diagnosis", not as missing. This undercounts infections that were
		// simply not coded; preserved deliberately.
		hasInfectious := false
		if ctx, ok := contexts[presc.EncounterCode]; ok {
			row.EncounterKey = ctx.encounterKey
			row.PatientKey = ctx.patientKey
			row.TimeKey = ctx.timeKey
			row.HealthUnitKey = ctx.healthUnitKey
			if policy == PolicyFirst {
				hasInfectious = ctx.firstInfectious
			} else {
				hasInfectious = ctx.anyInfectious
			}
		}
		row.HasInfectiousDiagnosis = hasInfectious
		row.IsAppropriate = evaluateAppropriateness(med.IsAntimicrobial, hasInfectious)
		row.IsInappropriate = !row.IsAppropriate

		f.Prescriptions = append(f.Prescriptions, row)
	}

	if len(f.Prescriptions) > 0 {
		f.countAntimicrobials(ds, contexts, order)
	}
}

// countAntimicrobials back-fills the per-encounter antimicrobial totals now
// that prescription classification is resolved.
func (f *Facts) countAntimicrobials(ds *silver.Dataset, contexts map[string]*encounterContext, order []int) {
	for n, i := range order {
		if !f.Prescriptions[n].IsAntimicrobial {
			continue
		}
		if ctx, ok := contexts[ds.Prescriptions[i].EncounterCode]; ok {
			ctx.antimicrobials++
		}
	}
}

// evaluateAppropriateness applies the complementary rule: an antimicrobial
// is appropriate only with an infectious diagnosis; a non-antimicrobial is
// appropriate only without one.
func evaluateAppropriateness(isAntimicrobial, hasInfectiousDiagnosis bool) bool {
	return isAntimicrobial == hasInfectiousDiagnosis
}

// buildSummaries emits exactly one row per encounter dimension member, in
// dimension-key order. Encounters with no prescriptions or diagnoses keep
// zero counts and false flags; they are never dropped.
func (f *Facts) buildSummaries(dims *Dimensions, contexts map[string]*encounterContext) {
	f.Summaries = make([]star.EncounterSummaryFact, 0, dims.EncounterKeys.Len())
	for _, code := range dims.EncounterKeys.Ordered() {
		ctx := contexts[code]
		f.Summaries = append(f.Summaries, star.EncounterSummaryFact{
			EncounterKey:             ctx.encounterKey,
			PatientKey:               ctx.patientKey,
			TimeKey:                  ctx.timeKey,
			HealthUnitKey:            ctx.healthUnitKey,
			PrincipalDiagnosisKey:    ctx.principalKey,
			TotalDiagnoses:           ctx.totalDiagnoses,
			TotalInfectiousDiagnoses: ctx.infectiousDiagnoses,
			TotalMedications:         ctx.totalMedications,
			TotalAntimicrobials:      ctx.antimicrobials,
			HadAntimicrobial:         ctx.antimicrobials > 0,
			HadInfectiousDiagnosis:   ctx.infectiousDiagnoses > 0,
		})
	}
}
