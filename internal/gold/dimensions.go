// Package gold builds the Gold-layer star schema from Silver records and
// reference catalogs: six dimensions, three facts, appropriateness flags and
// encounter aggregates. Construction is append-only and deterministic; the
// same Silver input always yields byte-identical tables.
package gold

import (
	"math"
	"sort"
	"time"

	"github.com/camonet/amrgold/internal/classify"
	"github.com/camonet/amrgold/internal/identity"
	"github.com/camonet/amrgold/internal/silver"
	"github.com/camonet/amrgold/internal/star"
)

// Dimensions holds the six dimension tables plus their key assignments,
// which fact builders use to resolve natural keys.
type Dimensions struct {
	Patients    []star.PatientDim
	Medications []star.MedicationDim
	Diagnoses   []star.DiagnosisDim
	Times       []star.TimeDim
	HealthUnits []star.HealthUnitDim
	Encounters  []star.EncounterDim

	PatientKeys    *identity.Assignment
	MedicationKeys *identity.Assignment
	DiagnosisKeys  *identity.Assignment
	TimeKeys       *identity.Assignment
	HealthUnitKeys *identity.Assignment
	EncounterKeys  *identity.Assignment
}

// BuildDimensions constructs all dimensions. Encounter, medication and
// health-unit natural keys arrive deduplicated from Silver; a duplicate there
// surfaces as an identity.ConflictError and aborts the run. Patient and
// diagnosis inputs are per-observation and are consolidated here.
func BuildDimensions(ds *silver.Dataset, cls *classify.Classifier) (*Dimensions, error) {
	d := &Dimensions{}
	var err error

	if err = d.buildPatients(ds.Patients); err != nil {
		return nil, err
	}
	if err = d.buildMedications(ds.Medications, cls); err != nil {
		return nil, err
	}
	if err = d.buildDiagnoses(ds.Diagnoses, cls); err != nil {
		return nil, err
	}
	if err = d.buildTimes(ds.Encounters); err != nil {
		return nil, err
	}
	if err = d.buildHealthUnits(ds.HealthUnits); err != nil {
		return nil, err
	}
	if err = d.buildEncounters(ds.Encounters); err != nil {
		return nil, err
	}
	return d, nil
}

// buildPatients consolidates per-observation rows into one member per
// patient: mode of sex (lexicographic tie-break) and rounded mean age.
func (d *Dimensions) buildPatients(rows []silver.PatientRow) error {
	type acc struct {
		sexCount map[string]int
		ageSum   float64
		ageN     int
	}
	byID := make(map[string]*acc)
	for _, r := range rows {
		a, ok := byID[r.PatientID]
		if !ok {
			a = &acc{sexCount: make(map[string]int)}
			byID[r.PatientID] = a
		}
		if r.Sex != nil && *r.Sex != "" {
			a.sexCount[*r.Sex]++
		}
		if r.AgeYears != nil {
			a.ageSum += *r.AgeYears
			a.ageN++
		}
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	assign, err := identity.Assign(star.TablePatientDim, ids)
	if err != nil {
		return err
	}
	d.PatientKeys = assign

	d.Patients = make([]star.PatientDim, 0, assign.Len()+1)
	d.Patients = append(d.Patients, star.SentinelPatient())
	for _, id := range assign.Ordered() {
		a := byID[id]

		sex := "Unknown"
		best := 0
		sexes := make([]string, 0, len(a.sexCount))
		for s := range a.sexCount {
			sexes = append(sexes, s)
		}
		sort.Strings(sexes)
		for _, s := range sexes {
			if a.sexCount[s] > best {
				best = a.sexCount[s]
				sex = s
			}
		}

		var age *int32
		if a.ageN > 0 {
			v := int32(math.Round(a.ageSum / float64(a.ageN)))
			age = &v
		}

		d.Patients = append(d.Patients, star.PatientDim{
			PatientKey: assign.Key(id),
			PatientID:  id,
			Sex:        sex,
			AgeYears:   age,
			AgeBand:    star.AgeBand(age),
		})
	}
	return nil
}

func (d *Dimensions) buildMedications(rows []silver.MedicationRow, cls *classify.Classifier) error {
	byCode := make(map[string]silver.MedicationRow, len(rows))
	codes := make([]string, 0, len(rows))
	for _, r := range rows {
		codes = append(codes, r.MedicationCode)
		byCode[r.MedicationCode] = r
	}

	assign, err := identity.Assign(star.TableMedicationDim, codes)
	if err != nil {
		return err
	}
	d.MedicationKeys = assign

	d.Medications = make([]star.MedicationDim, 0, assign.Len()+1)
	d.Medications = append(d.Medications, star.SentinelMedication())
	for _, code := range assign.Ordered() {
		r := byCode[code]
		mc := cls.Medication(r.Compound)
		d.Medications = append(d.Medications, star.MedicationDim{
			MedicationKey:    assign.Key(code),
			MedicationCode:   code,
			Compound:         r.Compound,
			UsageType:        r.UsageType,
			PresentationUnit: r.PresentationUnit,
			Concentration:    r.Concentration,
			IsAntimicrobial:  mc.IsAntimicrobial,
			AWaReClass:       mc.AWaReClass,
			Spectrum:         mc.Spectrum,
			Route:            r.Route,
		})
	}
	return nil
}

// buildDiagnoses consolidates the per-encounter diagnosis rows into one
// member per unified code. Attributes come from the first occurrence in
// input order; CID-10 and CIAP-2 codes live in the same dimension with a
// source tag.
func (d *Dimensions) buildDiagnoses(rows []silver.DiagnosisRow, cls *classify.Classifier) error {
	byCode := make(map[string]silver.DiagnosisRow)
	for _, r := range rows {
		if _, seen := byCode[r.Code]; !seen {
			byCode[r.Code] = r
		}
	}
	codes := make([]string, 0, len(byCode))
	for code := range byCode {
		codes = append(codes, code)
	}

	assign, err := identity.Assign(star.TableDiagnosisDim, codes)
	if err != nil {
		return err
	}
	d.DiagnosisKeys = assign

	d.Diagnoses = make([]star.DiagnosisDim, 0, assign.Len()+1)
	d.Diagnoses = append(d.Diagnoses, star.SentinelDiagnosis())
	for _, code := range assign.Ordered() {
		r := byCode[code]
		d.Diagnoses = append(d.Diagnoses, star.DiagnosisDim{
			DiagnosisKey: assign.Key(code),
			Code:         code,
			SourceTag:    r.SourceTag,
			Description:  r.Description,
			GroupedAs:    r.GroupedAs,
			IsInfectious: cls.Diagnosis(code, r.SourceTag),
		})
	}
	return nil
}

// buildTimes derives the calendar from the distinct encounter dates.
func (d *Dimensions) buildTimes(rows []silver.EncounterRow) error {
	seen := make(map[string]struct{})
	dates := make([]string, 0)
	for _, r := range rows {
		if r.Date == "" {
			continue
		}
		if _, ok := seen[r.Date]; !ok {
			seen[r.Date] = struct{}{}
			dates = append(dates, r.Date)
		}
	}

	assign, err := identity.Assign(star.TableTimeDim, dates)
	if err != nil {
		return err
	}
	d.TimeKeys = assign

	d.Times = make([]star.TimeDim, 0, assign.Len()+1)
	d.Times = append(d.Times, star.SentinelTime())
	for _, date := range assign.Ordered() {
		row := star.TimeDim{TimeKey: assign.Key(date), Date: date, MonthName: "Unknown", YearMonth: "UNKNOWN"}
		if t, err := time.Parse("2006-01-02", date); err == nil {
			row.Year = int32(t.Year())
			row.Month = int32(t.Month())
			row.Quarter = (row.Month-1)/3 + 1
			row.Semester = 1
			if row.Month > 6 {
				row.Semester = 2
			}
			// ISO-style weekday, Monday = 0
			row.Weekday = int32((int(t.Weekday()) + 6) % 7)
			row.MonthName = t.Month().String()
			row.YearMonth = t.Format("2006-01")
		}
		d.Times = append(d.Times, row)
	}
	return nil
}

func (d *Dimensions) buildHealthUnits(rows []silver.HealthUnitRow) error {
	byCode := make(map[string]silver.HealthUnitRow, len(rows))
	codes := make([]string, 0, len(rows))
	for _, r := range rows {
		codes = append(codes, r.UnitCode)
		byCode[r.UnitCode] = r
	}

	assign, err := identity.Assign(star.TableHealthUnitDim, codes)
	if err != nil {
		return err
	}
	d.HealthUnitKeys = assign

	d.HealthUnits = make([]star.HealthUnitDim, 0, assign.Len()+1)
	d.HealthUnits = append(d.HealthUnits, star.SentinelHealthUnit())
	for _, code := range assign.Ordered() {
		r := byCode[code]
		d.HealthUnits = append(d.HealthUnits, star.HealthUnitDim{
			HealthUnitKey: assign.Key(code),
			UnitCode:      code,
			UnitType:      r.UnitType,
			Analyzed:      r.Analyzed,
		})
	}
	return nil
}

func (d *Dimensions) buildEncounters(rows []silver.EncounterRow) error {
	byCode := make(map[string]silver.EncounterRow, len(rows))
	codes := make([]string, 0, len(rows))
	for _, r := range rows {
		codes = append(codes, r.EncounterCode)
		byCode[r.EncounterCode] = r
	}

	assign, err := identity.Assign(star.TableEncounterDim, codes)
	if err != nil {
		return err
	}
	d.EncounterKeys = assign

	d.Encounters = make([]star.EncounterDim, 0, assign.Len()+1)
	d.Encounters = append(d.Encounters, star.SentinelEncounter())
	for _, code := range assign.Ordered() {
		r := byCode[code]
		d.Encounters = append(d.Encounters, star.EncounterDim{
			EncounterKey:     assign.Key(code),
			EncounterCode:    code,
			Specialty:        r.Specialty,
			ExtractionPeriod: r.ExtractionPeriod,
		})
	}
	return nil
}

// medicationByKey returns the non-sentinel medication members indexed by
// surrogate key, used by the fact builder for denormalized attributes.
func (d *Dimensions) medicationByKey() map[int64]star.MedicationDim {
	m := make(map[int64]star.MedicationDim, len(d.Medications))
	for _, row := range d.Medications {
		m[row.MedicationKey] = row
	}
	return m
}

// Counts summarizes non-sentinel member counts per dimension for logging and
// the run manifest.
func (d *Dimensions) Counts() map[string]int {
	return map[string]int{
		star.TablePatientDim:    d.PatientKeys.Len(),
		star.TableMedicationDim: d.MedicationKeys.Len(),
		star.TableDiagnosisDim:  d.DiagnosisKeys.Len(),
		star.TableTimeDim:       d.TimeKeys.Len(),
		star.TableHealthUnitDim: d.HealthUnitKeys.Len(),
		star.TableEncounterDim:  d.EncounterKeys.Len(),
	}
}
