// Package silver reads the cleaned, anonymized, deduplicated tables produced
// by the upstream Silver stage. One parquet file per table; identifiers are
// already hashed and PII is already stripped before this stage runs.
package silver

// EncounterRow is one clinical visit.
type EncounterRow struct {
	EncounterCode    string  `parquet:"encounter_code"`
	PatientID        string  `parquet:"patient_id"`
	UnitCode         string  `parquet:"unit_code"`
	Date             string  `parquet:"date"` // YYYY-MM-DD
	Specialty        *string `parquet:"specialty,optional"`
	ExtractionPeriod *string `parquet:"extraction_period,optional"`
}

// DiagnosisRow is one diagnosis assigned during an encounter. Code is the
// raw CID-10 or CIAP-2 code; SourceTag says which vocabulary it belongs to.
type DiagnosisRow struct {
	EncounterCode string  `parquet:"encounter_code"`
	Code          string  `parquet:"code"`
	SourceTag     string  `parquet:"source_tag"` // CID10 | CIAP2
	Description   *string `parquet:"description,optional"`
	GroupedAs     *string `parquet:"grouped_as,optional"`
	DiagnosedBy   *string `parquet:"diagnosed_by,optional"`
}

// PrescriptionRow is one prescribed medication item within an encounter.
type PrescriptionRow struct {
	EncounterCode      string   `parquet:"encounter_code"`
	MedicationCode     string   `parquet:"medication_code"`
	Quantity           *float64 `parquet:"quantity,optional"`
	PrescribedQuantity *float64 `parquet:"prescribed_quantity,optional"`
	DurationDays       *float64 `parquet:"duration_days,optional"`
}

// PatientRow is one observation of a patient. The same patient can appear
// several times across the extraction window with drifting age; the dimension
// builder consolidates.
type PatientRow struct {
	PatientID string   `parquet:"patient_id"`
	Sex       *string  `parquet:"sex,optional"`
	AgeYears  *float64 `parquet:"age_years,optional"`
}

// MedicationRow describes one medication catalog entry.
type MedicationRow struct {
	MedicationCode   string  `parquet:"medication_code"`
	Compound         string  `parquet:"compound"`
	UsageType        *string `parquet:"usage_type,optional"`
	PresentationUnit *string `parquet:"presentation_unit,optional"`
	Concentration    *string `parquet:"concentration,optional"`
	Route            *string `parquet:"route,optional"`
}

// HealthUnitRow describes one anonymized health facility.
type HealthUnitRow struct {
	UnitCode string  `parquet:"unit_code"`
	UnitType *string `parquet:"unit_type,optional"`
	Analyzed bool    `parquet:"analyzed"`
}

// Dataset holds all Silver tables for one pipeline run.
type Dataset struct {
	Encounters    []EncounterRow
	Diagnoses     []DiagnosisRow
	Prescriptions []PrescriptionRow
	Patients      []PatientRow
	Medications   []MedicationRow
	HealthUnits   []HealthUnitRow
}
