// Package star defines the Gold-layer dimensional model: six dimensions and
// three facts sharing surrogate integer keys. Every row type carries parquet
// tags and maps one-to-one onto a Gold table file.
package star

// SentinelKey is the reserved surrogate key for the "unknown / not informed"
// member injected into every dimension. Facts reference it instead of null so
// joins and referential checks never special-case missing keys. -1 rather
// than 0: a zero key would be indistinguishable from an unset Go field.
const SentinelKey int64 = -1

// AWaRe classification values (WHO Access/Watch/Reserve).
const (
	AWaReAccess        = "Access"
	AWaReWatch         = "Watch"
	AWaReReserve       = "Reserve"
	AWaReNotClassified = "Not-Classified"
)

// Spectrum-of-action values.
const (
	SpectrumBroad   = "Broad"
	SpectrumNarrow  = "Narrow"
	SpectrumUnknown = "Unknown"
)

// Diagnosis code source tags. A code only matches the infectious reference
// list of its own source system.
const (
	SourceCID10 = "CID10"
	SourceCIAP2 = "CIAP2"
)

// Table names, used in integrity violations and file names.
const (
	TablePatientDim       = "dim_patient"
	TableMedicationDim    = "dim_medication"
	TableDiagnosisDim     = "dim_diagnosis"
	TableTimeDim          = "dim_time"
	TableHealthUnitDim    = "dim_health_unit"
	TableEncounterDim     = "dim_encounter"
	TablePrescriptionFact = "fact_prescription"
	TableDiagnosisFact    = "fact_diagnosis"
	TableEncounterSummary = "fact_encounter_summary"
)

// PatientDim holds one row per anonymized patient. Sex is the mode of the
// patient's Silver records, age the rounded mean — a patient can appear with
// slightly different ages across a multi-month extraction window.
type PatientDim struct {
	PatientKey int64  `parquet:"patient_key"`
	PatientID  string `parquet:"patient_id"` // anonymized natural key
	Sex        string `parquet:"sex"`
	AgeYears   *int32 `parquet:"age_years,optional"`
	AgeBand    string `parquet:"age_band"` // 0-1 | 1-11 | 12-17 | 18-59 | 60+ | Unknown
}

// MedicationDim holds one row per chemical compound natural key, carrying the
// AMR classifications assigned by the classifier.
type MedicationDim struct {
	MedicationKey    int64   `parquet:"medication_key"`
	MedicationCode   string  `parquet:"medication_code"` // natural key
	Compound         string  `parquet:"compound"`
	UsageType        *string `parquet:"usage_type,optional"`
	PresentationUnit *string `parquet:"presentation_unit,optional"`
	Concentration    *string `parquet:"concentration,optional"`
	IsAntimicrobial  bool    `parquet:"is_antimicrobial"`
	AWaReClass       string  `parquet:"aware_class"` // Access | Watch | Reserve | Not-Classified
	Spectrum         string  `parquet:"spectrum"`    // Broad | Narrow | Unknown
	Route            *string `parquet:"route,optional"`
}

// DiagnosisDim consolidates CID-10 and CIAP-2 codes into one dimension,
// deduplicated on the unified code. SourceTag records which vocabulary the
// code came from.
type DiagnosisDim struct {
	DiagnosisKey int64   `parquet:"diagnosis_key"`
	Code         string  `parquet:"code"` // unified natural key
	SourceTag    string  `parquet:"source_tag"`
	Description  *string `parquet:"description,optional"`
	GroupedAs    *string `parquet:"grouped_as,optional"`
	IsInfectious bool    `parquet:"is_infectious"`
}

// TimeDim holds one row per calendar date observed in the extraction window.
type TimeDim struct {
	TimeKey   int64  `parquet:"time_key"`
	Date      string `parquet:"date"` // YYYY-MM-DD
	Year      int32  `parquet:"year"`
	Month     int32  `parquet:"month"`
	Quarter   int32  `parquet:"quarter"`
	Semester  int32  `parquet:"semester"`
	Weekday   int32  `parquet:"weekday"` // 0 = Monday
	MonthName string `parquet:"month_name"`
	YearMonth string `parquet:"year_month"` // YYYY-MM
}

// HealthUnitDim holds one row per anonymized facility.
type HealthUnitDim struct {
	HealthUnitKey int64   `parquet:"health_unit_key"`
	UnitCode      string  `parquet:"unit_code"` // anonymized natural key
	UnitType      *string `parquet:"unit_type,optional"`
	Analyzed      bool    `parquet:"analyzed"`
}

// EncounterDim holds one row per clinical visit.
type EncounterDim struct {
	EncounterKey     int64   `parquet:"encounter_key"`
	EncounterCode    string  `parquet:"encounter_code"` // natural key
	Specialty        *string `parquet:"specialty,optional"`
	ExtractionPeriod *string `parquet:"extraction_period,optional"`
}

// PrescriptionFact has one row per prescribed medication item per encounter.
// AWaRe class and spectrum are denormalized copies of the medication
// dimension for query performance.
type PrescriptionFact struct {
	PrescriptionKey int64 `parquet:"prescription_key"`

	EncounterKey  int64 `parquet:"encounter_key"`
	PatientKey    int64 `parquet:"patient_key"`
	MedicationKey int64 `parquet:"medication_key"`
	TimeKey       int64 `parquet:"time_key"`
	HealthUnitKey int64 `parquet:"health_unit_key"`

	Quantity           *float64 `parquet:"quantity,optional"`
	PrescribedQuantity *float64 `parquet:"prescribed_quantity,optional"`
	DurationDays       *float64 `parquet:"duration_days,optional"`
	Concentration      *string  `parquet:"concentration,optional"`

	IsAntimicrobial        bool `parquet:"is_antimicrobial"`
	HasInfectiousDiagnosis bool `parquet:"has_infectious_diagnosis"`
	IsAppropriate          bool `parquet:"is_appropriate"`
	IsInappropriate        bool `parquet:"is_inappropriate"`

	UsageType  *string `parquet:"usage_type,optional"`
	Spectrum   string  `parquet:"spectrum"`
	AWaReClass string  `parquet:"aware_class"`
}

// DiagnosisFact has one row per diagnosis assigned per encounter.
type DiagnosisFact struct {
	DiagnosisFactKey int64 `parquet:"diagnosis_fact_key"`

	EncounterKey  int64 `parquet:"encounter_key"`
	PatientKey    int64 `parquet:"patient_key"`
	DiagnosisKey  int64 `parquet:"diagnosis_key"`
	TimeKey       int64 `parquet:"time_key"`
	HealthUnitKey int64 `parquet:"health_unit_key"`

	IsInfectious bool    `parquet:"is_infectious"`
	SourceTag    string  `parquet:"source_tag"`
	DiagnosedBy  *string `parquet:"diagnosed_by,optional"`
}

// EncounterSummaryFact has exactly one row per encounter dimension member,
// including encounters with zero prescriptions or diagnoses.
type EncounterSummaryFact struct {
	EncounterKey  int64 `parquet:"encounter_key"`
	PatientKey    int64 `parquet:"patient_key"`
	TimeKey       int64 `parquet:"time_key"`
	HealthUnitKey int64 `parquet:"health_unit_key"`

	// Principal diagnosis: first diagnosis of the encounter in stable order,
	// infectious ones first. Sentinel when the encounter has no diagnoses.
	PrincipalDiagnosisKey int64 `parquet:"principal_diagnosis_key"`

	TotalDiagnoses           int64 `parquet:"total_diagnoses"`
	TotalInfectiousDiagnoses int64 `parquet:"total_infectious_diagnoses"`
	TotalMedications         int64 `parquet:"total_medications"`
	TotalAntimicrobials      int64 `parquet:"total_antimicrobials"`

	HadAntimicrobial       bool `parquet:"had_antimicrobial"`
	HadInfectiousDiagnosis bool `parquet:"had_infectious_diagnosis"`
}

// AgeBand buckets an age in years into the fixed analysis bands.
func AgeBand(age *int32) string {
	if age == nil {
		return "Unknown"
	}
	switch a := *age; {
	case a < 1:
		return "0-1"
	case a < 12:
		return "1-11"
	case a < 18:
		return "12-17"
	case a < 60:
		return "18-59"
	default:
		return "60+"
	}
}

// SentinelPatient and friends are the reserved "unknown" dimension members.

func SentinelPatient() PatientDim {
	return PatientDim{PatientKey: SentinelKey, PatientID: "UNKNOWN", Sex: "Unknown", AgeBand: "Unknown"}
}

func SentinelMedication() MedicationDim {
	return MedicationDim{
		MedicationKey:  SentinelKey,
		MedicationCode: "UNKNOWN",
		Compound:       "UNKNOWN",
		AWaReClass:     AWaReNotClassified,
		Spectrum:       SpectrumUnknown,
	}
}

func SentinelDiagnosis() DiagnosisDim {
	return DiagnosisDim{DiagnosisKey: SentinelKey, Code: "UNKNOWN", SourceTag: "UNKNOWN"}
}

func SentinelTime() TimeDim {
	return TimeDim{TimeKey: SentinelKey, Date: "UNKNOWN", MonthName: "Unknown", YearMonth: "UNKNOWN"}
}

func SentinelHealthUnit() HealthUnitDim {
	return HealthUnitDim{HealthUnitKey: SentinelKey, UnitCode: "UNKNOWN"}
}

func SentinelEncounter() EncounterDim {
	return EncounterDim{EncounterKey: SentinelKey, EncounterCode: "UNKNOWN"}
}
