package silver

import (
	"fmt"
	"path/filepath"

	"github.com/camonet/amrgold/internal/tableio"
)

// File names the Silver stage writes, one per table.
const (
	FileEncounters    = "encounters.parquet"
	FileDiagnoses     = "diagnoses.parquet"
	FilePrescriptions = "prescriptions.parquet"
	FilePatients      = "patients.parquet"
	FileMedications   = "medications.parquet"
	FileHealthUnits   = "health_units.parquet"
)

// Load reads the full Silver dataset from dir.
func Load(dir string) (*Dataset, error) {
	ds := &Dataset{}
	var err error

	if ds.Encounters, err = tableio.Read[EncounterRow](filepath.Join(dir, FileEncounters)); err != nil {
		return nil, fmt.Errorf("load encounters: %w", err)
	}
	if ds.Diagnoses, err = tableio.Read[DiagnosisRow](filepath.Join(dir, FileDiagnoses)); err != nil {
		return nil, fmt.Errorf("load diagnoses: %w", err)
	}
	if ds.Prescriptions, err = tableio.Read[PrescriptionRow](filepath.Join(dir, FilePrescriptions)); err != nil {
		return nil, fmt.Errorf("load prescriptions: %w", err)
	}
	if ds.Patients, err = tableio.Read[PatientRow](filepath.Join(dir, FilePatients)); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	if ds.Medications, err = tableio.Read[MedicationRow](filepath.Join(dir, FileMedications)); err != nil {
		return nil, fmt.Errorf("load medications: %w", err)
	}
	if ds.HealthUnits, err = tableio.Read[HealthUnitRow](filepath.Join(dir, FileHealthUnits)); err != nil {
		return nil, fmt.Errorf("load health units: %w", err)
	}
	return ds, nil
}
